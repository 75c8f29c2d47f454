package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iudanet/booksync/internal/models"
	"github.com/iudanet/booksync/internal/syncerr"
)

// NewConflictsCommand creates the conflicts command.
func NewConflictsCommand(opts *RootOptions) *cobra.Command {
	var entityType string

	cmd := &cobra.Command{
		Use:          "conflicts",
		Short:        "List pending conflicts on the server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, true, func(ctx context.Context, s *session) error {
				conflicts, err := s.sync.Conflicts(ctx, entityType)
				if err != nil {
					return err
				}
				if conflicts == nil {
					conflicts = []*models.ConflictRecord{}
				}
				p := opts.printer(cmd)
				return p.emit(conflicts, func() { printConflicts(p, conflicts) })
			})
		},
	}

	cmd.Flags().StringVar(&entityType, "type", "", "Only conflicts of this entity type")
	return cmd
}

func printConflicts(p *printer, conflicts []*models.ConflictRecord) {
	if len(conflicts) == 0 {
		p.Println("No pending conflicts.")
		return
	}
	for _, c := range conflicts {
		p.Printf("Conflict %s\n", c.ConflictID)
		p.Printf("  %s/%s (%s), detected %s\n", c.EntityType, c.EntityID, c.Operation,
			c.DetectedAt.Format("2006-01-02 15:04:05"))
		p.Printf("  local:  %s at %s\n", c.LocalData.Data, c.LocalTimestamp.Format("2006-01-02 15:04:05"))
		switch {
		case c.RemoteDeleted:
			p.Printf("  remote: deleted at %s\n", c.RemoteTimestamp.Format("2006-01-02 15:04:05"))
		case c.RemoteData != nil:
			p.Printf("  remote: %s at %s\n", c.RemoteData.Data, c.RemoteTimestamp.Format("2006-01-02 15:04:05"))
		}
		if len(c.FieldConflicts) > 0 {
			tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "  FIELD\tKIND\tBASE\tLOCAL\tREMOTE")
			for _, f := range c.FieldConflicts {
				_, _ = fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", f.Field, f.Kind,
					rawOrDash(f.BaseValue), rawOrDash(f.LocalValue), rawOrDash(f.RemoteValue))
			}
			_ = tw.Flush()
		}
		p.Println()
	}
	p.Printf("Total: %d\n", len(conflicts))
}

func rawOrDash(b []byte) string {
	if len(b) == 0 {
		return "-"
	}
	return string(b)
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(opts *RootOptions) *cobra.Command {
	var (
		strategy string
		in       recordInput
	)

	cmd := &cobra.Command{
		Use:   "resolve <conflict-id>",
		Short: "Resolve a conflict with a strategy",
		Long: `Resolve a pending conflict on the server and apply the winning version locally.

Strategies: local_wins, remote_wins, last_modified_wins, field_merge, manual.
The manual strategy takes the resolved record from --data or --file.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := models.Strategy(strategy)
			if !st.Valid() {
				return syncerr.NewValidationError(fmt.Sprintf("unknown strategy %q", strategy))
			}

			var resolved *models.Payload
			if st == models.StrategyManual {
				payload, err := in.payload(cmd, opts, models.OperationUpdate)
				if err != nil {
					return err
				}
				resolved = &payload
			}

			return opts.withSession(cmd, true, func(ctx context.Context, s *session) error {
				resp, err := s.sync.Resolve(ctx, args[0], st, resolved)
				if err != nil {
					return err
				}
				p := opts.printer(cmd)
				return p.emit(resp, func() {
					p.Printf("Conflict %s resolved with %s\n", args[0], st)
					p.Printf("%s/%s is now: %s\n", resp.Entity.EntityType, resp.Entity.LocalID, resp.Entity.Payload.Data)
				})
			})
		},
	}

	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "Resolution strategy")
	_ = cmd.MarkFlagRequired("strategy")
	in.bind(cmd)
	return cmd
}
