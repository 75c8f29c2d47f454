package cli

import (
	"context"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	var deleted bool

	cmd := &cobra.Command{
		Use:          "list [entity-type]",
		Short:        "List records of the local replica",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			entityType := ""
			if len(args) == 1 {
				entityType = args[0]
			}
			return opts.withSession(cmd, false, func(ctx context.Context, s *session) error {
				records, err := s.store.ListRecords(ctx, entityType, deleted)
				if err != nil {
					return err
				}

				views := make([]recordJSON, 0, len(records))
				for _, rec := range records {
					views = append(views, recordView(rec))
				}

				p := opts.printer(cmd)
				return p.emit(views, func() {
					if len(views) == 0 {
						p.Println("No records found.")
						return
					}
					tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
					_, _ = tw.Write([]byte("TYPE\tLOCAL ID\tREMOTE ID\tUPDATED\tSTATE\n"))
					for _, v := range views {
						state := "modified"
						switch {
						case v.Deleted && v.Synced:
							state = "deleted"
						case v.Deleted:
							state = "deleted*"
						case v.Synced:
							state = "synced"
						}
						_, _ = tw.Write([]byte(v.EntityType + "\t" + v.LocalID + "\t" + orDash(v.RemoteID) + "\t" + v.UpdatedAt + "\t" + state + "\n"))
					}
					_ = tw.Flush()
					p.Printf("\nTotal: %d\n", len(views))
				})
			})
		},
	}

	cmd.Flags().BoolVar(&deleted, "deleted", false, "Include deleted records")
	return cmd
}
