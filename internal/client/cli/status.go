package cli

import (
	"context"
	"sort"

	"github.com/spf13/cobra"

	"github.com/iudanet/booksync/internal/client/sync"
	"github.com/iudanet/booksync/internal/models"
)

var ledgerStatuses = []models.SyncStatus{
	models.StatusPending,
	models.StatusInProgress,
	models.StatusSuccess,
	models.StatusConflict,
	models.StatusFailed,
	models.StatusSkipped,
}

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:          "status",
		Short:        "Show ledger, queue and server sync state",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, remote, func(ctx context.Context, s *session) error {
				report, err := s.sync.Status(ctx, remote)
				if err != nil {
					return err
				}
				p := opts.printer(cmd)
				return p.emit(report, func() { printStatus(p, report) })
			})
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Also ask the server for its sync summary")
	return cmd
}

func printStatus(p *printer, r *sync.StatusReport) {
	p.Println("=== Sync Status ===")
	if r.LastSync.IsZero() {
		p.Println("Last sync:   never")
	} else {
		p.Printf("Last sync:   %s\n", r.LastSync.Local().Format("2006-01-02 15:04:05"))
	}
	p.Printf("Cursor:      %s\n", orDash(r.Cursor))
	p.Printf("Queue:       %d package(s), %d dead letter(s)\n", r.QueueDepth, r.DeadLetters)
	p.Printf("Tombstones:  %d not yet confirmed\n", r.UnsyncedTombstones)

	p.Println()
	p.Println("Ledger:")
	for _, st := range ledgerStatuses {
		p.Printf("  %-12s %d\n", st, r.Ledger[st])
	}

	if r.RemoteError != "" {
		p.Println()
		p.Printf("Server: unavailable (%s)\n", r.RemoteError)
		return
	}
	if r.Remote == nil {
		return
	}
	p.Println()
	p.Printf("Server (tenant %s): %d pending conflict(s), %d failed entit(ies)\n",
		r.Remote.TenantID, r.Remote.PendingConflicts, r.Remote.FailedEntities)
	types := make([]string, 0, len(r.Remote.ByType))
	for t := range r.Remote.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		counts := r.Remote.ByType[t]
		p.Printf("  %-12s success=%d conflict=%d failed=%d\n", t,
			counts[models.StatusSuccess], counts[models.StatusConflict], counts[models.StatusFailed])
	}
}
