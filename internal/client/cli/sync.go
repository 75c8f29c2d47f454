package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/iudanet/booksync/internal/client/sync"
)

// NewPushCommand creates the push command.
func NewPushCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "push",
		Short:        "Send pending ledger changes to the server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, true, func(ctx context.Context, s *session) error {
				res, err := s.sync.Push(ctx)
				if err != nil {
					return err
				}
				p := opts.printer(cmd)
				return p.emit(res, func() { printPush(p, res) })
			})
		},
	}
}

// NewPullCommand creates the pull command.
func NewPullCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "pull",
		Short:        "Apply server changes to the local replica",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, true, func(ctx context.Context, s *session) error {
				res, err := s.sync.Pull(ctx)
				if err != nil {
					return err
				}
				p := opts.printer(cmd)
				return p.emit(res, func() { printPull(p, res) })
			})
		},
	}
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "sync",
		Short:        "Push local changes, then pull server changes",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, true, func(ctx context.Context, s *session) error {
				res, err := s.sync.Sync(ctx)
				if err != nil {
					return err
				}
				p := opts.printer(cmd)
				return p.emit(res, func() {
					p.Println("=== Synchronization ===")
					printPush(p, res.Push)
					printPull(p, res.Pull)
					if res.Push.Conflicts > 0 {
						p.Println()
						p.Println("Run 'booksync conflicts' to review conflicting changes.")
					}
				})
			})
		},
	}
}

// NewRetryCommand creates the retry command.
func NewRetryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "retry",
		Short:        "Queue failed ledger changes again",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, false, func(ctx context.Context, s *session) error {
				n, err := s.sync.RetryFailed(ctx)
				if err != nil {
					return err
				}
				p := opts.printer(cmd)
				return p.emit(map[string]int{"requeued": n}, func() {
					p.Printf("%d failed change(s) queued again\n", n)
				})
			})
		},
	}
}

func printPush(p *printer, res *sync.PushResult) {
	if res == nil {
		return
	}
	p.Printf("Push: %d package(s) sealed, %d uploaded\n", res.Sealed, res.Uploaded)
	p.Printf("  succeeded: %d  conflicts: %d  failed: %d  skipped: %d\n",
		res.Succeeded, res.Conflicts, res.Failed, res.Skipped)
	if res.Retrying > 0 {
		p.Printf("  %d package(s) left in the queue, will retry later\n", res.Retrying)
	}
	if res.Rejected > 0 {
		p.Printf("  %d package(s) rejected by the server, see 'booksync status'\n", res.Rejected)
	}
}

func printPull(p *printer, res *sync.PullResult) {
	if res == nil {
		return
	}
	p.Printf("Pull: %d page(s), %d applied, %d deferred\n", res.Pages, res.Applied, res.Deferred)
}
