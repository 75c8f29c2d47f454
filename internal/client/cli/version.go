package cli

import (
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := opts.printer(cmd)
			return p.emit(opts.Build, func() {
				p.Println("BookSync Client")
				p.Printf("Version:    %s\n", opts.Build.Version)
				p.Printf("Build Date: %s\n", opts.Build.BuildDate)
				p.Printf("Git Commit: %s\n", opts.Build.GitCommit)
			})
		},
	}
}
