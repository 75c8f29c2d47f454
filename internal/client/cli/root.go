// Package cli implements the booksync replica command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/iudanet/booksync/internal/client/api"
	"github.com/iudanet/booksync/internal/client/iocli"
	"github.com/iudanet/booksync/internal/client/storage/boltdb"
	"github.com/iudanet/booksync/internal/client/sync"
)

// Environment variables read when the matching flag is not given.
const (
	EnvServer = "BOOKSYNC_SERVER"
	EnvDB     = "BOOKSYNC_DB"
	EnvTenant = "BOOKSYNC_TENANT"
	EnvUser   = "BOOKSYNC_USER"
	EnvToken  = "BOOKSYNC_TOKEN"
)

const (
	defaultServer = "http://localhost:8080"
	defaultDB     = "booksync-replica.db"
)

// BuildInfo is set via ldflags in cmd/client.
type BuildInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	GitCommit string `json:"git_commit"`
}

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	IO        iocli.IO
	Build     BuildInfo
	Server    string
	DBPath    string
	TenantID  string
	UserID    string
	Token     string
	TokenFile string
	Format    string
	Verbose   bool
}

// NewRootCommand creates the root command with all subcommands attached.
func NewRootCommand(build BuildInfo) *cobra.Command {
	return newRootCommand(&RootOptions{IO: iocli.NewStdio(), Build: build})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "booksync",
		Short: "Offline-first replica of the bookkeeping sync server",
		Long: `booksync keeps a local replica of business records (accounts, invoices,
payments, budgets and the rest), records every local edit in a change ledger
and synchronizes the ledger with the central sync server when the network is
available. Conflicting edits are kept for review and resolved with one of the
strategies local_wins, remote_wins, last_modified_wins, field_merge or manual.

Access token priority (highest to lowest):
  1. BOOKSYNC_TOKEN environment variable
  2. --token-file
  3. --token
  4. Interactive prompt`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Format != "text" && opts.Format != "json" {
				return fmt.Errorf("invalid format %q: must be 'text' or 'json'", opts.Format)
			}
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.Server, "server", envOr(EnvServer, defaultServer), "Server URL")
	pf.StringVar(&opts.DBPath, "db", envOr(EnvDB, defaultDB), "Path to the local replica database")
	pf.StringVar(&opts.TenantID, "tenant", os.Getenv(EnvTenant), "Tenant ID (default: tenant_id claim of the token)")
	pf.StringVar(&opts.UserID, "user", os.Getenv(EnvUser), "User ID (default: user_id claim of the token)")
	pf.StringVar(&opts.Token, "token", "", "Access token (not recommended, use env var or file)")
	pf.StringVar(&opts.TokenFile, "token-file", "", "Path to file containing the access token")
	pf.StringVar(&opts.Format, "format", "text", "Output format: text, json")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "Log sync progress to stderr")

	cmd.AddCommand(NewRecordCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewPushCommand(opts))
	cmd.AddCommand(NewPullCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewConflictsCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewRetryCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// session is an open replica plus the sync service bound to it.
type session struct {
	store *boltdb.Storage
	sync  *sync.Service
}

func (s *session) Close() error {
	return s.store.Close()
}

// openSession opens the replica database. With online set the access token is required and
// tenant and user default to its claims; offline commands only need the database.
func (o *RootOptions) openSession(ctx context.Context, cmd *cobra.Command, online bool) (*session, error) {
	logger := o.logger(cmd.ErrOrStderr())

	apiOpts := []api.Option{api.WithClientVersion(o.Build.Version)}
	tenantID, userID := o.TenantID, o.UserID
	if online {
		token, err := o.resolveToken()
		if err != nil {
			return nil, err
		}
		claims, err := parseClaims(token)
		if err != nil {
			return nil, err
		}
		if tenantID == "" {
			tenantID = claims.TenantID
		}
		if userID == "" {
			userID = claims.UserID
		}
		if tenantID == "" {
			return nil, fmt.Errorf("tenant is unknown: pass --tenant or use a token with a tenant_id claim")
		}
		apiOpts = append(apiOpts, api.WithAccessToken(token))
	}

	store, err := boltdb.New(ctx, o.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	svc := sync.NewService(api.NewClient(o.Server, apiOpts...), store, sync.Config{
		TenantID: tenantID,
		UserID:   userID,
	}, logger)

	return &session{store: store, sync: svc}, nil
}

// withSession runs fn against an open session and closes it afterwards.
func (o *RootOptions) withSession(cmd *cobra.Command, online bool, fn func(ctx context.Context, s *session) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := o.openSession(ctx, cmd, online)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close database: %w", cerr)
		}
	}()
	return fn(ctx, s)
}

func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
