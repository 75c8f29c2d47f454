package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/multierr"

	"github.com/iudanet/booksync/internal/conflict"
	"github.com/iudanet/booksync/internal/entity"
	"github.com/iudanet/booksync/internal/server/config"
	"github.com/iudanet/booksync/internal/server/engine"
	"github.com/iudanet/booksync/internal/server/handlers"
	"github.com/iudanet/booksync/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	mintToken := flag.String("mint-token", "", "Print a development access token for user:tenant and exit")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	if *mintToken != "" {
		if err := printDevToken(cfg, *mintToken); err != nil {
			fmt.Fprintf(os.Stderr, "mint token: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) (err error) {
	logger, logCloser, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, logCloser.Close()) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(ctx, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	table := conflict.DefaultStrategyTable()
	if cfg.Sync.StrategyFile != "" {
		if table, err = conflict.LoadStrategyTable(cfg.Sync.StrategyFile); err != nil {
			return err
		}
	}

	registry := entity.DefaultRegistry()
	eng := engine.New(store, registry, conflict.NewResolver(table, registry), logger,
		engine.WithMaxDownloadEntities(cfg.Sync.MaxDownloadEntities))
	orch := engine.NewOrchestrator(eng, cfg.Sync.MaxConcurrency, logger)

	router, cleanup := newRouter(cfg, logger, eng, orch)
	defer cleanup()

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("booksync server starting",
			slog.String("address", cfg.Server.Address),
			slog.String("version", Version),
			slog.String("db", cfg.Database.Path),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// printDevToken выпускает токен для локальной разработки (только ENV=development)
func printDevToken(cfg *config.Config, pair string) error {
	if !cfg.IsDevelopment() {
		return errors.New("tokens can only be minted in development")
	}
	userID, tenantID, ok := strings.Cut(pair, ":")
	if !ok || userID == "" || tenantID == "" {
		return fmt.Errorf("expected user:tenant, got %q", pair)
	}
	token, _, err := handlers.GenerateAccessToken(jwtConfig(cfg), userID, tenantID)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func jwtConfig(cfg *config.Config) handlers.JWTConfig {
	return handlers.JWTConfig{
		Secret:         []byte(cfg.JWT.Secret),
		Issuer:         cfg.JWT.Issuer,
		AccessTokenTTL: cfg.JWT.AccessTokenTTL,
	}
}

func printVersion() {
	fmt.Printf("booksync server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
