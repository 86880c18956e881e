package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/upb/coffee-shop/app"
	"github.com/upb/coffee-shop/config"
	"github.com/upb/coffee-shop/internal/observability"
	"github.com/upb/coffee-shop/repositories/postgres"
	"github.com/upb/coffee-shop/routes"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "drinks-api:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "drinks-api",
		Short:         "Coffee shop drinks menu API",
		Long:          "Serves the drinks menu. Reads are public; changes require an Auth0 bearer token carrying the matching permission.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCommand(), newMigrateCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	var migrateFirst bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, logger, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			deps, err := app.NewDependencies(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := deps.Close(context.Background()); err != nil {
					logger.Error("failed to close dependencies", zap.Error(err))
				}
			}()

			if migrateFirst {
				if err := deps.DB.InitSchema(ctx); err != nil {
					return err
				}
			}

			srv := &http.Server{
				Addr:              cfg.Server.Address(),
				Handler:           routes.SetupRoutes(deps),
				ReadTimeout:       cfg.Server.ReadTimeout,
				ReadHeaderTimeout: 5 * time.Second,
				WriteTimeout:      cfg.Server.WriteTimeout,
			}

			listener, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
			}

			return serve(ctx, srv, listener, cfg.Server, logger)
		},
	}

	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "Create the drinks table before serving if it does not exist")
	return cmd
}

// serve runs srv on listener until ctx is cancelled, then drains in-flight requests
func serve(ctx context.Context, srv *http.Server, listener net.Listener, cfg config.ServerConfig, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.TLS.Enabled {
			err = srv.ServeTLS(listener, cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			err = srv.Serve(listener)
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logger.Info("drinks-api listening",
		zap.String("addr", listener.Addr().String()),
		zap.Bool("tls", cfg.TLS.Enabled),
		zap.String("version", version))

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func newMigrateCommand() *cobra.Command {
	var (
		reset bool
		seed  bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the drinks table",
		Long:  "Creates the drinks table if missing. --reset drops it first and destroys every drink.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, logger, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			db, err := postgres.NewDB(cfg.Database, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			return migrate(ctx, db, reset, seed)
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "Drop and recreate the drinks table")
	cmd.Flags().BoolVar(&seed, "seed", false, "Insert a sample drink")
	return cmd
}

func migrate(ctx context.Context, db *postgres.DB, reset, seed bool) error {
	if reset {
		return db.ResetSchema(ctx, seed)
	}
	if err := db.InitSchema(ctx); err != nil {
		return err
	}
	if seed {
		return db.Seed(ctx)
	}
	return nil
}

func bootstrap(ctx context.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.New(ctx)
	if err != nil {
		return nil, nil, err
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger = logger.With(zap.String("service", "drinks-api"), zap.String("environment", cfg.Environment))
	return cfg, logger, nil
}
