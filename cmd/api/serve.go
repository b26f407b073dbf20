package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/tutorconnect/coin_ledger/internal/config"
	"github.com/tutorconnect/coin_ledger/internal/infra"
	"github.com/tutorconnect/coin_ledger/internal/logging"
	"github.com/tutorconnect/coin_ledger/internal/server"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("migrate", false, "Apply the schema before serving")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the pending order sweeper",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(logging.Options{Level: cfg.LogLevel, Service: cfg.AppName, Env: cfg.AppEnv, Text: cfg.IsDev()})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, cache, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	if cache != nil {
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	}

	if migrate, _ := cmd.Flags().GetBool("migrate"); migrate && db != nil {
		if err := infra.Migrate(ctx, db); err != nil {
			return err
		}
		logger.Info("schema applied")
	}

	srv, err := server.New(cfg, db, cache, logger)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen(ctx)
	}()
	logger.Info("coin ledger listening",
		"address", cfg.Address(),
		"env", cfg.AppEnv,
		"mock_payments", cfg.MockPayments,
		"postgres", db != nil,
		"redis", cache != nil,
	)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-srvErrCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server exited cleanly")
	return nil
}

// connect opens Postgres and Redis. In development an unset URL leaves the
// client nil and the server falls back to in-memory stores.
func connect(ctx context.Context, cfg config.Config, logger *slog.Logger) (*pgxpool.Pool, *redis.Client, error) {
	var (
		db    *pgxpool.Pool
		cache *redis.Client
		err   error
	)
	if cfg.DatabaseURL != "" || !cfg.IsDev() {
		if db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory ledger")
	}
	if cfg.RedisURL != "" || !cfg.IsDev() {
		if cache, err = infra.NewRedisClient(ctx, cfg.RedisURL); err != nil {
			if db != nil {
				db.Close()
			}
			return nil, nil, err
		}
	} else {
		logger.Warn("REDIS_URL not set, using in-memory access cache")
	}
	return db, cache, nil
}
