package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tutorconnect/coin_ledger/internal/config"
	"github.com/tutorconnect/coin_ledger/internal/infra"
	"github.com/tutorconnect/coin_ledger/internal/logging"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Duration("timeout", 30*time.Second, "Maximum time to wait for the database")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the ledger schema to DATABASE_URL",
	Long: `Apply the embedded schema. Every statement is idempotent, so running
migrate against an up to date database is a no-op.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(logging.Options{Level: cfg.LogLevel, Service: cfg.AppName, Env: cfg.AppEnv, Text: cfg.IsDev()})
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := infra.Migrate(ctx, db); err != nil {
		return err
	}
	logger.Info("schema applied")
	return nil
}
