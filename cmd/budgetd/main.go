package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"budgetd/internal/config"
	applog "budgetd/internal/log"
	"budgetd/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	root := &cobra.Command{
		Use:   "budgetd",
		Short: "Zero-based budget ledger service",
		Long: "budgetd keeps a zero-based budget: every cent of income is assigned\n" +
			"to a category, bills and paychecks are tracked as occurrences, and\n" +
			"leftovers roll forward month to month.",
		SilenceUsage: true,
	}

	root.AddCommand(newServeCmd(logger))
	root.AddCommand(newMigrateCmd(logger))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newMigrateCmd(logger *applog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("validate configuration: %w", err)
			}
			if cfg.DataBackend != "sqlite" {
				return fmt.Errorf("migrate requires the sqlite backend, have %q", cfg.DataBackend)
			}
			if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			logger.Info("Migrations applied", slog.String("path", cfg.SQLiteDBPath))
			return nil
		},
	}
}
