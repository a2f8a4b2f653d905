package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nutritrack/backend/config"
	"github.com/nutritrack/backend/internal/infrastructure/store"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.
Serve and reconcile migrate on startup as well; this command exists for
provisioning a database ahead of time.`,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	slog.Info("running database migrations", "database", cfg.Database.Path)

	st, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = st.Close() }()

	if err := st.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed")
	return nil
}
