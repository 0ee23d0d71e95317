package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/worknest/messaging-api/internal/config"
	"github.com/worknest/messaging-api/internal/infrastructure/database"
	"github.com/worknest/messaging-api/internal/infrastructure/logger"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database schema commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations to DATABASE_URL",
		RunE:  runMigrateUp,
	})
	return cmd
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.UsesInMemoryStore() {
		return fmt.Errorf("DATABASE_URL is not set")
	}

	log := logger.New(cfg)
	db, err := database.Connect(database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    1,
		MaxOpenConns:    2,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		CreateIfMissing: cfg.DBCreateIfMissing,
		SlowQuery:       cfg.DBSlowQuery,
	}, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = database.Close(db) }()

	if err := database.Migrate(cmd.Context(), db, log); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
	return nil
}
