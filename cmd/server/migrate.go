package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"anomidate/internal/db"
)

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	database, err := db.OpenWithoutMigrations(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(cmd.Context()); err != nil {
		return err
	}

	version, pending, err := database.MigrationStatus(cmd.Context())
	if err != nil {
		return err
	}
	slog.Info("migrations complete", "path", cfg.Database.Path, "version", version, "pending", pending)
	fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
	return nil
}
