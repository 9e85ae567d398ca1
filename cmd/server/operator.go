package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"anomidate/internal/db"
	"anomidate/internal/models"
	"anomidate/internal/moderation"
)

func runAddOperator(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	role, _ := cmd.Flags().GetString("role")
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv("ANOMIDATE_OPERATOR_PASSWORD")
	}
	if password == "" {
		return errors.New("a password is required: pass --password or set ANOMIDATE_OPERATOR_PASSWORD")
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	svc := moderation.NewService(database, cfg.Swipe.Location())
	op, err := svc.CreateOperator(cmd.Context(), args[0], password, models.Role(role))
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created %s %q (id %d)\n", op.Role, op.Username, op.ID)
	return nil
}
