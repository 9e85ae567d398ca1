package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"anomidate/internal/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "anomidate",
		Short:         "Dating site for verified Roblox players",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "config.yaml", "path to config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		RunE:  runServe,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE:  runMigrate,
	}

	operatorCmd := &cobra.Command{
		Use:   "operator",
		Short: "Manage admin console operators",
	}

	addOperatorCmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an operator",
		Args:  cobra.ExactArgs(1),
		RunE:  runAddOperator,
	}
	addOperatorCmd.Flags().String("role", "moderator", "operator role (moderator, admin)")
	addOperatorCmd.Flags().String("password", "", "operator password (read from ANOMIDATE_OPERATOR_PASSWORD when empty)")

	operatorCmd.AddCommand(addOperatorCmd)
	rootCmd.AddCommand(serveCmd, migrateCmd, operatorCmd)

	// Running without a subcommand serves.
	rootCmd.RunE = serveCmd.RunE

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the --config file and installs the configured logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return cfg, nil
}

func newLogger(cfg config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
	default:
		return nil, fmt.Errorf("log.format must be json or text, got %q", cfg.Format)
	}
}
