package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/david/grant-advisor/internal/app"
	"github.com/david/grant-advisor/internal/config"
	"github.com/david/grant-advisor/internal/logger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Used for flags.
	cfgFile string

	v = config.New()

	rootCmd = &cobra.Command{
		Use:          "advisor",
		Short:        "advisor scores grant announcements for client companies and plans their application calendar",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is grant-advisor.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	if err := v.BindPFlag("log.debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		log.Fatalf("binding debug flag: %v", err)
	}
	if err := v.BindPFlag("log.json", rootCmd.PersistentFlags().Lookup("json")); err != nil {
		log.Fatalf("binding json flag: %v", err)
	}
}

// withApp loads the configuration, builds the application and runs fn. The
// context is cancelled on SIGINT or SIGTERM.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	logger, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		return fmt.Errorf("creating a logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := fn(ctx, a); err != nil {
		logger.Debug("command failed", zap.Error(err))
		return err
	}
	return nil
}

// clientFlag reads the required --client flag.
func clientFlag(cmd *cobra.Command) (uuid.UUID, error) {
	raw, _ := cmd.Flags().GetString("client")
	if raw == "" {
		return uuid.Nil, fmt.Errorf("--client is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("--client: %w", err)
	}
	return id, nil
}

func addClientFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("client", "c", "", "client id")
}

func addFormatFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "table", "output format: table, csv or markdown")
}
