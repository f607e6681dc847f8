// Package cmd defines the recruitsync command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/recruiting-sheets/internal/app"
	"github.com/JakeFAU/recruiting-sheets/internal/config"
	"github.com/JakeFAU/recruiting-sheets/internal/logging"
	"github.com/JakeFAU/recruiting-sheets/internal/pipeline"
)

type envKey struct{}

// env carries what PersistentPreRunE prepared for a subcommand.
type env struct {
	cfg    config.Config
	logger *zap.Logger
}

// Factories are variables so tests can substitute them.
var (
	newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
		return app.New(ctx, cfg, logger)
	}
	newScraper = func(cfg config.Config, logger *zap.Logger) pipeline.Scraper {
		return app.NewScraper(cfg, logger)
	}
)

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "recruitsync",
		Short: "Scrapes recruit rankings and the transfer portal into Google Sheets.",
		Long: `recruitsync scrapes the 247Sports composite recruit rankings and transfer
portal listings, deduplicates and normalizes them, and rewrites the configured
Google spreadsheets. It can run once from the command line or as a service
with a scheduler and HTTP API.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			cmd.SetContext(context.WithValue(cmd.Context(), envKey{}, &env{cfg: cfg, logger: logger}))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if e, ok := cmd.Context().Value(envKey{}).(*env); ok {
				_ = e.logger.Sync()
			}
		},
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")

	cmd.AddCommand(newServeCmd(), newSyncCmd(), newScrapeCmd())
	return cmd
}

func resolveEnv(ctx context.Context) (*env, error) {
	e, ok := ctx.Value(envKey{}).(*env)
	if !ok || e == nil {
		return nil, errors.New("command environment not initialized")
	}
	return e, nil
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
