package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/recruiting-sheets/internal/pipeline"
	"github.com/JakeFAU/recruiting-sheets/internal/scrape"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "sync recruits|portal",
		Short:     "Scrapes one listing and rewrites its spreadsheet",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(scrape.KindRecruits), string(scrape.KindPortal)},
		RunE:      runSync,
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	kind, ok := scrape.ParseKind(args[0])
	if !ok {
		return fmt.Errorf("unknown listing %q", args[0])
	}
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), e.cfg, e.logger)
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}
	defer a.Close()

	run, err := a.Runner().Run(cmd.Context(), kind, pipeline.TriggerCLI)
	if err != nil {
		return fmt.Errorf("%s sync failed: %w", kind, err)
	}
	e.logger.Info("sync complete",
		zap.String("run_id", run.ID),
		zap.Int("records", run.Records),
		zap.Int("rows_written", run.RowsWritten),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records, %d rows written (run %s)\n",
		kind, run.Records, run.RowsWritten, run.ID)
	return nil
}
