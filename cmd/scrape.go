package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/recruiting-sheets/internal/scrape"
)

func newScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "scrape recruits|portal",
		Short:     "Scrapes one listing and prints the records as JSON",
		Long:      "Scrapes one listing without touching any spreadsheet. Records are normalized before printing.",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(scrape.KindRecruits), string(scrape.KindPortal)},
		RunE:      runScrape,
	}
}

func runScrape(cmd *cobra.Command, args []string) error {
	kind, ok := scrape.ParseKind(args[0])
	if !ok {
		return fmt.Errorf("unknown listing %q", args[0])
	}
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	scraper := newScraper(e.cfg, e.logger)

	var records any
	switch kind {
	case scrape.KindRecruits:
		recruits, err := scraper.ScrapeRecruits(cmd.Context())
		if err != nil {
			return err
		}
		scrape.NormalizeRecruits(recruits)
		records = recruits
	case scrape.KindPortal:
		entries, err := scraper.ScrapePortal(cmd.Context())
		if err != nil {
			return err
		}
		scrape.NormalizePortal(entries)
		records = entries
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	return nil
}
