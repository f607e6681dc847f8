// Package sheets publishes scraped listings to Google Sheets worksheets.
package sheets

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/recruiting-sheets/internal/metrics"
	"github.com/JakeFAU/recruiting-sheets/internal/scrape"
)

// Worksheet is an opened worksheet.
type Worksheet interface {
	// Clear removes every value from the worksheet.
	Clear(ctx context.Context) error
	// Update writes rows starting at the A1-notation cell, parsing values as
	// if typed by a user so formulas stay live.
	Update(ctx context.Context, cell string, rows [][]any) error
}

// Config controls how rows are rendered and where they land.
type Config struct {
	Worksheet    string
	BioBaseURL   string
	StarsFormula bool
}

// Writer replaces worksheet contents with freshly rendered rows.
type Writer struct {
	cfg     Config
	cache   *HandleCache
	retrier *Retrier
	logger  *zap.Logger
}

// NewWriter constructs a Writer.
func NewWriter(cfg Config, cache *HandleCache, retrier *Retrier, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Worksheet == "" {
		cfg.Worksheet = "Sheet1"
	}
	return &Writer{cfg: cfg, cache: cache, retrier: retrier, logger: logger.Named("sheets")}
}

// Write clears the worksheet and writes rows from A1. It returns the number of
// rows written, header included.
func (w *Writer) Write(ctx context.Context, rows [][]any, spreadsheet, worksheet string) (int, error) {
	n, err := w.write(ctx, rows, spreadsheet, worksheet)
	if err != nil {
		metrics.ObserveSheetWrite("error")
		return 0, err
	}
	metrics.ObserveSheetWrite("ok")
	w.logger.Info("worksheet written",
		zap.String("spreadsheet", spreadsheet),
		zap.String("worksheet", worksheet),
		zap.Int("rows", n),
	)
	return n, nil
}

func (w *Writer) write(ctx context.Context, rows [][]any, spreadsheet, worksheet string) (int, error) {
	ws, err := w.cache.Get(ctx, spreadsheet, worksheet)
	if err != nil {
		return 0, err
	}
	if err := w.retrier.Do(ctx, "clear", ws.Clear); err != nil {
		return 0, fmt.Errorf("clear %q/%q: %w", spreadsheet, worksheet, err)
	}
	err = w.retrier.Do(ctx, "update", func(ctx context.Context) error {
		return ws.Update(ctx, "A1", rows)
	})
	if err != nil {
		return 0, fmt.Errorf("update %q/%q: %w", spreadsheet, worksheet, err)
	}
	return len(rows), nil
}

// SyncRecruits writes recruits to the configured worksheet of spreadsheet.
func (w *Writer) SyncRecruits(ctx context.Context, recruits []scrape.Recruit, spreadsheet string) (int, error) {
	return w.Write(ctx, RecruitRows(w.cfg.BioBaseURL, recruits), spreadsheet, w.cfg.Worksheet)
}

// SyncPortal writes portal entries to the configured worksheet of spreadsheet.
func (w *Writer) SyncPortal(ctx context.Context, entries []scrape.PortalEntry, spreadsheet string) (int, error) {
	return w.Write(ctx, PortalRows(w.cfg.BioBaseURL, entries, w.cfg.StarsFormula), spreadsheet, w.cfg.Worksheet)
}
