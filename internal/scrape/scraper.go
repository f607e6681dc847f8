package scrape

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/recruiting-sheets/internal/clock/system"
)

// Config carries the values the scraper consumes.
type Config struct {
	BaseURL              string
	Season               int
	BatchSize            int
	MaxWorkers           int
	MaxPages             int
	MinEntriesToContinue int
	StaleAfterDays       int
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("scrape.base_url must be set")
	}
	if c.Season <= 0 {
		return errors.New("scrape.season must be > 0")
	}
	if c.BatchSize <= 0 {
		return errors.New("scrape.batch_size must be > 0")
	}
	if c.MaxWorkers <= 0 {
		return errors.New("scrape.max_workers must be > 0")
	}
	if c.MaxPages < 0 {
		return errors.New("scrape.max_pages must be >= 0")
	}
	if c.MinEntriesToContinue < 0 {
		return errors.New("scrape.min_entries_to_continue must be >= 0")
	}
	if c.StaleAfterDays <= 0 {
		return errors.New("scrape.stale_after_days must be > 0")
	}
	return nil
}

// Scraper drives page fetching for both listing kinds.
type Scraper struct {
	cfg     Config
	fetcher Fetcher
	clock   Clock
	logger  *zap.Logger
}

// New constructs a Scraper.
func New(cfg Config, fetcher Fetcher, clock Clock, logger *zap.Logger) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = system.New()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Scraper{
		cfg:     cfg,
		fetcher: fetcher,
		clock:   clock,
		logger:  logger,
	}
}

// RecruitsURL returns the rankings URL for page.
func (s *Scraper) RecruitsURL(page int) string {
	return fmt.Sprintf("%s/Season/%d-Football/CompositeRecruitRankings/?Page=%d", s.cfg.BaseURL, s.cfg.Season, page)
}

// PortalURL returns the transfer portal URL for page.
func (s *Scraper) PortalURL(page int) string {
	return fmt.Sprintf("%s/Season/%d-Football/TransferPortal/?Page=%d", s.cfg.BaseURL, s.cfg.Season, page)
}

func (s *Scraper) options(kind Kind) Options {
	return Options{
		BatchSize:  s.cfg.BatchSize,
		MaxWorkers: s.cfg.MaxWorkers,
		MaxPages:   s.cfg.MaxPages,
		Logger:     s.logger.With(zap.String("kind", string(kind))),
	}
}
