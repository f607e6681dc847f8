// Package app builds the long-lived services from configuration and owns
// their shutdown.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/recruiting-sheets/internal/alert"
	"github.com/JakeFAU/recruiting-sheets/internal/api"
	"github.com/JakeFAU/recruiting-sheets/internal/clock/system"
	"github.com/JakeFAU/recruiting-sheets/internal/config"
	"github.com/JakeFAU/recruiting-sheets/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/recruiting-sheets/internal/fetcher/colly"
	"github.com/JakeFAU/recruiting-sheets/internal/id/uuid"
	"github.com/JakeFAU/recruiting-sheets/internal/pipeline"
	"github.com/JakeFAU/recruiting-sheets/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/recruiting-sheets/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/recruiting-sheets/internal/publisher/pubsub"
	queuememory "github.com/JakeFAU/recruiting-sheets/internal/queue/memory"
	"github.com/JakeFAU/recruiting-sheets/internal/scheduler"
	"github.com/JakeFAU/recruiting-sheets/internal/scrape"
	"github.com/JakeFAU/recruiting-sheets/internal/sheets"
	gcsstorage "github.com/JakeFAU/recruiting-sheets/internal/storage/gcs"
	localstorage "github.com/JakeFAU/recruiting-sheets/internal/storage/local"
	memorystorage "github.com/JakeFAU/recruiting-sheets/internal/storage/memory"
	pgstore "github.com/JakeFAU/recruiting-sheets/internal/storage/postgres"
	"github.com/JakeFAU/recruiting-sheets/internal/worker"
)

// Option overrides a collaborator, mainly for tests.
type Option func(*options)

type options struct {
	fetcher scrape.Fetcher
	opener  sheets.Opener
	sleep   sheets.SleepFunc
}

// WithFetcher replaces the upstream HTTP fetcher.
func WithFetcher(f scrape.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithOpener replaces the Google Sheets backend.
func WithOpener(op sheets.Opener) Option {
	return func(o *options) { o.opener = op }
}

// WithRetrySleep replaces the backoff sleep of the sheet retrier.
func WithRetrySleep(fn sheets.SleepFunc) Option {
	return func(o *options) { o.sleep = fn }
}

// App holds the shared services.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	scraper    *scrape.Scraper
	runs       pipeline.RunStore
	runner     *pipeline.Runner
	queue      *queuememory.Queue
	dispatcher *dispatcher.Dispatcher
	closers    []func() error
}

// NewScraper builds the listing scraper alone; it needs no Google access.
func NewScraper(cfg config.Config, logger *zap.Logger, opts ...Option) *scrape.Scraper {
	o := applyOptions(opts)
	return newScraper(cfg, logger, o)
}

func newScraper(cfg config.Config, logger *zap.Logger, o options) *scrape.Scraper {
	fetcher := o.fetcher
	if fetcher == nil {
		limiter := ratelimit.New(ratelimit.Config{RPS: cfg.Scrape.RequestsPerSecond, Burst: cfg.Scrape.MaxWorkers})
		fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Scrape.UserAgent,
			Timeout:   cfg.Scrape.RequestTimeout,
		}, limiter, logger.Named("fetcher"))
	}
	return scrape.New(cfg.ScrapeSettings(), fetcher, system.New(), logger.Named("scrape"))
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New initializes every service named by cfg. It fails fast when a backend
// cannot be reached; whatever was opened before the failure is closed.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := applyOptions(opts)
	a := &App{cfg: cfg, logger: logger}
	initialized := false
	defer func() {
		if !initialized {
			a.Close()
		}
	}()

	a.scraper = newScraper(cfg, logger, o)

	sink, err := a.buildSink(ctx, o)
	if err != nil {
		return nil, err
	}
	runs, err := a.buildRunStore(ctx)
	if err != nil {
		return nil, err
	}
	a.runs = runs
	blobs, err := a.buildBlobStore(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := a.buildPublisher(ctx)
	if err != nil {
		return nil, err
	}
	alerter, err := a.buildAlerter()
	if err != nil {
		return nil, err
	}

	a.runner = pipeline.NewRunner(pipeline.Deps{
		Scraper:   a.scraper,
		Sink:      sink,
		Runs:      a.runs,
		Blobs:     blobs,
		Publisher: publisher,
		Alerter:   alerter,
		Clock:     system.New(),
		IDs:       uuid.New(),
	}, pipeline.Config{
		RecruitsSpreadsheet: cfg.Sheets.RecruitsSpreadsheet,
		PortalSpreadsheet:   cfg.Sheets.PortalSpreadsheet,
		SnapshotPrefix:      cfg.Storage.Prefix,
		Topic:               cfg.PubSub.TopicName,
	}, logger)

	a.queue = queuememory.NewQueue(cfg.Runs.QueueDepth)
	var workers []*worker.Worker
	for i := 0; i < cfg.Runs.Workers; i++ {
		workers = append(workers, worker.New(i, a.queue, a.runner, worker.Config{RunTimeout: cfg.Runs.Timeout}, logger.Named("worker")))
	}
	a.dispatcher = dispatcher.New(a.queue, a.runner, workers, logger)
	logger.Info("application services initialized",
		zap.String("storage", cfg.Storage.Backend),
		zap.Bool("postgres", cfg.DB.DSN != ""),
		zap.Bool("pubsub", cfg.PubSub.TopicName != ""),
		zap.Bool("alerts", cfg.Alert.SMTPHost != ""),
		zap.Int("workers", cfg.Runs.Workers),
	)
	initialized = true
	return a, nil
}

func (a *App) buildSink(ctx context.Context, o options) (*sheets.Writer, error) {
	retrier := sheets.NewRetrier(a.cfg.Sheets.RetryAttempts, a.cfg.Sheets.RetryInitial, a.logger)
	if o.sleep != nil {
		retrier = retrier.WithSleep(o.sleep)
	}
	opener := o.opener
	if opener == nil {
		g, err := sheets.NewGoogleOpener(ctx, a.cfg.Sheets.Credentials)
		if err != nil {
			return nil, fmt.Errorf("initialize sheets: %w", err)
		}
		opener = g
	}
	return sheets.NewWriter(sheets.Config{
		Worksheet:    a.cfg.Sheets.Worksheet,
		BioBaseURL:   a.cfg.Sheets.BioBaseURL,
		StarsFormula: a.cfg.Sheets.StarsFormula,
	}, sheets.NewHandleCache(opener, retrier), retrier, a.logger), nil
}

func (a *App) buildRunStore(ctx context.Context) (pipeline.RunStore, error) {
	if a.cfg.DB.DSN == "" {
		a.logger.Info("using in-memory run history")
		return memorystorage.NewRunStore(), nil
	}
	store, err := pgstore.NewRunStore(ctx, pgstore.Config{DSN: a.cfg.DB.DSN, Table: a.cfg.DB.Table})
	if err != nil {
		return nil, fmt.Errorf("initialize run store: %w", err)
	}
	a.closers = append(a.closers, func() error { store.Close(); return nil })
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	a.logger.Info("using postgres run history", zap.String("table", a.cfg.DB.Table))
	return store, nil
}

func (a *App) buildBlobStore(ctx context.Context) (pipeline.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case config.StorageLocal:
		store, err := localstorage.New(a.cfg.Storage.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("initialize local storage: %w", err)
		}
		return store, nil
	case config.StorageGCS:
		store, err := gcsstorage.Dial(ctx, a.cfg.Storage.GCSBucket, a.logger)
		if err != nil {
			return nil, fmt.Errorf("initialize gcs storage: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case config.StorageMemory, "":
		return memorystorage.NewBlobStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", a.cfg.Storage.Backend)
	}
}

func (a *App) buildPublisher(ctx context.Context) (pipeline.Publisher, error) {
	if a.cfg.PubSub.ProjectID == "" {
		return memorypublisher.New(), nil
	}
	p, err := gcppublisher.Dial(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("initialize pubsub: %w", err)
	}
	a.closers = append(a.closers, p.Close)
	return p, nil
}

func (a *App) buildAlerter() (pipeline.Alerter, error) {
	cfg := alert.Config{
		Host:     a.cfg.Alert.SMTPHost,
		Port:     a.cfg.Alert.SMTPPort,
		Username: a.cfg.Alert.Username,
		Password: a.cfg.Alert.Password,
		From:     a.cfg.Alert.From,
		To:       a.cfg.Alert.To,
	}
	if !cfg.Enabled() {
		return alert.NewLog(a.logger), nil
	}
	m, err := alert.NewMailer(cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("initialize alerts: %w", err)
	}
	return m, nil
}

// Runner executes runs synchronously.
func (a *App) Runner() *pipeline.Runner {
	return a.runner
}

// Dispatcher accepts submissions and drives the worker pool.
func (a *App) Dispatcher() *dispatcher.Dispatcher {
	return a.dispatcher
}

// Scraper returns the listing scraper.
func (a *App) Scraper() *scrape.Scraper {
	return a.scraper
}

// Scheduler builds the cron scheduler for the configured jobs.
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	loc, err := a.cfg.Location()
	if err != nil {
		return nil, err
	}
	s, err := scheduler.New(scheduler.Config{
		Location:   loc,
		Recruits:   a.cfg.Schedule.Recruits,
		Portal:     a.cfg.Schedule.Portal,
		RunOnStart: a.cfg.Schedule.RunOnStart,
	}, a.dispatcher, a.runs, a.logger)
	if err != nil {
		return nil, fmt.Errorf("build scheduler: %w", err)
	}
	return s, nil
}

// APIServer builds the HTTP API over the app's services.
func (a *App) APIServer() *api.Server {
	return api.NewServer(api.Deps{
		Submitter: a.dispatcher,
		Runs:      a.runs,
		Scraper:   a.scraper,
		Ready:     a.ready,
	}, a.cfg, a.logger)
}

func (a *App) ready(context.Context) error {
	if a.queue == nil {
		return errors.New("run queue not initialized")
	}
	if a.queue.Len() >= a.cfg.Runs.QueueDepth {
		return errors.New("run queue full")
	}
	return nil
}

// Close stops accepting runs and releases backend clients.
func (a *App) Close() {
	if a.queue != nil {
		a.queue.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close service failed", zap.Error(err))
		}
	}
	a.closers = nil
}
