// Package scheduler submits sync runs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/recruiting-sheets/internal/pipeline"
	"github.com/JakeFAU/recruiting-sheets/internal/scrape"
)

// Submitter queues a run.
type Submitter interface {
	Submit(ctx context.Context, kind scrape.Kind, trigger pipeline.Trigger) (pipeline.Run, error)
}

// RunLister reports recent runs so overlapping runs of a kind are skipped.
type RunLister interface {
	ListRuns(ctx context.Context, kind scrape.Kind, limit int) ([]pipeline.Run, error)
}

// Config holds the cron specs. An empty spec disables that job.
type Config struct {
	Location   *time.Location
	Recruits   string
	Portal     string
	RunOnStart bool
}

// Scheduler owns the cron instance.
type Scheduler struct {
	cron      *cron.Cron
	submitter Submitter
	runs      RunLister
	cfg       Config
	logger    *zap.Logger
}

// New validates the specs and registers one entry per enabled kind. runs may be nil.
func New(cfg Config, submitter Submitter, runs RunLister, logger *zap.Logger) (*Scheduler, error) {
	if submitter == nil {
		return nil, errors.New("scheduler requires a submitter")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	logger = logger.Named("scheduler")
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cronLogger{sugar: logger.Sugar()}),
		),
		submitter: submitter,
		runs:      runs,
		cfg:       cfg,
		logger:    logger,
	}
	for kind, spec := range s.specs() {
		if spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(spec, func() { s.trigger(context.Background(), kind) }); err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", kind, spec, err)
		}
		logger.Info("job scheduled", zap.String("kind", string(kind)), zap.String("spec", spec))
	}
	return s, nil
}

func (s *Scheduler) specs() map[scrape.Kind]string {
	return map[scrape.Kind]string{
		scrape.KindRecruits: s.cfg.Recruits,
		scrape.KindPortal:   s.cfg.Portal,
	}
}

// Entries reports the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Run starts the cron loop and blocks until ctx is done, then waits for
// in-flight triggers.
func (s *Scheduler) Run(ctx context.Context) {
	if s.cfg.RunOnStart {
		for kind, spec := range s.specs() {
			if spec != "" {
				s.trigger(ctx, kind)
			}
		}
	}
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}

func (s *Scheduler) trigger(ctx context.Context, kind scrape.Kind) {
	logger := s.logger.With(zap.String("kind", string(kind)))
	if busy, id := s.inFlight(ctx, kind); busy {
		logger.Info("previous run still active; skipping", zap.String("run_id", id))
		return
	}
	run, err := s.submitter.Submit(ctx, kind, pipeline.TriggerSchedule)
	if err != nil {
		logger.Error("scheduled submit failed", zap.Error(err))
		return
	}
	logger.Info("scheduled run submitted", zap.String("run_id", run.ID))
}

func (s *Scheduler) inFlight(ctx context.Context, kind scrape.Kind) (bool, string) {
	if s.runs == nil {
		return false, ""
	}
	runs, err := s.runs.ListRuns(ctx, kind, 1)
	if err != nil {
		s.logger.Warn("list runs failed; submitting anyway", zap.Error(err))
		return false, ""
	}
	if len(runs) == 0 || runs[0].Status.Terminal() {
		return false, ""
	}
	return true, runs[0].ID
}

type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.sugar.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.sugar.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
