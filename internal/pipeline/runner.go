package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/recruiting-sheets/internal/metrics"
	"github.com/JakeFAU/recruiting-sheets/internal/scrape"
)

const snapshotContentType = "application/json"

// Config names the sync targets and notification settings.
type Config struct {
	RecruitsSpreadsheet string
	PortalSpreadsheet   string
	SnapshotPrefix      string
	Topic               string
}

// Deps bundles the collaborators of a Runner. Blobs, Publisher and Alerter
// are optional.
type Deps struct {
	Scraper   Scraper
	Sink      Sink
	Runs      RunStore
	Blobs     BlobStore
	Publisher Publisher
	Alerter   Alerter
	Clock     Clock
	IDs       IDGenerator
}

// Runner executes sync runs: scrape, normalize, write the sheet, archive a
// snapshot, record the outcome and announce it.
type Runner struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// NewRunner constructs a Runner.
func NewRunner(deps Deps, cfg Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{deps: deps, cfg: cfg, logger: logger.Named("pipeline")}
}

// Create records a new queued run.
func (r *Runner) Create(ctx context.Context, kind scrape.Kind, trigger Trigger) (Run, error) {
	id, err := r.deps.IDs.NewID()
	if err != nil {
		return Run{}, fmt.Errorf("new run id: %w", err)
	}
	run := Run{
		ID:        id,
		Kind:      kind,
		Trigger:   trigger,
		Status:    RunStatusQueued,
		Submitted: r.deps.Clock.Now(),
	}
	if err := r.deps.Runs.CreateRun(ctx, run); err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// Abandon marks a queued run failed without executing it.
func (r *Runner) Abandon(ctx context.Context, runID string, cause error) error {
	run, err := r.deps.Runs.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}
	if run.Status.Terminal() {
		return nil
	}
	finished := r.deps.Clock.Now()
	run.Status = RunStatusFailed
	run.Finished = &finished
	run.Error = cause.Error()
	if err := r.deps.Runs.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("abandon run: %w", err)
	}
	return nil
}

// Get returns a recorded run.
func (r *Runner) Get(ctx context.Context, runID string) (Run, error) {
	run, err := r.deps.Runs.GetRun(ctx, runID)
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// Execute performs a previously created run and returns its final state. The
// returned error is the run failure, if any; the run itself is recorded
// either way.
func (r *Runner) Execute(ctx context.Context, runID string) (Run, error) {
	run, err := r.deps.Runs.GetRun(ctx, runID)
	if err != nil {
		return Run{}, fmt.Errorf("load run: %w", err)
	}
	logger := r.logger.With(zap.String("run_id", run.ID), zap.String("kind", string(run.Kind)))

	started := r.deps.Clock.Now()
	run.Status = RunStatusRunning
	run.Started = &started
	if err := r.deps.Runs.UpdateRun(ctx, run); err != nil {
		return run, fmt.Errorf("mark run running: %w", err)
	}
	logger.Info("run started", zap.String("trigger", string(run.Trigger)))

	records, rows, snapshot, runErr := r.sync(ctx, run, logger)

	finished := r.deps.Clock.Now()
	run.Finished = &finished
	run.Records = records
	run.RowsWritten = rows
	run.SnapshotURI = snapshot
	if runErr != nil {
		run.Status = RunStatusFailed
		run.Error = runErr.Error()
	} else {
		run.Status = RunStatusSucceeded
	}
	metrics.ObserveRun(string(run.Kind), string(run.Status), finished.Sub(started))

	// Recording must survive a canceled run context.
	bg := context.WithoutCancel(ctx)
	if err := r.deps.Runs.UpdateRun(bg, run); err != nil {
		logger.Error("record run failed", zap.Error(err))
	}
	r.publish(bg, run, logger)
	if runErr != nil {
		logger.Error("run failed", zap.Error(runErr))
		r.alert(bg, run, logger)
		return run, runErr
	}
	logger.Info("run succeeded",
		zap.Int("records", run.Records),
		zap.Int("rows_written", run.RowsWritten),
		zap.Duration("duration", finished.Sub(started)),
	)
	return run, nil
}

// Run creates and executes a run synchronously.
func (r *Runner) Run(ctx context.Context, kind scrape.Kind, trigger Trigger) (Run, error) {
	run, err := r.Create(ctx, kind, trigger)
	if err != nil {
		return Run{}, err
	}
	return r.Execute(ctx, run.ID)
}

func (r *Runner) sync(ctx context.Context, run Run, logger *zap.Logger) (records, rows int, snapshot string, err error) {
	var payload any
	switch run.Kind {
	case scrape.KindRecruits:
		recruits, err := r.deps.Scraper.ScrapeRecruits(ctx)
		if err != nil {
			return 0, 0, "", err
		}
		scrape.NormalizeRecruits(recruits)
		rows, err = r.deps.Sink.SyncRecruits(ctx, recruits, r.cfg.RecruitsSpreadsheet)
		if err != nil {
			return len(recruits), 0, "", fmt.Errorf("sync recruits sheet: %w", err)
		}
		records, payload = len(recruits), recruits
	case scrape.KindPortal:
		entries, err := r.deps.Scraper.ScrapePortal(ctx)
		if err != nil {
			return 0, 0, "", err
		}
		scrape.NormalizePortal(entries)
		rows, err = r.deps.Sink.SyncPortal(ctx, entries, r.cfg.PortalSpreadsheet)
		if err != nil {
			return len(entries), 0, "", fmt.Errorf("sync portal sheet: %w", err)
		}
		records, payload = len(entries), entries
	default:
		return 0, 0, "", fmt.Errorf("unknown run kind %q", run.Kind)
	}

	snapshot, err = r.archive(ctx, run, payload)
	if err != nil {
		// The sheet already holds the new data; a missing snapshot does not fail the run.
		logger.Warn("snapshot archive failed", zap.Error(err))
	}
	return records, rows, snapshot, nil
}

func (r *Runner) archive(ctx context.Context, run Run, payload any) (string, error) {
	if r.deps.Blobs == nil {
		return "", nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	uri, err := r.deps.Blobs.PutObject(ctx, r.snapshotPath(run), snapshotContentType, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("put snapshot: %w", err)
	}
	return uri, nil
}

func (r *Runner) snapshotPath(run Run) string {
	name := fmt.Sprintf("%s/%s/%s.json", run.Kind, run.Submitted.UTC().Format("2006-01-02"), run.ID)
	prefix := strings.Trim(r.cfg.SnapshotPrefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

func (r *Runner) publish(ctx context.Context, run Run, logger *zap.Logger) {
	if r.cfg.Topic == "" || r.deps.Publisher == nil {
		return
	}
	id, err := r.deps.Publisher.Publish(ctx, r.cfg.Topic, EventOf(run))
	if err != nil {
		logger.Error("publish run event failed", zap.Error(err))
		return
	}
	logger.Debug("run event published", zap.String("message_id", id))
}

func (r *Runner) alert(ctx context.Context, run Run, logger *zap.Logger) {
	if r.deps.Alerter == nil {
		return
	}
	subject := fmt.Sprintf("[recruitsync] %s sync failed", run.Kind)
	body := fmt.Sprintf("Run %s (%s) failed at %s:\n\n%s\n",
		run.ID, run.Trigger, run.Finished.Format(time.RFC3339), run.Error)
	if err := r.deps.Alerter.Alert(ctx, subject, body); err != nil {
		logger.Error("send failure alert", zap.Error(err))
	}
}
