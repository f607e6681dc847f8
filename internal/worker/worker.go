// Package worker executes queued sync runs.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/recruiting-sheets/internal/metrics"
	"github.com/JakeFAU/recruiting-sheets/internal/pipeline"
	"github.com/JakeFAU/recruiting-sheets/internal/queue/memory"
)

// Executor runs a previously created run to completion.
type Executor interface {
	Execute(ctx context.Context, runID string) (pipeline.Run, error)
}

// Config controls Worker behavior.
type Config struct {
	// RunTimeout bounds a single run. Zero means no limit.
	RunTimeout time.Duration
}

// Worker consumes queue items and executes them one at a time.
type Worker struct {
	id       int
	queue    pipeline.Queue
	executor Executor
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Worker.
func New(id int, queue pipeline.Queue, executor Executor, cfg Config, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		id:       id,
		queue:    queue,
		executor: executor,
		cfg:      cfg,
		logger:   logger.With(zap.Int("worker", id)),
	}
}

// Run blocks, consuming queue items until the context finishes or the queue
// is closed.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, memory.ErrClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued run", zap.String("run_id", item.RunID), zap.String("kind", string(item.Kind)))
		w.process(ctx, item)
	}
}

func (w *Worker) process(ctx context.Context, item pipeline.QueueItem) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	runCtx := ctx
	if w.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.cfg.RunTimeout)
		defer cancel()
	}

	run, err := w.executor.Execute(runCtx, item.RunID)
	if err != nil {
		w.logger.Warn("run finished with error",
			zap.String("run_id", item.RunID),
			zap.String("status", string(run.Status)),
			zap.Error(err),
		)
		return
	}
	w.logger.Debug("run finished", zap.String("run_id", run.ID), zap.String("status", string(run.Status)))
}
