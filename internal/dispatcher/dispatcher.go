// Package dispatcher accepts run submissions and fans them out to workers.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/recruiting-sheets/internal/pipeline"
	"github.com/JakeFAU/recruiting-sheets/internal/scrape"
	"github.com/JakeFAU/recruiting-sheets/internal/worker"
)

// Creator records new runs and fails ones that never reach a worker.
type Creator interface {
	Create(ctx context.Context, kind scrape.Kind, trigger pipeline.Trigger) (pipeline.Run, error)
	Abandon(ctx context.Context, runID string, cause error) error
}

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue   pipeline.Queue
	creator Creator
	workers []*worker.Worker
	logger  *zap.Logger
}

// New creates a Dispatcher.
func New(queue pipeline.Queue, creator Creator, workers []*worker.Worker, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:   queue,
		creator: creator,
		workers: workers,
		logger:  logger.Named("dispatcher"),
	}
}

// Run starts all workers and blocks until they return.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	wg.Wait()
}

// Submit records a queued run and hands it to the worker pool.
func (d *Dispatcher) Submit(ctx context.Context, kind scrape.Kind, trigger pipeline.Trigger) (pipeline.Run, error) {
	run, err := d.creator.Create(ctx, kind, trigger)
	if err != nil {
		return pipeline.Run{}, err
	}
	item := pipeline.QueueItem{
		RunID:     run.ID,
		Kind:      run.Kind,
		Trigger:   run.Trigger,
		Submitted: run.Submitted,
	}
	if err := d.queue.Enqueue(ctx, item); err != nil {
		if abandonErr := d.creator.Abandon(context.WithoutCancel(ctx), run.ID, err); abandonErr != nil {
			d.logger.Error("abandon unqueued run", zap.String("run_id", run.ID), zap.Error(abandonErr))
		}
		return pipeline.Run{}, fmt.Errorf("queue enqueue: %w", err)
	}
	d.logger.Info("run queued",
		zap.String("run_id", run.ID),
		zap.String("kind", string(kind)),
		zap.String("trigger", string(trigger)),
	)
	return run, nil
}
