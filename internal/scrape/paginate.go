package scrape

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PageFunc fetches and parses one page.
type PageFunc[T any] func(ctx context.Context, page int) (Page[T], error)

// StopFunc reports whether pagination should end after the batch holding page.
type StopFunc[T any] func(page Page[T]) bool

// Options bounds a pagination run.
type Options struct {
	BatchSize  int
	MaxWorkers int
	// MaxPages ends pagination after the batch that reaches it. Zero means unbounded.
	MaxPages int
	Logger   *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 5
	}
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = 5
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// FetchAll walks pages from start in contiguous batches of BatchSize, fetching
// each batch on at most MaxWorkers goroutines. Once a batch has fully joined,
// its pages are merged into idx in page order and checked against stop; any
// stop signal ends pagination after that batch. A page error aborts the walk.
func FetchAll[T comparable](
	ctx context.Context,
	opts Options,
	idx *Index[T],
	start int,
	fetch PageFunc[T],
	stop StopFunc[T],
) error {
	opts = opts.withDefaults()
	logger := opts.Logger

	for page := start; ; page += opts.BatchSize {
		results, err := fetchBatch(ctx, opts, page, fetch)
		if err != nil {
			return err
		}

		halt := false
		for _, res := range results {
			added := idx.Merge(res.Records)
			logger.Debug("page merged",
				zap.Int("page", res.Number),
				zap.Int("items", res.Items),
				zap.Int("records", len(res.Records)),
				zap.Int("added", added),
				zap.Bool("stale", res.Stale),
			)
			if stop(res) {
				logger.Info("stop signal",
					zap.Int("page", res.Number),
					zap.Int("records", len(res.Records)),
					zap.Bool("stale", res.Stale),
				)
				halt = true
			}
		}
		last := page + opts.BatchSize - 1
		if opts.MaxPages > 0 && last >= opts.MaxPages {
			logger.Warn("page ceiling reached", zap.Int("max_pages", opts.MaxPages))
			halt = true
		}
		if halt {
			return nil
		}
	}
}

func fetchBatch[T any](ctx context.Context, opts Options, first int, fetch PageFunc[T]) ([]Page[T], error) {
	results := make([]Page[T], opts.BatchSize)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.MaxWorkers)
	for i := range results {
		number := first + i
		g.Go(func() error {
			res, err := fetch(gctx, number)
			if err != nil {
				return fmt.Errorf("page %d: %w", number, err)
			}
			res.Number = number
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
