package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"

	"github.com/JakeFAU/recruiting-sheets/internal/metrics"
)

// ErrQuota marks a rate-limit rejection from the sheets backend.
var ErrQuota = errors.New("sheets quota exceeded")

// IsQuota reports whether err is a rate-limit rejection worth retrying.
func IsQuota(err error) bool {
	if errors.Is(err, ErrQuota) {
		return true
	}
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Retrier retries quota rejections with exponential backoff.
type Retrier struct {
	attempts int
	initial  time.Duration
	sleep    SleepFunc
	logger   *zap.Logger
}

// NewRetrier builds a Retrier making up to attempts calls, waiting initial
// before the second and doubling after each further failure.
func NewRetrier(attempts int, initial time.Duration, logger *zap.Logger) *Retrier {
	if attempts <= 0 {
		attempts = 5
	}
	if initial <= 0 {
		initial = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{attempts: attempts, initial: initial, sleep: sleepContext, logger: logger}
}

// WithSleep replaces the wait between attempts.
func (r *Retrier) WithSleep(sleep SleepFunc) *Retrier {
	cp := *r
	cp.sleep = sleep
	return &cp
}

// Do runs fn until it succeeds, fails with a non-quota error, or attempts run out.
func (r *Retrier) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	delay := r.initial
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !IsQuota(err) {
			return err
		}
		if attempt == r.attempts {
			break
		}
		r.logger.Warn("sheets rate limited, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.attempts),
			zap.Duration("delay", delay),
		)
		metrics.ObserveSheetRetry(op)
		if serr := r.sleep(ctx, delay); serr != nil {
			return fmt.Errorf("%s: %w", op, serr)
		}
		delay *= 2
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", op, r.attempts, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
