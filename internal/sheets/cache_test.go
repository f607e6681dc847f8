package sheets

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleCacheOpensOncePerKey(t *testing.T) {
	t.Parallel()

	opener := newFakeOpener()
	opener.delay = 20 * time.Millisecond
	cache := NewHandleCache(opener, newTestRetrier(&sleepRecorder{}))

	var wg sync.WaitGroup
	handles := make([]Worksheet, 8)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ws, err := cache.Get(context.Background(), "Recruits", "Sheet1")
			assert.NoError(t, err)
			handles[i] = ws
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), opener.calls.Load())
	for _, ws := range handles {
		assert.Same(t, handles[0], ws)
	}

	_, err := cache.Get(context.Background(), "Recruits", "Sheet1")
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), "Recruits", "Sheet2")
	require.NoError(t, err)
	assert.Equal(t, int32(2), opener.calls.Load())
	assert.Equal(t, 2, cache.Len())
}

func TestHandleCacheDoesNotCacheFailures(t *testing.T) {
	t.Parallel()

	opener := newFakeOpener()
	opener.errs = []error{ErrWorksheetNotFound}
	cache := NewHandleCache(opener, newTestRetrier(&sleepRecorder{}))

	_, err := cache.Get(context.Background(), "Portal", "Sheet1")
	require.ErrorIs(t, err, ErrWorksheetNotFound)
	assert.Equal(t, 0, cache.Len())

	ws, err := cache.Get(context.Background(), "Portal", "Sheet1")
	require.NoError(t, err)
	assert.NotNil(t, ws)
	assert.Equal(t, int32(2), opener.calls.Load())
}

func TestHandleCacheRetriesQuotaOnOpen(t *testing.T) {
	t.Parallel()

	opener := newFakeOpener()
	opener.errs = []error{quotaErr()}
	rec := &sleepRecorder{}
	cache := NewHandleCache(opener, newTestRetrier(rec))

	_, err := cache.Get(context.Background(), "Portal", "Sheet1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), opener.calls.Load())
	assert.Len(t, rec.delays, 1)
}

type gatedOpener struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
	ctxErr  atomic.Value
}

func (o *gatedOpener) Open(ctx context.Context, _, _ string) (Worksheet, error) {
	if o.calls.Add(1) == 1 {
		close(o.started)
	}
	<-o.release
	if err := ctx.Err(); err != nil {
		o.ctxErr.Store(err)
		return nil, err
	}
	return &fakeWorksheet{}, nil
}

func TestHandleCacheCanceledCallerDoesNotFailWaiters(t *testing.T) {
	t.Parallel()

	opener := &gatedOpener{started: make(chan struct{}), release: make(chan struct{})}
	cache := NewHandleCache(opener, newTestRetrier(&sleepRecorder{}))

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.Get(firstCtx, "Recruits", "Sheet1")
		firstErr <- err
	}()
	<-opener.started

	type result struct {
		ws  Worksheet
		err error
	}
	second := make(chan result, 1)
	go func() {
		ws, err := cache.Get(context.Background(), "Recruits", "Sheet1")
		second <- result{ws, err}
	}()

	cancelFirst()
	err := <-firstErr
	require.ErrorIs(t, err, context.Canceled)

	close(opener.release)
	res := <-second
	require.NoError(t, res.err)
	assert.NotNil(t, res.ws)
	assert.Nil(t, opener.ctxErr.Load())
	assert.Equal(t, int32(1), opener.calls.Load())
	assert.Equal(t, 1, cache.Len())
}
