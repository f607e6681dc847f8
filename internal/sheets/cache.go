package sheets

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Opener resolves a worksheet by spreadsheet name and worksheet title.
type Opener interface {
	Open(ctx context.Context, spreadsheet, worksheet string) (Worksheet, error)
}

// HandleCache memoizes opened worksheets for the life of the process.
// Concurrent callers for the same worksheet share a single open, and failed
// opens are not remembered.
type HandleCache struct {
	opener  Opener
	retrier *Retrier

	group   singleflight.Group
	mu      sync.RWMutex
	handles map[string]Worksheet
}

// NewHandleCache wraps opener. Opens run under retrier.
func NewHandleCache(opener Opener, retrier *Retrier) *HandleCache {
	return &HandleCache{
		opener:  opener,
		retrier: retrier,
		handles: make(map[string]Worksheet),
	}
}

// Get returns the cached handle for the worksheet, opening it on first use.
func (c *HandleCache) Get(ctx context.Context, spreadsheet, worksheet string) (Worksheet, error) {
	key := spreadsheet + "\x00" + worksheet
	if ws, ok := c.lookup(key); ok {
		return ws, nil
	}

	// The shared open outlives any single caller; each caller still stops
	// waiting when its own ctx ends.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		if ws, ok := c.lookup(key); ok {
			return ws, nil
		}
		var ws Worksheet
		err := c.retrier.Do(shared, "open", func(ctx context.Context) error {
			var oerr error
			ws, oerr = c.opener.Open(ctx, spreadsheet, worksheet)
			return oerr
		})
		if err != nil {
			return nil, fmt.Errorf("open %q/%q: %w", spreadsheet, worksheet, err)
		}
		c.mu.Lock()
		c.handles[key] = ws
		c.mu.Unlock()
		return ws, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Worksheet), nil
	}
}

// Len reports how many worksheets are cached.
func (c *HandleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handles)
}

func (c *HandleCache) lookup(key string) (Worksheet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ws, ok := c.handles[key]
	return ws, ok
}
