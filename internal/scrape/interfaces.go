package scrape

import (
	"context"
	"time"
)

// Fetcher retrieves a listing page and returns its parsed document.
// Network failures and HTTP error statuses are returned as errors.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Node, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
