package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/JakeFAU/recruiting-sheets/internal/scrape"
)

// RunStore persists run history.
type RunStore interface {
	CreateRun(ctx context.Context, run Run) error
	UpdateRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, runID string) (Run, error)
	ListRuns(ctx context.Context, kind scrape.Kind, limit int) ([]Run, error)
}

// BlobStore writes run snapshots and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Alerter notifies operators about failed runs.
type Alerter interface {
	Alert(ctx context.Context, subject, body string) error
}

// Queue provides enqueue/dequeue semantics for runs.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Scraper collects listings from upstream.
type Scraper interface {
	ScrapeRecruits(ctx context.Context) ([]scrape.Recruit, error)
	ScrapePortal(ctx context.Context) ([]scrape.PortalEntry, error)
}

// Sink replaces a spreadsheet's contents with listings.
type Sink interface {
	SyncRecruits(ctx context.Context, recruits []scrape.Recruit, spreadsheet string) (int, error)
	SyncPortal(ctx context.Context, entries []scrape.PortalEntry, spreadsheet string) (int, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
