// Package pipeline defines sync runs and executes them end to end.
package pipeline

import (
	"errors"
	"time"

	"github.com/JakeFAU/recruiting-sheets/internal/scrape"
)

// ErrRunNotFound is returned by run stores for unknown IDs.
var ErrRunNotFound = errors.New("run not found")

// RunStatus represents the lifecycle state of a sync run.
type RunStatus string

// Run status values persisted in the run store.
const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Terminal reports whether no further transitions follow.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed
}

// Trigger records what started a run.
type Trigger string

// Run triggers.
const (
	TriggerSchedule Trigger = "schedule"
	TriggerAPI      Trigger = "api"
	TriggerCLI      Trigger = "cli"
)

// Run is one scrape and sheet sync of a listing kind.
type Run struct {
	ID          string      `json:"id"`
	Kind        scrape.Kind `json:"kind"`
	Trigger     Trigger     `json:"trigger"`
	Status      RunStatus   `json:"status"`
	Submitted   time.Time   `json:"submitted_at"`
	Started     *time.Time  `json:"started_at,omitempty"`
	Finished    *time.Time  `json:"finished_at,omitempty"`
	Records     int         `json:"records"`
	RowsWritten int         `json:"rows_written"`
	SnapshotURI string      `json:"snapshot_uri,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// QueueItem wraps a run ready to execute.
type QueueItem struct {
	RunID     string
	Kind      scrape.Kind
	Trigger   Trigger
	Submitted time.Time
}

// Event is published when a run finishes.
type Event struct {
	RunID       string      `json:"run_id"`
	Kind        scrape.Kind `json:"kind"`
	Status      RunStatus   `json:"status"`
	Records     int         `json:"records"`
	RowsWritten int         `json:"rows_written"`
	SnapshotURI string      `json:"snapshot_uri,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// EventOf summarizes a finished run.
func EventOf(run Run) Event {
	return Event{
		RunID:       run.ID,
		Kind:        run.Kind,
		Status:      run.Status,
		Records:     run.Records,
		RowsWritten: run.RowsWritten,
		SnapshotURI: run.SnapshotURI,
		Error:       run.Error,
	}
}

// Attributes returns message attributes subscribers can filter on.
func (e Event) Attributes() map[string]string {
	return map[string]string{
		"kind":   string(e.Kind),
		"status": string(e.Status),
	}
}
