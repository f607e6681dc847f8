package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/recruiting-sheets/internal/pipeline"
	"github.com/JakeFAU/recruiting-sheets/internal/scrape"
)

// RunStore keeps run history in memory for development and tests.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]pipeline.Run
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]pipeline.Run)}
}

// CreateRun stores a new run.
func (s *RunStore) CreateRun(_ context.Context, run pipeline.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

// UpdateRun replaces a stored run.
func (s *RunStore) UpdateRun(_ context.Context, run pipeline.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return fmt.Errorf("%w: %s", pipeline.ErrRunNotFound, run.ID)
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

// GetRun fetches a run by ID.
func (s *RunStore) GetRun(_ context.Context, runID string) (pipeline.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return pipeline.Run{}, fmt.Errorf("%w: %s", pipeline.ErrRunNotFound, runID)
	}
	return cloneRun(run), nil
}

// ListRuns returns the most recently submitted runs, newest first. An empty
// kind matches every kind; a non-positive limit returns all.
func (s *RunStore) ListRuns(_ context.Context, kind scrape.Kind, limit int) ([]pipeline.Run, error) {
	s.mu.RLock()
	out := make([]pipeline.Run, 0, len(s.runs))
	for _, run := range s.runs {
		if kind == "" || run.Kind == kind {
			out = append(out, cloneRun(run))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Submitted.Equal(out[j].Submitted) {
			return out[i].ID > out[j].ID
		}
		return out[i].Submitted.After(out[j].Submitted)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// cloneRun copies the timestamp pointers so callers cannot mutate stored runs.
func cloneRun(run pipeline.Run) pipeline.Run {
	if run.Started != nil {
		t := *run.Started
		run.Started = &t
	}
	if run.Finished != nil {
		t := *run.Finished
		run.Finished = &t
	}
	return run
}
