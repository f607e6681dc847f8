// Package dispatcher contains tests for run submission and worker coordination.
package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/recruiting-sheets/internal/pipeline"
	"github.com/JakeFAU/recruiting-sheets/internal/queue/memory"
	"github.com/JakeFAU/recruiting-sheets/internal/scrape"
	"github.com/JakeFAU/recruiting-sheets/internal/worker"
)

type mockCreator struct {
	mock.Mock
}

func (m *mockCreator) Create(ctx context.Context, kind scrape.Kind, trigger pipeline.Trigger) (pipeline.Run, error) {
	args := m.Called(ctx, kind, trigger)
	return args.Get(0).(pipeline.Run), args.Error(1)
}

func (m *mockCreator) Abandon(ctx context.Context, runID string, cause error) error {
	args := m.Called(ctx, runID, cause)
	return args.Error(0)
}

type recordingExecutor struct {
	mu   sync.Mutex
	seen []string
}

func (e *recordingExecutor) Execute(_ context.Context, runID string) (pipeline.Run, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen = append(e.seen, runID)
	return pipeline.Run{ID: runID, Status: pipeline.RunStatusSucceeded}, nil
}

func (e *recordingExecutor) ids() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.seen...)
}

func TestDispatcherSubmitQueuesRun(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(1)
	creator := &mockCreator{}
	submitted := time.Date(2025, 12, 1, 8, 0, 0, 0, time.UTC)
	creator.On("Create", mock.Anything, scrape.KindRecruits, pipeline.TriggerAPI).
		Return(pipeline.Run{
			ID:        "run-1",
			Kind:      scrape.KindRecruits,
			Trigger:   pipeline.TriggerAPI,
			Status:    pipeline.RunStatusQueued,
			Submitted: submitted,
		}, nil)

	d := New(q, creator, nil, zap.NewNop())
	run, err := d.Submit(context.Background(), scrape.KindRecruits, pipeline.TriggerAPI)
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)

	item, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pipeline.QueueItem{
		RunID:     "run-1",
		Kind:      scrape.KindRecruits,
		Trigger:   pipeline.TriggerAPI,
		Submitted: submitted,
	}, item)
	creator.AssertExpectations(t)
}

func TestDispatcherSubmitAbandonsOnEnqueueFailure(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(1)
	q.Close()
	creator := &mockCreator{}
	creator.On("Create", mock.Anything, scrape.KindPortal, pipeline.TriggerSchedule).
		Return(pipeline.Run{ID: "run-9", Kind: scrape.KindPortal}, nil)
	creator.On("Abandon", mock.Anything, "run-9", memory.ErrClosed).Return(nil)

	d := New(q, creator, nil, nil)
	_, err := d.Submit(context.Background(), scrape.KindPortal, pipeline.TriggerSchedule)
	require.ErrorIs(t, err, memory.ErrClosed)
	creator.AssertExpectations(t)
}

func TestDispatcherSubmitCreateFailure(t *testing.T) {
	t.Parallel()

	creator := &mockCreator{}
	creator.On("Create", mock.Anything, scrape.KindPortal, pipeline.TriggerAPI).
		Return(pipeline.Run{}, errors.New("db down"))

	d := New(memory.NewQueue(1), creator, nil, nil)
	_, err := d.Submit(context.Background(), scrape.KindPortal, pipeline.TriggerAPI)
	require.Error(t, err)
	creator.AssertNotCalled(t, "Abandon", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcherRunDrivesWorkers(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(4)
	exec := &recordingExecutor{}
	workers := []*worker.Worker{
		worker.New(1, q, exec, worker.Config{}, nil),
		worker.New(2, q, exec, worker.Config{}, nil),
	}
	d := New(q, &mockCreator{}, workers, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, pipeline.QueueItem{RunID: id}))
	}
	require.Eventually(t, func() bool { return len(exec.ids()) == 3 }, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, exec.ids())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
}
