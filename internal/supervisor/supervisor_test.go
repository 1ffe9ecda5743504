package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/socialgraph-parser/internal/parser"
	"github.com/JakeFAU/socialgraph-parser/internal/queue/memory"
	"github.com/JakeFAU/socialgraph-parser/internal/worker"
)

// scriptedHandlers records every consumed task ID and fails on IDs listed in
// failOn, once each.
type scriptedHandlers struct {
	mu     sync.Mutex
	seen   []string
	failOn map[string]bool
}

func (s *scriptedHandlers) For(kind parser.Kind) (worker.Handler[parser.PageTask], error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("no handler for %q", kind)
	}
	return func(_ context.Context, task parser.PageTask) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.seen = append(s.seen, task.ID)
		if s.failOn[task.ID] {
			delete(s.failOn, task.ID)
			return errors.New("sink unavailable")
		}
		return nil
	}, nil
}

func (s *scriptedHandlers) consumed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

func taskIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("task-%02d", i)
	}
	return ids
}

func newSupervisor(t *testing.T, handlers HandlerSource) (*Supervisor, map[parser.Kind]*memory.Queue[parser.PageTask]) {
	t.Helper()
	queues := map[parser.Kind]*memory.Queue[parser.PageTask]{
		parser.KindProfile: memory.NewQueue[parser.PageTask](memory.DefaultCapacity),
		parser.KindFollow:  memory.NewQueue[parser.PageTask](memory.DefaultCapacity),
	}
	s, err := NewWithMemoryQueues(queues, handlers, zap.NewNop())
	require.NoError(t, err)
	return s, queues
}

func waitStatus(t *testing.T, s *Supervisor, kind parser.Kind, want parser.WorkerStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		got, err := s.Status(kind)
		return err == nil && got == want
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRestartContinuity(t *testing.T) {
	t.Parallel()

	const n, k = 10, 4
	ids := taskIDs(n)
	handlers := &scriptedHandlers{failOn: map[string]bool{ids[k-1]: true}}
	s, queues := newSupervisor(t, handlers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for _, id := range ids {
		require.NoError(t, queues[parser.KindProfile].Put(ctx, parser.PageTask{ID: id}))
	}

	require.NoError(t, s.Start(ctx, parser.KindProfile))
	waitStatus(t, s, parser.KindProfile, parser.StatusError)
	require.Equal(t, ids[:k], handlers.consumed())
	require.Equal(t, n-k, queues[parser.KindProfile].Len())

	require.NoError(t, s.Restart(ctx, parser.KindProfile))
	require.Eventually(t, func() bool {
		return len(handlers.consumed()) == n
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, ids, handlers.consumed())
	require.Zero(t, queues[parser.KindProfile].Len())

	status, err := s.Status(parser.KindProfile)
	require.NoError(t, err)
	require.Equal(t, parser.StatusRunning, status)

	info := s.Snapshot()[0]
	require.Equal(t, parser.KindProfile, info.Kind)
	require.Equal(t, int64(n-k), info.Processed)
	require.Equal(t, 1, info.Restarts)

	cancel()
	s.Wait()
	waitStatus(t, s, parser.KindProfile, parser.StatusStopped)
}

func TestStatusErrors(t *testing.T) {
	t.Parallel()

	s, _ := newSupervisor(t, &scriptedHandlers{})
	_, err := s.Status(parser.KindFollow)
	require.ErrorIs(t, err, ErrNotStarted)
	_, err = s.Status(parser.Kind("answers"))
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestStartRefusesRunningWorker(t *testing.T) {
	t.Parallel()

	s, _ := newSupervisor(t, &scriptedHandlers{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.StartAll(ctx))
	require.ErrorIs(t, s.Start(ctx, parser.KindFollow), ErrRunning)
	require.ErrorIs(t, s.Restart(ctx, parser.KindFollow), ErrRunning)
	require.ErrorIs(t, s.Start(ctx, parser.Kind("answers")), ErrUnknownKind)

	for _, kind := range parser.Kinds {
		status, err := s.Status(kind)
		require.NoError(t, err)
		require.Equal(t, parser.StatusRunning, status)
	}
}

func TestWatchRestartsFailedWorker(t *testing.T) {
	t.Parallel()

	ids := taskIDs(3)
	handlers := &scriptedHandlers{failOn: map[string]bool{ids[0]: true}}
	s, queues := newSupervisor(t, handlers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var watchErr atomic.Value
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		if err := s.Watch(ctx, 20*time.Millisecond); err != nil {
			watchErr.Store(err)
		}
	}()

	require.NoError(t, s.Start(ctx, parser.KindFollow))
	for _, id := range ids {
		require.NoError(t, queues[parser.KindFollow].Put(ctx, parser.PageTask{ID: id}))
	}

	require.Eventually(t, func() bool {
		return len(handlers.consumed()) == len(ids)
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, ids, handlers.consumed())
	waitStatus(t, s, parser.KindFollow, parser.StatusRunning)

	var restarts int
	for _, info := range s.Snapshot() {
		if info.Kind == parser.KindFollow {
			restarts = info.Restarts
		}
	}
	require.Equal(t, 1, restarts)

	cancel()
	<-watchDone
	require.Nil(t, watchErr.Load())
	s.Wait()
}

func TestStoppedWorkerIsNotRestartedByWatch(t *testing.T) {
	t.Parallel()

	s, queues := newSupervisor(t, &scriptedHandlers{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx, parser.KindProfile))
	queues[parser.KindProfile].Close()
	waitStatus(t, s, parser.KindProfile, parser.StatusStopped)

	s.reconcile(ctx, parser.KindProfile)
	status, err := s.Status(parser.KindProfile)
	require.NoError(t, err)
	require.Equal(t, parser.StatusStopped, status)
}

func TestSnapshotReportsQueues(t *testing.T) {
	t.Parallel()

	s, queues := newSupervisor(t, &scriptedHandlers{})
	require.NoError(t, queues[parser.KindFollow].Put(context.Background(), parser.PageTask{ID: "x"}))

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, parser.KindProfile, snap[0].Kind)
	require.Equal(t, parser.KindFollow, snap[1].Kind)
	require.Equal(t, 1, snap[1].QueueDepth)
	require.Equal(t, memory.DefaultCapacity, snap[1].QueueCap)
	require.Empty(t, snap[1].Status)
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, &scriptedHandlers{}, nil)
	require.Error(t, err)
	_, err = New(map[parser.Kind]Queue{parser.KindProfile: memory.NewQueue[parser.PageTask](1)}, nil, nil)
	require.Error(t, err)
	_, err = NewWithMemoryQueues(map[parser.Kind]*memory.Queue[parser.PageTask]{parser.KindProfile: nil}, &scriptedHandlers{}, nil)
	require.Error(t, err)
}
