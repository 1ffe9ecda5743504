// Package supervisor owns one worker per page kind and replaces workers that
// fail, keeping their queues intact.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/socialgraph-parser/internal/metrics"
	"github.com/JakeFAU/socialgraph-parser/internal/parser"
	"github.com/JakeFAU/socialgraph-parser/internal/queue/memory"
	"github.com/JakeFAU/socialgraph-parser/internal/worker"
)

// DefaultPollInterval is used by Watch when the caller passes no interval.
const DefaultPollInterval = time.Second

var (
	// ErrUnknownKind is returned for kinds without a queue.
	ErrUnknownKind = errors.New("unknown worker kind")
	// ErrNotStarted is returned when no worker has been started for a kind.
	ErrNotStarted = errors.New("worker not started")
	// ErrRunning is returned when starting over a worker that is still running.
	ErrRunning = errors.New("worker is running")
)

// Queue is the page queue a worker drains.
type Queue interface {
	worker.Source[parser.PageTask]
	Len() int
	Cap() int
}

// HandlerSource supplies the page handler for each kind.
type HandlerSource interface {
	For(kind parser.Kind) (worker.Handler[parser.PageTask], error)
}

// WorkerInfo is a point-in-time view of one kind.
type WorkerInfo struct {
	Kind       parser.Kind         `json:"kind"`
	Status     parser.WorkerStatus `json:"status"`
	Processed  int64               `json:"processed"`
	Restarts   int                 `json:"restarts"`
	QueueDepth int                 `json:"queue_depth"`
	QueueCap   int                 `json:"queue_capacity"`
}

type slot struct {
	worker   *worker.Worker[parser.PageTask]
	restarts int
}

// Supervisor starts, inspects, and restarts page workers. It never reads a
// queue itself.
type Supervisor struct {
	queues   map[parser.Kind]Queue
	handlers HandlerSource
	logger   *zap.Logger

	mu    sync.Mutex
	slots map[parser.Kind]*slot

	wg    sync.WaitGroup
	exits chan parser.Kind
}

// New builds a supervisor over one queue per kind.
func New(queues map[parser.Kind]Queue, handlers HandlerSource, logger *zap.Logger) (*Supervisor, error) {
	if handlers == nil {
		return nil, fmt.Errorf("handler source is required")
	}
	if len(queues) == 0 {
		return nil, fmt.Errorf("at least one queue is required")
	}
	for kind, q := range queues {
		if q == nil {
			return nil, fmt.Errorf("queue for %q is nil", kind)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		queues:   queues,
		handlers: handlers,
		logger:   logger,
		slots:    make(map[parser.Kind]*slot, len(queues)),
		exits:    make(chan parser.Kind, 2*len(queues)),
	}, nil
}

// NewWithMemoryQueues is New for the in-process bounded queues.
func NewWithMemoryQueues(
	queues map[parser.Kind]*memory.Queue[parser.PageTask],
	handlers HandlerSource,
	logger *zap.Logger,
) (*Supervisor, error) {
	generic := make(map[parser.Kind]Queue, len(queues))
	for kind, q := range queues {
		if q == nil {
			return nil, fmt.Errorf("queue for %q is nil", kind)
		}
		generic[kind] = q
	}
	return New(generic, handlers, logger)
}

// Start launches a worker for kind. The worker lives until ctx ends, its
// queue closes, or it fails.
func (s *Supervisor) Start(ctx context.Context, kind parser.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.slots[kind]; ok && cur.worker.Status() == parser.StatusRunning {
		return fmt.Errorf("start %s: %w", kind, ErrRunning)
	}
	return s.launchLocked(ctx, kind)
}

// StartAll starts a worker for every configured kind.
func (s *Supervisor) StartAll(ctx context.Context) error {
	for _, kind := range parser.Kinds {
		if _, ok := s.queues[kind]; !ok {
			continue
		}
		if err := s.Start(ctx, kind); err != nil {
			return err
		}
	}
	return nil
}

// Status reads the current worker's status.
func (s *Supervisor) Status(kind parser.Kind) (parser.WorkerStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queues[kind]; !ok {
		return "", fmt.Errorf("status %s: %w", kind, ErrUnknownKind)
	}
	cur, ok := s.slots[kind]
	if !ok {
		return "", fmt.Errorf("status %s: %w", kind, ErrNotStarted)
	}
	return cur.worker.Status(), nil
}

// Restart discards the current worker of kind and starts a fresh one bound
// to the same queue. A worker that is still running is left alone.
func (s *Supervisor) Restart(ctx context.Context, kind parser.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.slots[kind]
	if ok && cur.worker.Status() == parser.StatusRunning {
		return fmt.Errorf("restart %s: %w", kind, ErrRunning)
	}
	restarts := 0
	if ok {
		restarts = cur.restarts + 1
	}
	if err := s.launchLocked(ctx, kind); err != nil {
		return err
	}
	s.slots[kind].restarts = restarts
	metrics.ObserveWorkerRestart(string(kind))
	s.logger.Info("worker restarted", zap.String("kind", string(kind)), zap.Int("restarts", restarts))
	return nil
}

func (s *Supervisor) launchLocked(ctx context.Context, kind parser.Kind) error {
	q, ok := s.queues[kind]
	if !ok {
		return fmt.Errorf("launch %s: %w", kind, ErrUnknownKind)
	}
	handler, err := s.handlers.For(kind)
	if err != nil {
		return fmt.Errorf("launch %s: %w", kind, err)
	}
	w := worker.New[parser.PageTask](string(kind), q, handler, s.logger.With(zap.String("kind", string(kind))))
	s.slots[kind] = &slot{worker: w}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		w.Run(ctx)
		select {
		case s.exits <- kind:
		default:
		}
	}()
	return nil
}

// Watch restarts failed workers until ctx ends. A worker exit is noticed
// immediately; the poll interval bounds detection otherwise and refreshes
// queue depth gauges.
func (s *Supervisor) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case kind := <-s.exits:
			s.reconcile(ctx, kind)
		case <-ticker.C:
			for _, kind := range parser.Kinds {
				s.reconcile(ctx, kind)
			}
		}
	}
}

func (s *Supervisor) reconcile(ctx context.Context, kind parser.Kind) {
	if q, ok := s.queues[kind]; ok {
		metrics.SetQueueDepth(string(kind), q.Len())
	}
	status, err := s.Status(kind)
	if err != nil || status != parser.StatusError {
		return
	}
	if ctx.Err() != nil {
		return
	}
	if err := s.Restart(ctx, kind); err != nil && !errors.Is(err, ErrRunning) {
		s.logger.Error("failed to restart worker", zap.String("kind", string(kind)), zap.Error(err))
	}
}

// Snapshot describes every configured kind, in start order.
func (s *Supervisor) Snapshot() []WorkerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WorkerInfo, 0, len(s.queues))
	for _, kind := range parser.Kinds {
		q, ok := s.queues[kind]
		if !ok {
			continue
		}
		info := WorkerInfo{Kind: kind, QueueDepth: q.Len(), QueueCap: q.Cap()}
		if cur, ok := s.slots[kind]; ok {
			info.Status = cur.worker.Status()
			info.Processed = cur.worker.Processed()
			info.Restarts = cur.restarts
		}
		out = append(out, info)
	}
	return out
}

// Wait blocks until every worker started so far has exited.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
