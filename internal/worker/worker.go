// Package worker implements the single-goroutine loop that drains one page queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/JakeFAU/socialgraph-parser/internal/metrics"
	"github.com/JakeFAU/socialgraph-parser/internal/parser"
	"github.com/JakeFAU/socialgraph-parser/internal/queue/memory"
)

// Source yields items, blocking while none are available.
type Source[T any] interface {
	Get(ctx context.Context) (T, error)
}

// Handler processes one item. Recoverable conditions must be handled inside;
// a returned error is fatal to the worker.
type Handler[T any] func(ctx context.Context, item T) error

// Worker runs a Handler over every item of a Source until a fatal failure.
type Worker[T any] struct {
	name      string
	source    Source[T]
	handler   Handler[T]
	logger    *zap.Logger
	status    atomic.Value
	started   atomic.Bool
	processed atomic.Int64
	done      chan struct{}
}

// New constructs a Worker in the Running state.
func New[T any](name string, source Source[T], handler Handler[T], logger *zap.Logger) *Worker[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Worker[T]{
		name:    name,
		source:  source,
		handler: handler,
		logger:  logger,
		done:    make(chan struct{}),
	}
	w.status.Store(parser.StatusRunning)
	return w
}

// Name returns the worker's diagnostic name.
func (w *Worker[T]) Name() string {
	return w.name
}

// Status reports the current lifecycle state.
func (w *Worker[T]) Status() parser.WorkerStatus {
	return w.status.Load().(parser.WorkerStatus)
}

// Processed counts items the handler finished without a fatal error.
func (w *Worker[T]) Processed() int64 {
	return w.processed.Load()
}

// Done is closed once Run returns.
func (w *Worker[T]) Done() <-chan struct{} {
	return w.done
}

// Run blocks, consuming items until a fatal failure or until ctx ends or the
// source closes. A worker runs at most once.
func (w *Worker[T]) Run(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		w.logger.Warn("worker already started", zap.String("worker", w.name))
		return
	}
	defer close(w.done)

	w.logger.Debug("worker started", zap.String("worker", w.name))
	for {
		item, err := w.source.Get(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, memory.ErrClosed) {
				w.stop()
				return
			}
			w.fail(fmt.Errorf("get item: %w", err))
			return
		}
		if err := w.process(ctx, item); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				w.stop()
				return
			}
			w.fail(err)
			return
		}
		w.processed.Add(1)
	}
}

func (w *Worker[T]) process(ctx context.Context, item T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return w.handler(ctx, item)
}

func (w *Worker[T]) fail(err error) {
	if w.status.CompareAndSwap(parser.StatusRunning, parser.StatusError) {
		metrics.ObserveWorkerFailure(w.name)
		w.logger.Error("worker failed", zap.String("worker", w.name), zap.Error(err))
	}
}

func (w *Worker[T]) stop() {
	if w.status.CompareAndSwap(parser.StatusRunning, parser.StatusStopped) {
		w.logger.Debug("worker stopped", zap.String("worker", w.name))
	}
}
