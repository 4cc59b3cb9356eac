// Package worker runs deferred initialization off the interactive path.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrClosed is returned by Submit after Shutdown.
var ErrClosed = errors.New("worker queue closed")

type task struct {
	name string
	fn   func(context.Context) error
}

// Queue runs submitted tasks one at a time on a single goroutine, in
// submission order. Submit never blocks.
type Queue struct {
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending []task
	closed  bool
	wake    chan struct{}
	done    chan struct{}

	completed int
	failed    int
}

// New starts a queue. Tasks see a context derived from ctx, canceled on
// Shutdown timeout.
func New(ctx context.Context, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	q := &Queue{
		logger: logger.With(slog.String("component", "worker")),
		ctx:    runCtx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	go q.loop()

	return q
}

// Submit queues fn under name.
func (q *Queue) Submit(name string, fn func(context.Context) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fmt.Errorf("%w: %s", ErrClosed, name)
	}

	q.pending = append(q.pending, task{name: name, fn: fn})

	select {
	case q.wake <- struct{}{}:
	default:
	}

	return nil
}

func (q *Queue) next() (task, bool, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return task{}, false, q.closed
	}

	t := q.pending[0]
	q.pending = q.pending[1:]

	return t, true, false
}

func (q *Queue) loop() {
	defer close(q.done)

	for {
		t, ok, closed := q.next()
		if closed {
			return
		}

		if !ok {
			<-q.wake
			continue
		}

		q.execute(t)
	}
}

func (q *Queue) execute(t task) {
	start := time.Now()

	err := q.safeRun(t)

	q.mu.Lock()
	if err != nil {
		q.failed++
	} else {
		q.completed++
	}
	q.mu.Unlock()

	attrs := []any{slog.String("task", t.name), slog.Duration("elapsed", time.Since(start))}

	if err != nil {
		q.logger.Warn("background task failed", append(attrs, slog.String("error", err.Error()))...)
		return
	}

	q.logger.Debug("background task done", attrs...)
}

func (q *Queue) safeRun(t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", t.name, r)
		}
	}()

	return t.fn(q.ctx)
}

// Stats returns how many tasks completed and failed.
func (q *Queue) Stats() (completed, failed int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.completed, q.failed
}

// Shutdown stops accepting tasks and waits for queued ones to finish. When
// ctx is done first, the running task's context is canceled, remaining
// tasks are dropped and ctx's error is returned once the loop exits.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	select {
	case <-q.done:
		q.cancel()
		return nil
	case <-ctx.Done():
	}

	q.mu.Lock()
	dropped := len(q.pending)
	q.pending = nil
	q.mu.Unlock()

	q.cancel()
	<-q.done

	if dropped > 0 {
		q.logger.Warn("dropped background tasks", slog.Int("count", dropped))
	}

	return ctx.Err()
}
