// Package worker runs the ledger's background I/O and reports how each
// task ended.
package worker

import (
	"context"
	"sync"
	"time"

	"ledger/internal/log"
)

// Task names a unit of background work for logs and results.
type Task struct {
	Op     string
	Kind   string
	ID     string
	UserID string
}

// Result is the outcome of one task. Err is nil on success.
type Result struct {
	Task
	Err      error
	Duration time.Duration
}

// Dispatcher starts tasks without waiting for them. Tasks are independent:
// no ordering between them is kept, and none is retried.
type Dispatcher struct {
	wg       sync.WaitGroup
	logger   *log.Logger
	observer func(Result)
}

type Option func(*Dispatcher)

// WithObserver receives every Result. It runs on the task's goroutine.
func WithObserver(fn func(Result)) Option {
	return func(d *Dispatcher) { d.observer = fn }
}

func New(logger *log.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = log.Discard()
	}
	d := &Dispatcher{logger: logger.WithComponent(log.ComponentWorker)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Go runs fn in the background. fn receives ctx stripped of its
// cancellation so a returning caller does not abort the task.
func (d *Dispatcher) Go(ctx context.Context, task Task, fn func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		start := time.Now()
		err := fn(ctx)
		res := Result{Task: task, Err: err, Duration: time.Since(start)}

		fields := log.NewFields().WithUser(task.UserID)
		if task.Kind != "" {
			fields.WithEntity(task.Kind, task.ID)
		}
		if err != nil {
			d.logger.Failure(ctx, "Background task failed", task.Op, err, fields)
		} else {
			d.logger.DebugContext(ctx, "Background task done",
				append(fields.WithOperation(task.Op).ToSlice(), log.FieldDuration, res.Duration.Milliseconds())...)
		}
		if d.observer != nil {
			d.observer(res)
		}
	}()
}

// Wait blocks until every started task has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
