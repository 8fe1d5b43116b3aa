package queue

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

const (
	channelBuffer = 256
	slowTask      = 250 * time.Millisecond
)

// ErrStopped is returned for tasks submitted after the worker has exited.
var ErrStopped = errors.New("queue: worker stopped")

type task struct {
	name string
	fn   func(ctx context.Context) error
	done chan error
}

// Serial runs submitted tasks one at a time on a single worker goroutine, so
// state touched only from tasks needs no locking.
type Serial struct {
	tasks   chan task
	stopped chan struct{}
	log     zerolog.Logger
}

// NewSerial creates a Serial executor. If buffer <= 0, channelBuffer is used.
func NewSerial(buffer int, log zerolog.Logger) *Serial {
	if buffer <= 0 {
		buffer = channelBuffer
	}
	return &Serial{
		tasks:   make(chan task, buffer),
		stopped: make(chan struct{}),
		log:     log,
	}
}

// Start launches the worker goroutine. It stops when ctx is cancelled.
func (q *Serial) Start(ctx context.Context) {
	go q.run(ctx)
}

// Do enqueues fn and waits for it to finish. fn must not call Do itself.
func (q *Serial) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	t := task{name: name, fn: fn, done: make(chan error, 1)}
	select {
	case q.tasks <- t:
	case <-q.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-t.done:
		return err
	case <-q.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Serial) run(ctx context.Context) {
	defer close(q.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-q.tasks:
			start := time.Now()
			err := t.fn(ctx)
			if elapsed := time.Since(start); elapsed > slowTask {
				q.log.Warn().Str("task", t.name).Dur("elapsed", elapsed).Msg("slow serial task")
			}
			if err != nil {
				q.log.Debug().Err(err).Str("task", t.name).Msg("serial task failed")
			}
			t.done <- err
		}
	}
}
