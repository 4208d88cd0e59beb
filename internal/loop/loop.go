// Package loop implements the session's single dispatch goroutine.
//
// ARCHITECTURE:
//
// Every piece of mutable session state (the scheduler's fired bits, the
// channel state and its outbound queue) is touched only by tasks running on
// the Loop. Clock ticks, socket callbacks, keepalive ticks and console
// actions are all posted as tasks, so ordering between "fire" and "flush" is
// plain program order inside one task and no component needs locks.
package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/readmeplay/internal/queue"
)

// ErrStopped is returned by Call when the loop is no longer running.
var ErrStopped = errors.New("loop stopped")

// Loop is a single-writer task loop.
//
// Thread-safety model:
//   - Post(), Call(), Every(), Stop(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
type Loop struct {
	tasks    *queue.Queue[func()]
	logger   *slog.Logger
	stopped  chan struct{}
	stopOnce sync.Once
}

// New creates a loop. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		tasks:   queue.New[func()](),
		logger:  logger,
		stopped: make(chan struct{}),
	}
}

// Post schedules task to run on the loop goroutine.
// Returns false if the loop has been stopped.
func (l *Loop) Post(task func()) bool {
	return l.tasks.Enqueue(task)
}

// Run processes tasks in FIFO order until ctx is cancelled or Stop is
// called. Tasks queued before Stop still run.
//
// A panicking task is logged and the loop continues.
func (l *Loop) Run(ctx context.Context) error {
	defer l.markStopped()

	for {
		if task, ok := l.tasks.TryDequeue(); ok {
			l.runTask(task)
			continue
		}

		select {
		case <-ctx.Done():
			l.logger.Debug("loop stopping: context cancelled")
			l.tasks.Close()
			return ctx.Err()

		case <-l.tasks.Wait():
			// The signal channel is closed by Stop, so this case keeps firing
			// until the queue drains.
			if l.tasks.Closed() && l.tasks.Len() == 0 {
				l.logger.Debug("loop stopping: queue closed")
				return nil
			}
		}
	}
}

func (l *Loop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop task panicked", "panic", r)
		}
	}()
	task()
}

// Stop closes the task queue; Run returns once queued tasks have run.
func (l *Loop) Stop() {
	l.tasks.Close()
}

// Done is closed when Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.stopped
}

func (l *Loop) markStopped() {
	l.stopOnce.Do(func() { close(l.stopped) })
}

// Call runs fn on the loop and waits for it to finish.
// It must not be called from the loop goroutine itself.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		// Run may have executed the task just before returning.
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Every posts fn to the loop every interval until the returned stop
// function is called. Ticks already posted when stop is called are dropped.
func (l *Loop) Every(interval time.Duration, fn func()) (stop func()) {
	var cancelled atomic.Bool
	ticker := time.NewTicker(interval)
	quit := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-l.stopped:
				return
			case <-ticker.C:
				if !l.Post(func() {
					if !cancelled.Load() {
						fn()
					}
				}) {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancelled.Store(true)
			close(quit)
		})
	}
}
