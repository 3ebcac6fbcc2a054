// Package loop provides a single-goroutine event loop.
//
// Work posted to a Loop runs one function at a time, in posting order, on the
// goroutine that called Run. Components that are not safe for concurrent use
// (the hook channel, for example) keep all of their state on the loop and are
// only ever touched from posted functions.
package loop

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tessro/dbxlink/internal/logging"
)

// ErrStopped is returned by Do when the loop is not running any more.
var ErrStopped = errors.New("loop: stopped")

// Loop runs posted functions serially.
type Loop struct {
	mu sync.Mutex
	// +checklocks:mu
	queue []func()
	// +checklocks:mu
	stopped bool

	wake chan struct{}
	done chan struct{}
}

// New creates a loop. Nothing runs until Run is called, but functions may be
// posted before that.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post schedules fn to run on the loop. It is safe to call from any
// goroutine, including the loop itself. Post returns false once the loop has
// stopped, in which case fn never runs.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// AfterFunc runs fn on the loop once d has elapsed. Stopping the returned
// timer before it fires cancels fn.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() { l.Post(fn) })
}

// Do runs fn on the loop and waits for it to finish, for ctx to be done, or
// for the loop to stop. Calling Do from the loop goroutine deadlocks.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// fn may have been the last thing the loop ran.
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Run executes posted functions until ctx is done. Functions still queued
// when ctx is cancelled are dropped. Run returns ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	defer logging.LogPanic("event-loop", nil)
	defer l.stop()

	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			fn()
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Done is closed after Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

func (l *Loop) stop() {
	l.mu.Lock()
	l.stopped = true
	l.queue = nil
	l.mu.Unlock()
	close(l.done)
}
