// Package eventloop provides the single cooperative queue on which a
// session's state transitions run. Work posted from other goroutines (network
// continuations, transport reads) is executed one item at a time, in post
// order, on the goroutine that calls Run.
package eventloop

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when work is posted to a loop that has stopped.
var ErrClosed = errors.New("event loop closed")

// Dispatcher accepts work for serialized execution.
type Dispatcher interface {
	// Post enqueues fn. It reports false if the work will never run.
	Post(fn func()) bool
}

// Loop is a FIFO work queue drained by a single goroutine.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake chan struct{}
	done chan struct{}
}

// New constructs an idle loop; call Run to start draining it.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post enqueues fn behind any work already queued.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	l.mu.Lock()
	if l.closed {
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

// Call posts fn and waits until it has run, or until ctx ends.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		// Run may have executed fn just before stopping.
		select {
		case <-finished:
			return nil
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the queue until ctx ends or Close is called. Work still queued
// at that point is dropped.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	defer l.Close()

	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			fn()
			if ctx.Err() != nil {
				return
			}
		}

		l.mu.Lock()
		closed := l.closed
		l.mu.Unlock()
		if closed {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}
	}
}

// Close stops accepting new work and wakes Run so it can return.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.queue = nil
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 || l.closed {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}
