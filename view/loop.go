// Package view holds the presentation side of the relay: a loop that owns
// display state and the terminal front-end built on it.
package view

import (
	"context"
	"sync"
)

// Loop runs posted functions one at a time on the goroutine that called
// Run. Display state touched only from posted functions needs no locking.
type Loop struct {
	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once
}

// NewLoop creates a loop whose queue holds up to buffer pending functions
// before Post blocks.
func NewLoop(buffer int) *Loop {
	return &Loop{
		tasks: make(chan func(), max(buffer, 0)),
		done:  make(chan struct{}),
	}
}

// Post schedules fn on the loop. It is safe to call from any goroutine and
// reports false if the loop is closed.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Run executes posted functions until ctx is done or Close is called.
// Functions already queued when Close is called still run.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			l.drain()
			return nil
		}
	}
}

// RunWhile calls fn on a new goroutine and keeps the loop running on the
// calling goroutine until fn returns. The loop is then closed, its queued
// functions run, and fn's error is returned.
func (l *Loop) RunWhile(fn func() error) error {
	errc := make(chan error, 1)
	go func() {
		defer l.Close()
		errc <- fn()
	}()

	_ = l.Run(context.Background())
	return <-errc
}

// Close stops the loop. It is safe to call more than once.
func (l *Loop) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}

func (l *Loop) drain() {
	for {
		select {
		case fn := <-l.tasks:
			fn()
		default:
			return
		}
	}
}
