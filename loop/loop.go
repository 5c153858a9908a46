// Package loop runs tasks one at a time on a single goroutine.
//
// The widget core is not safe for concurrent use: every Extend, Load,
// Remove, Push and Listen must come from the same call stack. Code that
// receives pushes on other goroutines (network transports, timers) posts
// them onto a Loop instead of calling the core directly.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// ErrStopped is returned when posting to a loop whose Run has returned.
var ErrStopped = errors.New("loop: stopped")

// Loop is a single-goroutine task queue.
type Loop struct {
	tasks    chan func()
	stopped  chan struct{}
	stopOnce sync.Once
	running  sync.Mutex // held by Run
}

// New creates a loop whose queue holds up to size pending tasks.
func New(size int) *Loop {
	if size < 0 {
		size = 0
	}
	return &Loop{
		tasks:   make(chan func(), size),
		stopped: make(chan struct{}),
	}
}

// Run executes posted tasks in order until ctx is done.
// A panicking task is logged and does not stop the loop.
// Once Run returns, the loop is stopped for good.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.TryLock() {
		return errors.New("loop: already running")
	}
	defer l.running.Unlock()
	defer l.stopOnce.Do(func() { close(l.stopped) })

	log.Debug().Msg("loop started")
	for {
		select {
		case <-ctx.Done():
			log.Debug().Err(ctx.Err()).Msg("loop stopping")
			return ctx.Err()
		case <-l.stopped:
			return ErrStopped
		case fn := <-l.tasks:
			l.run(fn)
		}
	}
}

// Stop stops a loop that is not running, or makes a running one return.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopped) })
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprint(r)).Msg("loop task panicked")
		}
	}()
	fn()
}

// Post enqueues fn without waiting for it to run.
func (l *Loop) Post(ctx context.Context, fn func()) error {
	select {
	case <-l.stopped:
		return ErrStopped
	default:
	}

	select {
	case l.tasks <- fn:
		return nil
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Task states used by Do.
const (
	taskPending int32 = iota
	taskRunning
	taskAbandoned
)

// Do enqueues fn and waits until it has run.
// If ctx ends or the loop stops while fn is still queued, Do returns an
// error and fn is skipped. Once fn has started, Do waits for it to finish
// and returns nil.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	var state atomic.Int32
	done := make(chan struct{})
	err := l.Post(ctx, func() {
		if !state.CompareAndSwap(taskPending, taskRunning) {
			return
		}
		defer close(done)
		fn()
	})
	if err != nil {
		return err
	}

	var cause error
	select {
	case <-done:
		return nil
	case <-l.stopped:
		cause = ErrStopped
	case <-ctx.Done():
		cause = ctx.Err()
	}
	if state.CompareAndSwap(taskPending, taskAbandoned) {
		return cause
	}
	<-done
	return nil
}
