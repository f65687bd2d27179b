package bridge

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/petermattis/goid"
)

// Executor runs host functions on behalf of closures invoked from native
// code. Native code may call a closure from any thread; the executor
// decides which goroutine the host function actually runs on.
type Executor interface {
	Execute(fn func()) error
}

// DirectExecutor runs fn inline on the calling goroutine.
type DirectExecutor struct{}

func (DirectExecutor) Execute(fn func()) error {
	fn()
	return nil
}

// ErrLoopStopped is returned by Loop.Execute once Run has returned.
var ErrLoopStopped = errors.New("bridge: host loop stopped")

type loopTask struct {
	fn   func()
	done chan struct{}
}

// Loop is a single-goroutine host loop for hosts that are not safe for
// concurrent use. Execute from another goroutine enqueues fn and waits for
// it; Execute from the loop goroutine itself (a closure invoked during a
// call the host made) runs fn inline.
type Loop struct {
	tasks   chan loopTask
	stopped chan struct{}
	owner   atomic.Int64
	running atomic.Bool
}

// NewLoop creates a loop with a queue of the given depth.
func NewLoop(depth int) *Loop {
	return &Loop{
		tasks:   make(chan loopTask, depth),
		stopped: make(chan struct{}),
	}
}

// Run drains the queue on the calling goroutine until ctx is done. It may
// only be called once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("bridge: loop already running")
	}
	l.owner.Store(goid.Get())
	defer func() {
		l.owner.Store(0)
		close(l.stopped)
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-l.tasks:
			t.fn()
			close(t.done)
		}
	}
}

func (l *Loop) Execute(fn func()) error {
	if l.owner.Load() == goid.Get() {
		fn()
		return nil
	}
	t := loopTask{fn: fn, done: make(chan struct{})}
	select {
	case l.tasks <- t:
	case <-l.stopped:
		return ErrLoopStopped
	}
	select {
	case <-t.done:
		return nil
	case <-l.stopped:
		// the task may have run just before the loop stopped
		select {
		case <-t.done:
			return nil
		default:
			return ErrLoopStopped
		}
	}
}
