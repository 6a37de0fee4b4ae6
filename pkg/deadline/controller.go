// Package deadline enforces a wall-clock budget over a whole pipeline run.
// Cancellation is cooperative: the controller hands out a context that all
// long-running work must observe at its suspension points, and it guarantees
// the save-state callback has completed before that context is cancelled,
// so state always hits disk before any consumer sees the abort.
package deadline

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the controller lifecycle state.
type State string

const (
	// StateArmed means the controller is constructed but not started.
	StateArmed State = "armed"

	// StateRunning means the budget timer is live.
	StateRunning State = "running"

	// StateCompleted means the run finished before the budget expired.
	StateCompleted State = "completed"

	// StateTimedOut means the budget expired and the run was cancelled.
	StateTimedOut State = "timed-out"

	// StateAborted means the run was cancelled explicitly before completion.
	StateAborted State = "aborted"
)

// ErrTimedOut is the cancellation cause when the budget expires.
var ErrTimedOut = errors.New("workflow deadline exceeded")

// Controller enforces a single run's deadline. It is not reusable; create a
// new controller per run.
type Controller struct {
	budget    time.Duration
	onTimeout func()

	mu     sync.Mutex
	state  State
	timer  *time.Timer
	ctx    context.Context
	cancel context.CancelCauseFunc

	// saved closes once the timeout callback has run to completion, before
	// the signal is cancelled. Exposed to tests via callbackDone.
	saved chan struct{}
}

// NewController creates a controller with the given budget. onTimeout, if
// non-nil, runs to completion when the budget expires, before the
// cancellation signal is raised; it is the place to persist a paused
// session so state is saved before any step observes the abort.
func NewController(budget time.Duration, onTimeout func()) *Controller {
	return &Controller{
		budget:    budget,
		onTimeout: onTimeout,
		state:     StateArmed,
		saved:     make(chan struct{}),
	}
}

// Start arms the budget timer and returns the cancellation signal derived
// from parent. Calling Start more than once panics.
func (c *Controller) Start(parent context.Context) context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateArmed {
		panic("deadline: controller started twice")
	}

	c.ctx, c.cancel = context.WithCancelCause(parent)
	c.state = StateRunning
	c.timer = time.AfterFunc(c.budget, c.fire)
	return c.ctx
}

// Signal returns the cancellation signal. It is nil before Start.
func (c *Controller) Signal() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsAborted reports whether the run was cancelled, by deadline or
// explicitly.
func (c *Controller) IsAborted() bool {
	s := c.State()
	return s == StateTimedOut || s == StateAborted
}

// TimedOut reports whether the budget expired.
func (c *Controller) TimedOut() bool {
	return c.State() == StateTimedOut
}

// Cancel disarms the timer on successful completion so a late-firing
// timeout cannot corrupt a finished run. It is a no-op unless the
// controller is running.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning {
		return
	}
	c.timer.Stop()
	c.state = StateCompleted
}

// Abort cancels the run immediately with the given reason. The timeout
// callback does not run; the caller is responsible for persisting state.
func (c *Controller) Abort(reason error) {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	c.timer.Stop()
	c.state = StateAborted
	cancel := c.cancel
	c.mu.Unlock()

	cancel(reason)
}

// fire handles timer expiry: mark timed-out, run the save-state callback to
// completion, then raise the cancellation signal.
func (c *Controller) fire() {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	c.state = StateTimedOut
	cb := c.onTimeout
	cancel := c.cancel
	c.mu.Unlock()

	if cb != nil {
		cb()
	}
	close(c.saved)
	cancel(ErrTimedOut)
}

// callbackDone reports whether the timeout callback has completed. It is
// used by tests to assert save-before-abort ordering.
func (c *Controller) callbackDone() bool {
	select {
	case <-c.saved:
		return true
	default:
		return false
	}
}
