// Package dispatch provides the daemon's serial dispatch loop. Every
// external signal (incoming event, resolution completion, user dismissal,
// observation change) runs as one task on a single goroutine, so the
// notification core never needs locks. A turn hook runs after each task;
// the daemon uses it to flush the coalesced group recomputes.
package dispatch

import (
	"context"

	"github.com/commtray/commtrayd/internal/logging"
)

// Loop serializes task execution onto one goroutine.
type Loop struct {
	tasks    chan func()
	turnHook func()
	log      logging.Logger
}

// New creates a dispatch loop.
func New(log logging.Logger) *Loop {
	return &Loop{
		tasks: make(chan func(), 256),
		log:   log.With("component", "dispatch"),
	}
}

// SetTurnHook registers the function run after every task. Must be called
// before Run.
func (l *Loop) SetTurnHook(hook func()) {
	l.turnHook = hook
}

// Post enqueues a task for execution on the loop. Safe to call from any
// goroutine, including from tasks themselves.
func (l *Loop) Post(task func()) {
	l.tasks <- task
}

// Run executes tasks until the context is canceled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.log.Debug("dispatch loop stopping")
			return ctx.Err()
		case task := <-l.tasks:
			task()
			if l.turnHook != nil {
				l.turnHook()
			}
		}
	}
}
