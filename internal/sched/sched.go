// Package sched runs repeating tasks against an injectable clock so that
// timer-driven behavior can be fast-forwarded in tests.
package sched

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Task is a repeating job. Iterations run on a single goroutine, so a tick
// callback never overlaps a prior invocation of the same task.
type Task struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// Every invokes fn on a fixed cadence until ctx is canceled or Stop is
// called. When immediate is true fn also runs once right away, before the
// first tick. The ticker is registered before Every returns, so time
// advanced on a mock clock immediately after the call is observed.
func Every(ctx context.Context, c clock.Clock, interval time.Duration, immediate bool, fn func(context.Context)) *Task {
	ticker := c.Ticker(interval)
	t := &Task{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(t.done)
		defer ticker.Stop()
		if immediate {
			fn(ctx)
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.stop:
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
	return t
}

// Stop cancels the task. It is safe to call more than once and returns
// without waiting for an in-flight iteration to finish.
func (t *Task) Stop() {
	t.once.Do(func() { close(t.stop) })
}

// Wait blocks until the task goroutine has exited and its ticker is
// released.
func (t *Task) Wait() {
	<-t.done
}
