package sched

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestEveryImmediateThenTicks(t *testing.T) {
	mock := clock.NewMock()
	var n atomic.Int64

	task := Every(context.Background(), mock, time.Second, true, func(context.Context) { n.Add(1) })
	defer task.Stop()

	waitFor(t, func() bool { return n.Load() == 1 })
	mock.Add(time.Second)
	waitFor(t, func() bool { return n.Load() == 2 })
	mock.Add(time.Second)
	waitFor(t, func() bool { return n.Load() == 3 })
}

func TestEveryWithoutImmediate(t *testing.T) {
	mock := clock.NewMock()
	var n atomic.Int64

	task := Every(context.Background(), mock, time.Second, false, func(context.Context) { n.Add(1) })
	defer task.Stop()

	time.Sleep(20 * time.Millisecond)
	if n.Load() != 0 {
		t.Fatal("ran before the first tick")
	}
	mock.Add(time.Second)
	waitFor(t, func() bool { return n.Load() == 1 })
}

func TestStopHaltsTask(t *testing.T) {
	mock := clock.NewMock()
	var n atomic.Int64

	task := Every(context.Background(), mock, time.Second, false, func(context.Context) { n.Add(1) })
	task.Stop()
	task.Stop() // idempotent
	task.Wait()

	mock.Add(10 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if n.Load() != 0 {
		t.Fatalf("task ran after stop: %d", n.Load())
	}
}

func TestContextCancelHaltsTask(t *testing.T) {
	mock := clock.NewMock()
	ctx, cancel := context.WithCancel(context.Background())
	var n atomic.Int64

	task := Every(ctx, mock, time.Second, false, func(context.Context) { n.Add(1) })
	cancel()
	task.Wait()

	mock.Add(10 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if n.Load() != 0 {
		t.Fatalf("task ran after cancel: %d", n.Load())
	}
}
