package poller

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPoller_TicksOnInterval(t *testing.T) {
	var ticks atomic.Int64
	p := New(Config{Interval: 20 * time.Millisecond}, func(ctx context.Context) {
		ticks.Add(1)
	}, testLogger())

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for ticks.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if got := ticks.Load(); got < 3 {
		t.Errorf("ticks = %d, want >= 3", got)
	}
	if skipped := p.Stats().Skipped; skipped != 0 {
		t.Errorf("Skipped = %d, want 0 for a fast tick", skipped)
	}
}

// A cycle outlasting the interval must cause skipped fires, never
// overlapping or queued runs.
func TestPoller_SlowCycleSkipsTicks(t *testing.T) {
	var running atomic.Int32
	var overlapped atomic.Bool

	p := New(Config{Interval: 10 * time.Millisecond}, func(ctx context.Context) {
		if running.Add(1) > 1 {
			overlapped.Store(true)
		}
		defer running.Add(-1)
		time.Sleep(60 * time.Millisecond)
	}, testLogger())

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for p.Stats().Skipped < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if overlapped.Load() {
		t.Error("two poll cycles ran concurrently")
	}
	if p.Stats().Skipped < 2 {
		t.Errorf("Skipped = %d, want >= 2", p.Stats().Skipped)
	}
}

// Stop must wait for the in-flight cycle rather than abandoning it.
func TestPoller_StopWaitsForInFlightTick(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool

	p := New(Config{Interval: time.Hour}, func(ctx context.Context) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	}, testLogger())

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !finished.Load() {
		t.Error("Stop returned before the in-flight cycle finished")
	}
}

// A second Stop must be a no-op, not a panic.
func TestPoller_StopIdempotent(t *testing.T) {
	p := New(Config{Interval: time.Hour}, func(ctx context.Context) {}, testLogger())

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("first Stop failed: %v", err)
	}
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
}

func TestPoller_StopTimeout(t *testing.T) {
	p := New(Config{Interval: time.Hour}, func(ctx context.Context) {
		time.Sleep(5 * time.Second)
	}, testLogger())

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond) // let the first tick begin

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := p.Stop(ctx); err != context.DeadlineExceeded {
		t.Errorf("Stop err = %v, want DeadlineExceeded", err)
	}
}
