package watchdog

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunKillsOnSilence(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	var kills atomic.Int32
	start := time.Now()
	err := Run(context.Background(), r, 50*time.Millisecond, func() error { kills.Add(1); return nil })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if kills.Load() != 1 {
		t.Fatalf("kill calls=%d", kills.Load())
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Fatalf("killed before the interval elapsed")
	}
}

func TestRunKillsOnPipeClose(t *testing.T) {
	r, w := io.Pipe()
	killed := make(chan struct{})
	go func() {
		_ = Run(context.Background(), r, time.Hour, func() error { close(killed); return nil })
	}()
	_ = w.Close()
	select {
	case <-killed:
	case <-time.After(2 * time.Second):
		t.Fatalf("watchdog did not react to a closed pipe")
	}
}

func TestRunStaysAliveWhileHeartbeating(t *testing.T) {
	r, w := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	hbCtx, hbCancel := context.WithCancel(context.Background())
	go func() { _ = Heartbeat(hbCtx, w, 10*time.Millisecond) }()

	done := make(chan error, 1)
	var kills atomic.Int32
	go func() {
		done <- Run(ctx, r, 100*time.Millisecond, func() error { kills.Add(1); return nil })
	}()
	time.Sleep(400 * time.Millisecond)
	if kills.Load() != 0 {
		t.Fatalf("watchdog killed despite heartbeats")
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err=%v", err)
	}
	hbCancel()
	_ = r.Close()
}

func TestHeartbeatStopsOnWriteError(t *testing.T) {
	r, w := io.Pipe()
	_ = r.Close()
	if err := Heartbeat(context.Background(), w, time.Millisecond); err == nil {
		t.Fatalf("expected write error once the reader is gone")
	}
}
