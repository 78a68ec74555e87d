// Package watchdog implements both sides of the liveness pipe that bounds
// the inference server's lifetime to its parent's: the parent writes
// heartbeat bytes, the watchdog process terminates the server once they
// stop arriving.
package watchdog

import (
	"context"
	"io"
	"time"
)

const (
	// CheckInterval is how long the watchdog waits for a heartbeat byte
	// before treating the parent as dead.
	CheckInterval = 10 * time.Second

	// HeartbeatInterval is how often the parent writes a heartbeat. It stays
	// well below CheckInterval so one late tick is not fatal.
	HeartbeatInterval = 5 * time.Second
)

var beat = []byte{'.'}

// Run consumes heartbeats from r until they stop for longer than interval or
// r reaches EOF, then calls kill once and returns its error. It returns
// ctx.Err() without killing if ctx ends first.
func Run(ctx context.Context, r io.Reader, interval time.Duration, kill func() error) error {
	beats := make(chan struct{}, 1)
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		buf := make([]byte, 64)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				select {
				case beats <- struct{}{}:
				default:
				}
			}
			if err != nil {
				return
			}
		}
	}()

	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-beats:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(interval)
		case <-closed:
			return kill()
		case <-timer.C:
			return kill()
		}
	}
}

// Heartbeat writes one byte to w immediately and then every interval until
// ctx ends or a write fails. A write failure means the watchdog is gone.
func Heartbeat(ctx context.Context, w io.Writer, interval time.Duration) error {
	if _, err := w.Write(beat); err != nil {
		return err
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := w.Write(beat); err != nil {
				return err
			}
		}
	}
}
