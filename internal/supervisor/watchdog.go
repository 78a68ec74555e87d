package supervisor

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/watchdog"
)

const watchdogName = "inferd-watchdog"

// watchdogProc is a running inferd-watchdog bound to one server pid.
type watchdogProc struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	cancel context.CancelFunc
	done   chan struct{}
}

// findWatchdog resolves the watchdog executable: explicit path, then next to
// the running binary, then PATH.
func findWatchdog(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	name := watchdogName
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	if self, err := os.Executable(); err == nil {
		p := filepath.Join(filepath.Dir(self), name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return exec.LookPath(name)
}

func startWatchdog(bin string, pid int, interval time.Duration, log zerolog.Logger) (*watchdogProc, error) {
	cmd := exec.Command(bin, strconv.Itoa(pid))
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &watchdogProc{cmd: cmd, stdin: stdin, cancel: cancel, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(w.done)
	}()
	go func() {
		if err := watchdog.Heartbeat(ctx, stdin, interval); err != nil {
			log.Warn().Int("watchdog_pid", cmd.Process.Pid).Err(err).Msg("watchdog heartbeat stopped")
		}
	}()
	return w, nil
}

// stop kills the watchdog before closing its pipe so it never mistakes an
// orderly shutdown for a dead parent.
func (w *watchdogProc) stop() {
	w.cancel()
	if w.cmd.Process != nil {
		_ = w.cmd.Process.Kill()
	}
	<-w.done
	_ = w.stdin.Close()
}

// abandon stops heartbeats and closes the pipe while leaving the watchdog
// running, which is what the watchdog observes when the parent dies.
func (w *watchdogProc) abandon() {
	w.cancel()
	_ = w.stdin.Close()
}

func (w *watchdogProc) pid() int {
	if w == nil || w.cmd.Process == nil {
		return 0
	}
	return w.cmd.Process.Pid
}
