package supervisor

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/health"
	"inferd/internal/metrics"
)

// Supervisor owns at most one llama.cpp server process.
type Supervisor struct {
	cfg        Config
	log        zerolog.Logger
	pub        EventPublisher
	prober     *health.Prober
	gpuCapable func() bool

	// startMu serialises Start and Stop so a single instance ever exists.
	startMu sync.Mutex
	// starting is set while Start waits for readiness; awaitReady is then
	// the only caller of the prober.
	starting atomic.Bool

	mu     sync.Mutex
	handle *handle
}

// handle is the running server plus its watchdog.
type handle struct {
	cmd     *exec.Cmd
	opts    Options
	baseURL string
	ready   bool
	since   time.Time
	stderr  *tailBuffer
	wd      *watchdogProc

	done    chan struct{}
	waitErr error
}

func (h *handle) exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *handle) pid() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// Status is a point-in-time view of the supervisor.
type Status struct {
	Running     bool      `json:"running"`
	Model       string    `json:"model,omitempty"`
	BaseURL     string    `json:"base_url,omitempty"`
	PID         int       `json:"pid,omitempty"`
	WatchdogPID int       `json:"watchdog_pid,omitempty"`
	Threads     int       `json:"threads,omitempty"`
	GPULayers   int       `json:"gpu_layers"`
	Context     int       `json:"context_length,omitempty"`
	Score       float64   `json:"health_score"`
	Since       time.Time `json:"since,omitempty"`
}

// New returns a Supervisor with nothing running.
func New(cfg Config) *Supervisor {
	cfg = cfg.withDefaults()
	return &Supervisor{
		cfg:        cfg,
		log:        cfg.Logger.With().Str("component", "supervisor").Logger(),
		pub:        cfg.Publisher,
		prober:     health.NewProber(health.Config{Logger: cfg.Logger}),
		gpuCapable: defaultGPUCapable,
	}
}

// Prober exposes the health prober bound to the running server.
func (s *Supervisor) Prober() *health.Prober { return s.prober }

// Starting reports whether a Start is waiting for the server to become
// ready.
func (s *Supervisor) Starting() bool { return s.starting.Load() }

// Poll keeps the health score of the running server fresh until ctx ends.
// Ticks that fall inside a Start are skipped so each target has one poller.
func (s *Supervisor) Poll(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.cfg.HealthInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if !s.Starting() {
			s.prober.Check(ctx)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Start ensures a healthy server for o. A running server started with the
// same resolved options is reused; any other running server is stopped
// first. Start blocks until the server is healthy, exits, the readiness
// deadline passes, or ctx ends.
func (s *Supervisor) Start(ctx context.Context, o Options) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	o = s.resolve(o)
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()
	if h != nil {
		if h.opts == o && h.ready && !h.exited() {
			return nil
		}
		s.stopHandle(h, "replace")
	}
	return s.spawn(ctx, o)
}

func (s *Supervisor) spawn(ctx context.Context, o Options) error {
	model := displayName(o.ModelPath)
	port := s.cfg.Port
	if port == 0 {
		p, err := pickFreePort(s.cfg.Host)
		if err != nil {
			metrics.ServerStarts.WithLabelValues("launch_error").Inc()
			return &ProcessLaunchError{Bin: s.cfg.Bin, Err: fmt.Errorf("pick port: %w", err)}
		}
		port = p
	}
	baseURL := "http://" + net.JoinHostPort(s.cfg.Host, strconv.Itoa(port))

	args := []string{
		"-m", o.ModelPath,
		"-c", strconv.Itoa(o.ContextLength),
		"--host", s.cfg.Host,
		"--port", strconv.Itoa(port),
		"-t", strconv.Itoa(o.Threads),
		"-ngl", strconv.Itoa(o.GPULayers),
	}
	args = append(args, s.cfg.ExtraArgs...)

	cmd := exec.Command(s.cfg.Bin, args...)
	stderr := newTailBuffer(4096)
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		metrics.ServerStarts.WithLabelValues("launch_error").Inc()
		s.log.Error().Str("bin", s.cfg.Bin).Err(err).Msg("launch failed")
		return &ProcessLaunchError{Bin: s.cfg.Bin, Err: err}
	}

	h := &handle{
		cmd:     cmd,
		opts:    o,
		baseURL: baseURL,
		since:   time.Now(),
		stderr:  stderr,
		done:    make(chan struct{}),
	}
	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()
	s.mu.Lock()
	s.handle = h
	s.mu.Unlock()

	s.log.Info().Str("model", model).Int("pid", h.pid()).Str("url", baseURL).
		Int("threads", o.Threads).Int("gpu_layers", o.GPULayers).Msg("server starting")
	s.pub.Publish(Event{Name: "server_start", Model: model, Fields: map[string]any{"pid": h.pid(), "url": baseURL}})

	s.starting.Store(true)
	err := s.awaitReady(ctx, h, model)
	s.starting.Store(false)
	if err != nil {
		s.discard(h)
		return err
	}

	s.mu.Lock()
	h.ready = true
	s.mu.Unlock()
	metrics.ServerStarts.WithLabelValues("ok").Inc()
	metrics.ServerRunning.Set(1)
	s.log.Info().Str("model", model).Int("pid", h.pid()).Dur("took", time.Since(h.since)).Msg("server ready")
	s.pub.Publish(Event{Name: "server_ready", Model: model, Fields: map[string]any{"pid": h.pid(), "url": baseURL}})

	s.attachWatchdog(h, model)
	go s.watchExit(h, model)
	return nil
}

func (s *Supervisor) awaitReady(ctx context.Context, h *handle, model string) error {
	s.prober.UpdateTarget(h.baseURL + "/health")
	deadline := time.NewTimer(s.cfg.HealthTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(s.cfg.HealthInterval)
	defer tick.Stop()

	for {
		sample := s.prober.Check(ctx)
		if health.IsValidSample(sample) && s.prober.Score() >= s.cfg.ReadyThreshold {
			return nil
		}
		select {
		case <-h.done:
			metrics.ServerStarts.WithLabelValues("exited").Inc()
			s.log.Error().Str("model", model).Int("pid", h.pid()).AnErr("exit", h.waitErr).
				Str("stderr_tail", h.stderr.String()).Msg("server exited before ready")
			s.pub.Publish(Event{Name: "server_exit", Model: model, Fields: map[string]any{"pid": h.pid(), "before_ready": true}})
			err := errExitedBeforeReady
			if h.waitErr != nil {
				err = fmt.Errorf("%w: %v", errExitedBeforeReady, h.waitErr)
			}
			return &ModelLoadError{Model: model, Err: err}
		case <-deadline.C:
			metrics.ServerStarts.WithLabelValues("timeout").Inc()
			s.log.Error().Str("model", model).Int("pid", h.pid()).Dur("timeout", s.cfg.HealthTimeout).Msg("server not ready in time")
			s.pub.Publish(Event{Name: "server_timeout", Model: model, Fields: map[string]any{"pid": h.pid()}})
			return &ModelLoadError{Model: model, Err: errNotReadyInTime}
		case <-ctx.Done():
			metrics.ServerStarts.WithLabelValues("canceled").Inc()
			return ctx.Err()
		case <-tick.C:
		}
	}
}

func (s *Supervisor) attachWatchdog(h *handle, model string) {
	if s.cfg.DisableWatchdog {
		return
	}
	bin, err := findWatchdog(s.cfg.WatchdogBin)
	if err != nil {
		s.log.Warn().Err(err).Msg("watchdog not found; server will not be reaped if inferd dies")
		return
	}
	wd, err := startWatchdog(bin, h.pid(), s.cfg.HeartbeatInterval, s.log)
	if err != nil {
		s.log.Warn().Str("bin", bin).Err(err).Msg("watchdog failed to start")
		return
	}
	s.mu.Lock()
	h.wd = wd
	s.mu.Unlock()
	s.log.Debug().Int("watchdog_pid", wd.pid()).Int("pid", h.pid()).Msg("watchdog started")
	s.pub.Publish(Event{Name: "watchdog_start", Model: model, Fields: map[string]any{"pid": wd.pid(), "server_pid": h.pid()}})
}

// watchExit clears the handle when a ready server dies on its own.
func (s *Supervisor) watchExit(h *handle, model string) {
	<-h.done
	s.mu.Lock()
	current := s.handle == h
	if current {
		s.handle = nil
	}
	wd := h.wd
	h.wd = nil
	s.mu.Unlock()
	if !current {
		return
	}
	if wd != nil {
		wd.stop()
	}
	metrics.ServerRunning.Set(0)
	s.log.Warn().Str("model", model).Int("pid", h.pid()).AnErr("exit", h.waitErr).Msg("server exited")
	s.pub.Publish(Event{Name: "server_exit", Model: model, Fields: map[string]any{"pid": h.pid()}})
}

// Stop terminates the running server, if any. It is safe to call repeatedly.
func (s *Supervisor) Stop() error {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()
	if h == nil {
		return nil
	}
	s.stopHandle(h, "stop")
	return nil
}

func (s *Supervisor) stopHandle(h *handle, reason string) {
	model := displayName(h.opts.ModelPath)
	s.mu.Lock()
	if s.handle == h {
		s.handle = nil
	}
	wd := h.wd
	h.wd = nil
	s.mu.Unlock()

	if wd != nil {
		wd.stop()
		s.pub.Publish(Event{Name: "watchdog_stop", Model: model, Fields: map[string]any{"pid": wd.pid()}})
	}
	s.terminate(h)
	s.prober.UpdateTarget("")
	metrics.ServerRunning.Set(0)
	s.log.Info().Str("model", model).Int("pid", h.pid()).Str("reason", reason).Msg("server stopped")
	s.pub.Publish(Event{Name: "server_stop", Model: model, Fields: map[string]any{"pid": h.pid(), "reason": reason}})
}

// discard tears down a handle that never became ready.
func (s *Supervisor) discard(h *handle) {
	s.mu.Lock()
	if s.handle == h {
		s.handle = nil
	}
	s.mu.Unlock()
	s.terminate(h)
	s.prober.UpdateTarget("")
}

// terminate sends SIGTERM and kills the process if it outlives the grace
// period.
func (s *Supervisor) terminate(h *handle) {
	if h.exited() {
		return
	}
	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		_ = h.cmd.Process.Kill()
		<-h.done
		return
	}
	select {
	case <-h.done:
	case <-time.After(s.cfg.StopGrace):
		s.log.Warn().Int("pid", h.pid()).Msg("server ignored SIGTERM; killing")
		_ = h.cmd.Process.Kill()
		<-h.done
	}
}

// IsRunning reports whether a server is up and passed its readiness check.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil && s.handle.ready && !s.handle.exited()
}

// BaseURL returns the running server's URL, or "" when none runs.
func (s *Supervisor) BaseURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return ""
	}
	return s.handle.baseURL
}

// PID returns the running server's pid, or 0.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return 0
	}
	return s.handle.pid()
}

// Score is the current health score of the running server.
func (s *Supervisor) Score() float64 { return s.prober.Score() }

func (s *Supervisor) Status() Status {
	s.mu.Lock()
	h := s.handle
	var st Status
	if h != nil {
		st = Status{
			Running:     h.ready && !h.exited(),
			Model:       displayName(h.opts.ModelPath),
			BaseURL:     h.baseURL,
			PID:         h.pid(),
			WatchdogPID: h.wd.pid(),
			Threads:     h.opts.Threads,
			GPULayers:   h.opts.GPULayers,
			Context:     h.opts.ContextLength,
			Since:       h.since,
		}
	}
	s.mu.Unlock()
	st.Score = s.prober.Score()
	return st
}

func displayName(path string) string {
	return filepath.Base(path)
}
