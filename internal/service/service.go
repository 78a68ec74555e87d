// Package service assembles the runtime from a Config: the supervisor for
// the local llama.cpp server, the active backend and the agent driving it.
// It is what the HTTP API and the CLI talk to.
package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/agent"
	"inferd/internal/backend"
	"inferd/internal/config"
	"inferd/internal/prompt"
	"inferd/internal/registry"
	"inferd/internal/supervisor"
	"inferd/pkg/types"
)

// Runtime owns one agent and the backend it is bound to.
type Runtime struct {
	log     zerolog.Logger
	sup     *supervisor.Supervisor
	agent   *agent.Agent
	started time.Time

	mu      sync.Mutex
	cfg     config.Config
	lastErr string
}

// New builds a Runtime from a resolved Config. Nothing is started: the
// local server comes up on the first turn or Warmup.
func New(cfg config.Config, log zerolog.Logger) (*Runtime, error) {
	sup := supervisor.New(supervisorConfig(cfg, log))
	b, err := buildBackend(cfg, sup, log)
	if err != nil {
		return nil, err
	}
	a := agent.New(agent.Config{
		Backend:      b,
		SystemPrompt: cfg.Agent.SystemPrompt,
		Format:       cfg.Format(),
		Temperature:  cfg.Agent.Temp(),
		Sampling: agent.Sampling{
			TopK:          cfg.Agent.TopK,
			TopP:          cfg.Agent.TopP,
			RepeatPenalty: cfg.Agent.RepeatPenalty,
			MaxTokens:     cfg.Agent.MaxTokens,
		},
		Logger: log,
	})
	return &Runtime{
		log:     log.With().Str("component", "service").Logger(),
		sup:     sup,
		agent:   a,
		started: time.Now(),
		cfg:     cfg,
	}, nil
}

func supervisorConfig(cfg config.Config, log zerolog.Logger) supervisor.Config {
	s := cfg.Server
	sc := supervisor.Config{
		Bin:             s.Bin,
		Host:            s.Host,
		Port:            s.SupervisorPort(),
		ExtraArgs:       s.ExtraArgs,
		UseGPU:          s.UseGPU == nil || *s.UseGPU,
		WatchdogBin:     s.WatchdogBin,
		DisableWatchdog: s.DisableWatchdog,
		HealthInterval:  time.Duration(s.HealthIntervalMS) * time.Millisecond,
		HealthTimeout:   time.Duration(s.HealthTimeoutSeconds) * time.Second,
		Logger:          log,
		Publisher:       eventLogger{log: log.With().Str("component", "events").Logger()},
	}
	return sc
}

// buildBackend resolves cfg.Backend into a Backend. The local kind needs
// the model file to exist.
func buildBackend(cfg config.Config, sup *supervisor.Supervisor, log zerolog.Logger) (backend.Backend, error) {
	kind, err := backend.ParseKind(cfg.Backend.Kind)
	if err != nil {
		return nil, err
	}
	bc := backend.Config{
		Kind:   kind,
		URL:    cfg.Backend.URL,
		APIKey: cfg.Backend.APIKey,
		Model:  cfg.Backend.Model,
		Logger: log,
	}
	if kind == backend.KindLocal {
		path, err := registry.ResolvePath(cfg.ModelsDir, cfg.Backend.Model)
		if err != nil {
			return nil, fmt.Errorf("local model: %w", err)
		}
		gpu := supervisor.AutoGPULayers
		if cfg.Server.GPULayers != nil {
			gpu = *cfg.Server.GPULayers
		}
		bc.Model = ""
		bc.Supervisor = sup
		bc.Options = supervisor.Options{
			ModelPath:     path,
			ContextLength: cfg.Server.CtxSize,
			Threads:       cfg.Server.Threads,
			GPULayers:     gpu,
		}
	}
	return backend.New(bc)
}

// Agent exposes the agent for callers that observe its updates.
func (r *Runtime) Agent() *agent.Agent { return r.agent }

// Config returns the configuration currently in effect.
func (r *Runtime) Config() config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// Run keeps the local server's health score fresh until ctx ends.
func (r *Runtime) Run(ctx context.Context) error {
	interval := time.Duration(r.Config().Server.HealthIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = supervisor.DefaultHealthInterval
	}
	r.sup.Poll(ctx, interval)
	return nil
}

// Close stops the local server, if one is running.
func (r *Runtime) Close() error {
	return r.sup.Stop()
}

// requestError is a caller mistake; the HTTP layer maps it to 400.
type requestError struct{ msg string }

func (e *requestError) Error() string   { return e.msg }
func (e *requestError) StatusCode() int { return 400 }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// Chat runs one turn and calls fn with every fragment as it arrives.
func (r *Runtime) Chat(ctx context.Context, req types.ChatRequest, fn func(string)) (backend.Summary, error) {
	if len(req.Messages) == 0 {
		return backend.Summary{}, badRequest("messages must not be empty")
	}
	system, format := r.agent.Defaults()
	if req.SystemPrompt != "" {
		system = req.SystemPrompt
	}
	if req.Template != "" {
		f, err := prompt.ParseFormat(req.Template)
		if err != nil {
			return backend.Summary{}, badRequest("%v", err)
		}
		format = f
	}
	temperature := r.Config().Agent.Temp()
	if req.Temperature != nil {
		if *req.Temperature < 0 || *req.Temperature > 2 {
			return backend.Summary{}, badRequest("temperature must be within [0,2]")
		}
		temperature = *req.Temperature
	}
	sum, err := r.agent.RespondFunc(ctx, req.Messages, system, format, temperature, fn)
	r.noteErr(err)
	return sum, err
}

// Interrupt stops the in-flight turn, if any.
func (r *Runtime) Interrupt() { r.agent.Interrupt() }

// Warmup loads the backend without a user turn.
func (r *Runtime) Warmup(ctx context.Context) error {
	err := r.agent.Warmup(ctx)
	r.noteErr(err)
	return err
}

func (r *Runtime) noteErr(err error) {
	if err == nil || errors.Is(err, backend.ErrInterrupted) || errors.Is(err, agent.ErrBusy) {
		return
	}
	r.mu.Lock()
	r.lastErr = err.Error()
	r.mu.Unlock()
}

// Switch rebinds the agent to the backend req describes. Empty fields keep
// their configured values; changing the kind without a model clears it.
func (r *Runtime) Switch(ctx context.Context, req types.SwitchRequest) error {
	cfg := r.Config()
	if req.Kind != "" {
		if _, err := backend.ParseKind(req.Kind); err != nil {
			return badRequest("%v", err)
		}
		if req.Kind != cfg.Backend.Kind && req.Model == "" {
			cfg.Backend.Model = ""
		}
		cfg.Backend.Kind = req.Kind
	}
	if req.URL != "" {
		cfg.Backend.URL = req.URL
	}
	if req.APIKey != "" {
		cfg.Backend.APIKey = req.APIKey
	}
	if req.Model != "" {
		cfg.Backend.Model = req.Model
	}
	if err := config.Validate(cfg); err != nil {
		return badRequest("%v", err)
	}
	return r.apply(ctx, cfg, true)
}

// Reload applies a re-resolved Config. The backend is rebuilt and warmed
// only when its settings changed; template and system prompt always apply.
// Supervisor settings other than the model options need a restart.
func (r *Runtime) Reload(ctx context.Context, cfg config.Config) {
	old := r.Config()
	if supervisorChanged(old.Server, cfg.Server) {
		r.log.Warn().Msg("server binary, address or watchdog settings changed; restart inferd to apply")
	}
	rebuild := old.Backend != cfg.Backend || old.ModelsDir != cfg.ModelsDir || modelOptionsChanged(old.Server, cfg.Server)
	if err := r.apply(ctx, cfg, rebuild); err != nil {
		r.log.Error().Err(err).Msg("applying reloaded config")
	}
}

func (r *Runtime) apply(ctx context.Context, cfg config.Config, rebuild bool) error {
	if rebuild {
		b, err := buildBackend(cfg, r.sup, r.log)
		if err != nil {
			return badRequest("%v", err)
		}
		r.agent.SetDefaults(cfg.Agent.SystemPrompt, cfg.Format())
		if err := r.agent.Switch(ctx, b); err != nil {
			r.noteErr(err)
			if errors.Is(err, agent.ErrBusy) {
				return err
			}
			// The switch happened; only the warmup failed.
			r.commit(cfg)
			return err
		}
	} else {
		r.agent.SetDefaults(cfg.Agent.SystemPrompt, cfg.Format())
	}
	r.commit(cfg)
	return nil
}

func (r *Runtime) commit(cfg config.Config) {
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
}

func supervisorChanged(a, b config.Server) bool {
	return a.Bin != b.Bin || a.Host != b.Host || a.Port != b.Port ||
		a.WatchdogBin != b.WatchdogBin || a.DisableWatchdog != b.DisableWatchdog ||
		!equalStrings(a.ExtraArgs, b.ExtraArgs)
}

func modelOptionsChanged(a, b config.Server) bool {
	return a.CtxSize != b.CtxSize || a.Threads != b.Threads || !equalIntPtr(a.GPULayers, b.GPULayers)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Ready reports whether the backend is warm.
func (r *Runtime) Ready() bool {
	s := r.agent.State()
	return s == agent.Ready || s == agent.Processing
}

// ListModels lists the model files for the local backend and the server's
// model names otherwise.
func (r *Runtime) ListModels(ctx context.Context) ([]types.Model, error) {
	cfg := r.Config()
	b := r.agent.Backend()
	if b.Kind() == backend.KindLocal {
		return registry.LoadDir(cfg.ModelsDir)
	}
	names, err := b.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.Model, len(names))
	for i, n := range names {
		out[i] = types.Model{ID: n, Name: n, Format: prompt.InferFormat(n).String()}
	}
	return out, nil
}

// Status describes the agent, the backend and, for local, the server.
func (r *Runtime) Status() types.StatusResponse {
	cfg := r.Config()
	_, format := r.agent.Defaults()
	b := r.agent.Backend()
	r.mu.Lock()
	lastErr := r.lastErr
	r.mu.Unlock()
	now := time.Now()
	resp := types.StatusResponse{
		State:          r.agent.State().String(),
		Backend:        string(b.Kind()),
		Model:          cfg.Backend.Model,
		Template:       format.String(),
		LastError:      lastErr,
		UptimeSeconds:  int64(now.Sub(r.started) / time.Second),
		ServerTimeUnix: now.Unix(),
	}
	if l, ok := b.(*backend.Local); ok {
		st := l.Supervisor().Status()
		resp.Model = filepath.Base(l.Options().ModelPath)
		resp.HealthScore = st.Score
		resp.Server = &types.ServerStatus{
			Running:       st.Running,
			Model:         st.Model,
			BaseURL:       st.BaseURL,
			PID:           st.PID,
			WatchdogPID:   st.WatchdogPID,
			Threads:       st.Threads,
			GPULayers:     st.GPULayers,
			ContextLength: st.Context,
		}
	}
	return resp
}
