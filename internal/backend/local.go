package backend

import (
	"context"
	"path/filepath"

	"inferd/internal/supervisor"
)

// Local streams from a llama.cpp server that a Supervisor runs on this
// machine. Complete starts the server on demand.
type Local struct {
	*client
	sup  *supervisor.Supervisor
	opts supervisor.Options
}

// NewLocal binds a Local backend to sup and the model in opts.
func NewLocal(sup *supervisor.Supervisor, opts supervisor.Options, cfg Config) *Local {
	if cfg.Model == "" {
		cfg.Model = filepath.Base(opts.ModelPath)
	}
	return &Local{
		client: newClient(KindLocal, cfg, sup.BaseURL),
		sup:    sup,
		opts:   opts,
	}
}

// Complete starts the server if needed and streams from it. An Interrupt
// while the server is still loading abandons the start.
func (l *Local) Complete(ctx context.Context, req Request, fn func(Fragment) error) (Summary, error) {
	ctx, done := l.begin(ctx)
	defer done()
	if err := l.sup.Start(ctx, l.opts); err != nil {
		if l.interrupted.Load() {
			return Summary{Model: l.model}, ErrInterrupted
		}
		return Summary{Model: l.model}, err
	}
	return l.stream(ctx, l.sup.BaseURL(), req, fn)
}

// ListModels reports the one model this backend serves. It does not start
// the server.
func (l *Local) ListModels(ctx context.Context) ([]string, error) {
	return []string{l.model}, nil
}

// Supervisor returns the supervisor running the server.
func (l *Local) Supervisor() *supervisor.Supervisor { return l.sup }

// Options returns the server options the backend starts with.
func (l *Local) Options() supervisor.Options { return l.opts }

// Stop shuts the local server down.
func (l *Local) Stop() error { return l.sup.Stop() }
