// Package agent runs conversation turns against a backend and tracks whether
// the backend is warm. It owns the cold/coldProcessing/ready/processing
// state machine; callers observe it through State, Pending and Subscribe.
package agent

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"inferd/internal/backend"
	"inferd/internal/prompt"
	"inferd/internal/supervisor"
)

// ErrBusy is returned when a turn is already in flight.
var ErrBusy = errors.New("agent is busy")

// Sampling holds the request parameters that are not chosen per turn.
type Sampling struct {
	TopK          int
	TopP          float64
	RepeatPenalty float64
	MaxTokens     int
}

// Config builds an Agent.
type Config struct {
	Backend backend.Backend
	// SystemPrompt and Format are used by Warmup; Respond takes its own.
	SystemPrompt string
	Format       prompt.Format
	Temperature  float64
	Sampling     Sampling
	Logger       zerolog.Logger
}

// Update is delivered to subscribers on every state change and fragment.
type Update struct {
	State    State
	Fragment string
	Pending  string
	Summary  *backend.Summary
	Err      error
}

type Agent struct {
	log      zerolog.Logger
	sampling Sampling

	mu          sync.Mutex
	state       State
	backend     backend.Backend
	system      string
	format      prompt.Format
	temperature float64
	pending     strings.Builder
	prompt      strings.Builder
	cancel      context.CancelFunc
	interrupted bool

	subMu  sync.Mutex
	subs   map[int]func(Update)
	nextID int
}

func New(cfg Config) *Agent {
	a := &Agent{
		log:         cfg.Logger.With().Str("component", "agent").Logger(),
		sampling:    cfg.Sampling,
		state:       Cold,
		backend:     cfg.Backend,
		system:      cfg.SystemPrompt,
		format:      cfg.Format,
		temperature: cfg.Temperature,
		subs:        map[int]func(Update){},
	}
	publishState(Cold)
	return a
}

// State returns the current state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Pending is the text streamed so far in the current (or last) turn.
func (a *Agent) Pending() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending.String()
}

// Prompt is the rendered prompt of the current (or last) turn followed by
// the response streamed so far.
func (a *Agent) Prompt() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.prompt.String()
}

// Backend returns the backend turns currently run against.
func (a *Agent) Backend() backend.Backend {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.backend
}

// Defaults returns the system prompt and format Warmup uses.
func (a *Agent) Defaults() (string, prompt.Format) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.system, a.format
}

// SetDefaults changes the system prompt and format Warmup uses.
func (a *Agent) SetDefaults(system string, f prompt.Format) {
	a.mu.Lock()
	a.system, a.format = system, f
	a.mu.Unlock()
}

// Subscribe registers fn for updates and returns a function removing it.
// fn runs on the goroutine driving the turn and must not block.
func (a *Agent) Subscribe(fn func(Update)) (unsubscribe func()) {
	a.subMu.Lock()
	id := a.nextID
	a.nextID++
	a.subs[id] = fn
	a.subMu.Unlock()
	return func() {
		a.subMu.Lock()
		delete(a.subs, id)
		a.subMu.Unlock()
	}
}

func (a *Agent) notify(u Update) {
	a.subMu.Lock()
	fns := make([]func(Update), 0, len(a.subs))
	for _, fn := range a.subs {
		fns = append(fns, fn)
	}
	a.subMu.Unlock()
	for _, fn := range fns {
		fn(u)
	}
}

// setStateLocked must be called with mu held; it returns the update to publish
// once mu is released.
func (a *Agent) setStateLocked(s State) Update {
	if a.state != s {
		a.log.Debug().Stringer("from", a.state).Stringer("to", s).Msg("state")
	}
	a.state = s
	publishState(s)
	return Update{State: s, Pending: a.pending.String()}
}

// turn is one request to run.
type turn struct {
	prior       []string
	system      string
	format      prompt.Format
	temperature float64
	maxTokens   int
	warmup      bool
	onFragment  func(string)
}

// Respond runs one turn: it renders prior with format, streams the reply and
// returns its summary. prior alternates user and assistant messages starting
// with the user. On interruption the partial summary is returned together
// with backend.ErrInterrupted.
func (a *Agent) Respond(ctx context.Context, prior []string, systemPrompt string, format prompt.Format, temperature float64) (backend.Summary, error) {
	return a.RespondFunc(ctx, prior, systemPrompt, format, temperature, nil)
}

// RespondFunc is Respond that also hands each fragment of this turn to fn,
// on the calling goroutine, after subscribers have seen it.
func (a *Agent) RespondFunc(ctx context.Context, prior []string, systemPrompt string, format prompt.Format, temperature float64, fn func(string)) (backend.Summary, error) {
	return a.run(ctx, turn{
		prior:       prior,
		system:      systemPrompt,
		format:      format,
		temperature: temperature,
		maxTokens:   a.sampling.MaxTokens,
		onFragment:  fn,
	})
}

// Warmup runs a one-token completion with no user input so the backend is
// loaded before the first real turn.
func (a *Agent) Warmup(ctx context.Context) error {
	a.mu.Lock()
	t := turn{system: a.system, format: a.format, temperature: a.temperature, maxTokens: 1, warmup: true}
	a.mu.Unlock()
	_, err := a.run(ctx, t)
	return err
}

func (a *Agent) run(ctx context.Context, t turn) (backend.Summary, error) {
	a.mu.Lock()
	if a.state.Busy() {
		a.mu.Unlock()
		return backend.Summary{}, ErrBusy
	}
	b := a.backend
	if b == nil {
		a.mu.Unlock()
		return backend.Summary{}, errors.New("agent has no backend")
	}
	wasWarm := a.state == Ready
	next := ColdProcessing
	if wasWarm {
		next = Processing
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.cancel = cancel
	a.interrupted = false
	a.pending.Reset()
	a.prompt.Reset()
	rendered := prompt.Render(t.format, t.system, t.prior)
	a.prompt.WriteString(rendered)
	u := a.setStateLocked(next)
	a.mu.Unlock()
	a.notify(u)

	turns := prompt.Turns(t.prior)
	msgs := make([]backend.Message, len(turns))
	for i, tr := range turns {
		msgs[i] = backend.Message{Role: tr.Role, Content: tr.Content}
	}
	req := backend.Request{
		System:        t.system,
		Messages:      msgs,
		Temperature:   t.temperature,
		TopK:          a.sampling.TopK,
		TopP:          a.sampling.TopP,
		RepeatPenalty: a.sampling.RepeatPenalty,
		Stop:          prompt.StopWords(t.format),
		MaxTokens:     t.maxTokens,
	}
	a.log.Debug().Stringer("format", t.format).Int("messages", len(msgs)).Bool("warmup", t.warmup).Msg("turn started")

	received := 0
	sum, err := b.Complete(ctx, req, func(f backend.Fragment) error {
		if f.Final {
			return nil
		}
		received++
		a.mu.Lock()
		if !t.warmup {
			a.pending.WriteString(f.Text)
		}
		a.prompt.WriteString(f.Text)
		pending := a.pending.String()
		state := a.state
		a.mu.Unlock()
		a.notify(Update{State: state, Fragment: f.Text, Pending: pending})
		if t.onFragment != nil {
			t.onFragment(f.Text)
		}
		return nil
	})

	a.mu.Lock()
	a.cancel = nil
	interrupted := a.interrupted || errors.Is(err, backend.ErrInterrupted)
	var final State
	switch {
	case err == nil:
		final = Ready
	case interrupted:
		err = backend.ErrInterrupted
		final = Cold
		if wasWarm || received > 0 {
			final = Ready
		}
	case supervisor.IsProcessLaunch(err), supervisor.IsModelLoad(err):
		final = Cold
	case wasWarm:
		final = Ready
	default:
		final = Cold
	}
	if !t.warmup {
		sum.Text = a.pending.String()
	}
	u = a.setStateLocked(final)
	a.mu.Unlock()

	u.Err = err
	u.Summary = &sum
	a.notify(u)

	ev := a.log.Info()
	if err != nil && !interrupted {
		ev = a.log.Warn().Err(err)
	}
	ev.Str("turn_id", sum.TurnID).Int("fragments", sum.Fragments).Dur("duration", sum.Duration).
		Bool("interrupted", interrupted).Bool("warmup", t.warmup).Stringer("state", final).Msg("turn finished")
	return sum, err
}

// Interrupt stops the in-flight turn. It does nothing when idle.
func (a *Agent) Interrupt() {
	a.mu.Lock()
	if !a.state.Busy() {
		a.mu.Unlock()
		return
	}
	a.interrupted = true
	cancel := a.cancel
	b := a.backend
	a.mu.Unlock()
	b.Interrupt()
	if cancel != nil {
		cancel()
	}
}

// Switch binds the agent to b, stopping the previous backend's local
// server if it had one, and warms b up.
func (a *Agent) Switch(ctx context.Context, b backend.Backend) error {
	a.mu.Lock()
	if a.state.Busy() {
		a.mu.Unlock()
		return ErrBusy
	}
	old := a.backend
	a.backend = b
	u := a.setStateLocked(Cold)
	a.mu.Unlock()
	a.notify(u)

	if l, ok := old.(*backend.Local); ok && old != b {
		if err := l.Stop(); err != nil {
			a.log.Warn().Err(err).Msg("stopping previous local server")
		}
	}
	a.log.Info().Str("kind", string(b.Kind())).Msg("backend switched")
	return a.Warmup(ctx)
}
