package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/supervisor"
)

// Kind names a backend variant.
type Kind string

const (
	KindLocal  Kind = "local"
	KindLlama  Kind = "llama"
	KindOpenAI Kind = "openai"
	KindOllama Kind = "ollama"
)

// ParseKind accepts the kinds above, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindLocal, KindLlama, KindOpenAI, KindOllama:
		return k, nil
	case "":
		return KindLocal, nil
	}
	return "", fmt.Errorf("unknown backend kind %q", s)
}

// Backend streams completions from one server.
type Backend interface {
	Kind() Kind
	// Complete streams the completion for req, calling fn for each text
	// fragment in arrival order and once more with a Final fragment that
	// carries the Summary. An error from fn aborts the stream and is
	// returned as is.
	Complete(ctx context.Context, req Request, fn func(Fragment) error) (Summary, error)
	// Interrupt stops the in-flight Complete, which then returns
	// ErrInterrupted without yielding further fragments.
	Interrupt()
	ListModels(ctx context.Context) ([]string, error)
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is built fresh for every turn and not modified afterwards.
type Request struct {
	Model    string
	System   string
	Messages []Message

	Temperature   float64
	TopK          int
	TopP          float64
	RepeatPenalty float64
	Stop          []string
	MaxTokens     int
}

// Fragment is a piece of streamed text. The last fragment of a successful
// stream has Final set, empty Text and the Summary.
type Fragment struct {
	Text    string
	Final   bool
	Summary *Summary
}

// Summary describes a finished (or partial) completion.
type Summary struct {
	TurnID       string        `json:"turn_id"`
	Model        string        `json:"model,omitempty"`
	Text         string        `json:"text"`
	FinishReason string        `json:"finish_reason,omitempty"`
	Fragments    int           `json:"fragments"`
	Tokens       int           `json:"tokens"`
	PromptTokens int           `json:"prompt_tokens,omitempty"`
	// ResponseStart is the time to the first fragment, or the whole
	// duration when nothing was streamed.
	ResponseStart   time.Duration `json:"response_start"`
	Duration        time.Duration `json:"duration"`
	TokensPerSecond float64       `json:"tokens_per_second"`
}

// Config selects and configures a variant for New.
type Config struct {
	Kind Kind
	// URL is the server base URL for every kind but local.
	URL    string
	APIKey string
	// Model is sent as the request's model field; local fills it from the
	// model file name.
	Model string

	// Supervisor and Options drive the local kind.
	Supervisor *supervisor.Supervisor
	Options    supervisor.Options

	Client       *http.Client
	Logger       zerolog.Logger
	StallTimeout time.Duration
}

// New builds the backend cfg describes.
func New(cfg Config) (Backend, error) {
	switch cfg.Kind {
	case KindLocal, "":
		if cfg.Supervisor == nil {
			return nil, fmt.Errorf("local backend needs a supervisor")
		}
		if cfg.Options.ModelPath == "" {
			return nil, fmt.Errorf("local backend needs a model path")
		}
		return NewLocal(cfg.Supervisor, cfg.Options, cfg), nil
	case KindLlama:
		if cfg.URL == "" {
			return nil, fmt.Errorf("llama backend needs a url")
		}
		return NewRemoteLlama(cfg), nil
	case KindOpenAI:
		if cfg.URL == "" {
			return nil, fmt.Errorf("openai backend needs a url")
		}
		return NewOpenAI(cfg), nil
	case KindOllama:
		if cfg.URL == "" {
			return nil, fmt.Errorf("ollama backend needs a url")
		}
		return NewOllama(cfg), nil
	}
	return nil, fmt.Errorf("unknown backend kind %q", cfg.Kind)
}
