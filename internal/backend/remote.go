package backend

import (
	"context"
	"net"
	"strconv"
)

// RemoteLlama streams from a llama.cpp server the operator runs elsewhere.
type RemoteLlama struct{ *client }

func NewRemoteLlama(cfg Config) *RemoteLlama {
	return &RemoteLlama{client: newClient(KindLlama, cfg, staticBase(cfg.URL))}
}

// RemoteLlamaAt is NewRemoteLlama for a host and port pair.
func RemoteLlamaAt(host string, port int, cfg Config) *RemoteLlama {
	cfg.URL = "http://" + net.JoinHostPort(host, strconv.Itoa(port))
	return NewRemoteLlama(cfg)
}

func (r *RemoteLlama) Complete(ctx context.Context, req Request, fn func(Fragment) error) (Summary, error) {
	return r.complete(ctx, req, fn)
}

// OpenAI streams from any OpenAI-compatible server. The API key, when set,
// is sent as a bearer token.
type OpenAI struct{ *client }

func NewOpenAI(cfg Config) *OpenAI {
	return &OpenAI{client: newClient(KindOpenAI, cfg, staticBase(cfg.URL))}
}

func (o *OpenAI) Complete(ctx context.Context, req Request, fn func(Fragment) error) (Summary, error) {
	return o.complete(ctx, req, fn)
}

// Ollama streams through Ollama's OpenAI-compatible endpoint and lists
// models from /api/tags.
type Ollama struct{ *client }

func NewOllama(cfg Config) *Ollama {
	c := newClient(KindOllama, cfg, staticBase(cfg.URL))
	c.modelsPath = "/api/tags"
	c.decodeModels = decodeOllamaModels
	return &Ollama{client: c}
}

func (o *Ollama) Complete(ctx context.Context, req Request, fn func(Fragment) error) (Summary, error) {
	return o.complete(ctx, req, fn)
}
