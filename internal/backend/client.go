package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	connectTimeout = 5 * time.Second
	listTimeout    = 10 * time.Second

	// DecodeStallTimeout bounds how long a stream may deliver only
	// undecodable events before it is treated as broken.
	DecodeStallTimeout = 30 * time.Second
)

// client is the HTTP plumbing every variant shares.
type client struct {
	kind    Kind
	baseURL func() string
	apiKey  string
	model   string
	http    *http.Client
	log     zerolog.Logger
	stall   time.Duration

	modelsPath   string
	decodeModels func(io.Reader) ([]string, error)

	interrupted atomic.Bool
	mu          sync.Mutex
	cancel      context.CancelFunc
}

func newClient(kind Kind, cfg Config, base func() string) *client {
	cli := cfg.Client
	if cli == nil {
		tr := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   connectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          16,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		// No client timeout: streams run as long as the caller's context allows.
		cli = &http.Client{Transport: tr, Timeout: 0}
	}
	stall := cfg.StallTimeout
	if stall <= 0 {
		stall = DecodeStallTimeout
	}
	return &client{
		kind:         kind,
		baseURL:      base,
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		http:         cli,
		log:          cfg.Logger.With().Str("backend", string(kind)).Logger(),
		stall:        stall,
		modelsPath:   "/v1/models",
		decodeModels: decodeOpenAIModels,
	}
}

// normalizeBase trims trailing slashes and a trailing /v1 so paths can be
// appended uniformly.
func normalizeBase(u string) string {
	u = strings.TrimRight(strings.TrimSpace(u), "/")
	return strings.TrimSuffix(u, "/v1")
}

func staticBase(u string) func() string {
	u = normalizeBase(u)
	return func() string { return u }
}

func (c *client) Kind() Kind { return c.kind }

// Interrupt flags the in-flight stream and cancels its request.
func (c *client) Interrupt() {
	c.interrupted.Store(true)
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// begin registers a new Complete call and returns its context. It must run
// before any blocking work so Interrupt can reach that work too.
func (c *client) begin(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	c.interrupted.Store(false)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	return ctx, func() {
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
		cancel()
	}
}

// complete runs one stream against the client's own base URL.
func (c *client) complete(ctx context.Context, req Request, fn func(Fragment) error) (Summary, error) {
	ctx, done := c.begin(ctx)
	defer done()
	return c.stream(ctx, c.baseURL(), req, fn)
}

func (c *client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// ListModels fetches the model identifiers the server advertises.
func (c *client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+c.modelsPath, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "connect", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &NetworkError{Op: "status", Err: fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(b)))}
	}
	models, err := c.decodeModels(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &ProtocolDecodeError{Data: c.modelsPath, Err: err}
	}
	return models, nil
}

func decodeOpenAIModels(r io.Reader) ([]string, error) {
	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(body.Data))
	for _, m := range body.Data {
		out = append(out, m.ID)
	}
	return out, nil
}

func decodeOllamaModels(r io.Reader) ([]string, error) {
	var body struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(body.Models))
	for _, m := range body.Models {
		out = append(out, m.Name)
	}
	return out, nil
}
