package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"inferd/internal/agent"
	"inferd/internal/backend"
	"inferd/internal/config"
	"inferd/internal/supervisor"
	"inferd/pkg/types"
)

// fakeServer speaks just enough of the OpenAI streaming protocol: every
// completion yields "Hel", "lo" and a stop chunk.
type fakeServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []map[string]any
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":"openhermes-2.5"},{"id":"llama-2-7b-chat"}]}`))
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"mistral:7b"}]}`))
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		fs.mu.Lock()
		fs.requests = append(fs.requests, body)
		fs.mu.Unlock()
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		for _, s := range []string{"Hel", "lo"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", s)
			fl.Flush()
		}
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		fl.Flush()
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) last() map[string]any {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.requests[len(fs.requests)-1]
}

func remoteConfig(url string) config.Config {
	return config.Defaults(config.Config{
		Backend: config.Backend{Kind: "llama", URL: url, Model: "llama-2-7b-chat"},
	})
}

func TestChatStreamsFragments(t *testing.T) {
	fs := newFakeServer(t)
	rt, err := New(remoteConfig(fs.URL), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var got []string
	temp := 0.2
	sum, err := rt.Chat(context.Background(), types.ChatRequest{
		Messages:     []string{"hi"},
		SystemPrompt: "be brief",
		Temperature:  &temp,
	}, func(s string) { got = append(got, s) })
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if strings.Join(got, "") != "Hello" || sum.Text != "Hello" || sum.Fragments != 2 {
		t.Fatalf("fragments=%v summary=%+v", got, sum)
	}
	req := fs.last()
	if req["temperature"].(float64) != 0.2 {
		t.Fatalf("temperature not forwarded: %v", req["temperature"])
	}
	msgs := req["messages"].([]any)
	if first := msgs[0].(map[string]any); first["role"] != "system" || first["content"] != "be brief" {
		t.Fatalf("system prompt not sent first: %v", msgs)
	}
	if !rt.Ready() {
		t.Fatalf("runtime should be ready after a turn")
	}
	st := rt.Status()
	if st.State != "ready" || st.Backend != "llama" || st.Template != "llama2" || st.Server != nil {
		t.Fatalf("status = %+v", st)
	}
}

func TestConfiguredGreedyTemperatureIsSent(t *testing.T) {
	fs := newFakeServer(t)
	zero := 0.0
	cfg := config.Defaults(config.Config{
		Backend: config.Backend{Kind: "llama", URL: fs.URL, Model: "llama-2-7b-chat"},
		Agent:   config.Agent{Temperature: &zero},
	})
	rt, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := rt.Chat(context.Background(), types.ChatRequest{Messages: []string{"hi"}}, nil); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got := fs.last()["temperature"]; got != 0.0 {
		t.Fatalf("temperature = %v, want 0", got)
	}
}

func TestChatRejectsBadRequests(t *testing.T) {
	fs := newFakeServer(t)
	rt, err := New(remoteConfig(fs.URL), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	hot := 5.0
	for name, req := range map[string]types.ChatRequest{
		"no messages":  {},
		"bad template": {Messages: []string{"hi"}, Template: "mystery"},
		"temperature":  {Messages: []string{"hi"}, Temperature: &hot},
	} {
		_, err := rt.Chat(context.Background(), req, nil)
		var re *requestError
		if !errors.As(err, &re) || re.StatusCode() != http.StatusBadRequest {
			t.Errorf("%s: err = %v", name, err)
		}
	}
	if rt.Status().State != "cold" {
		t.Fatalf("rejected requests must not run a turn")
	}
}

func TestListModelsRemote(t *testing.T) {
	fs := newFakeServer(t)
	rt, err := New(remoteConfig(fs.URL), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	models, err := rt.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 || models[0].ID != "openhermes-2.5" || models[0].Format != "chatml" {
		t.Fatalf("models = %+v", models)
	}
}

func TestSwitchToOllama(t *testing.T) {
	fs := newFakeServer(t)
	rt, err := New(remoteConfig(fs.URL), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := rt.Switch(context.Background(), types.SwitchRequest{Kind: "ollama", Model: "mistral:7b"}); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if rt.Agent().Backend().Kind() != backend.KindOllama || rt.Agent().State() != agent.Ready {
		t.Fatalf("switch did not warm the new backend: %v %v", rt.Agent().Backend().Kind(), rt.Agent().State())
	}
	if warm := fs.last(); warm["max_tokens"].(float64) != 1 {
		t.Fatalf("warmup should ask for one token: %v", warm)
	}
	models, err := rt.ListModels(context.Background())
	if err != nil || len(models) != 1 || models[0].ID != "mistral:7b" {
		t.Fatalf("ollama models = %+v, %v", models, err)
	}
	if err := rt.Switch(context.Background(), types.SwitchRequest{Kind: "gpt"}); err == nil {
		t.Fatalf("unknown kind should be rejected")
	}
	if rt.Config().Backend.Kind != "ollama" {
		t.Fatalf("rejected switch changed the config")
	}
}

func TestReloadAppliesDefaultsWithoutRebuild(t *testing.T) {
	fs := newFakeServer(t)
	cfg := remoteConfig(fs.URL)
	rt, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	before := rt.Agent().Backend()
	cfg.Agent.Template = "chatml"
	cfg.Agent.SystemPrompt = "new system"
	rt.Reload(context.Background(), cfg)
	if rt.Agent().Backend() != before {
		t.Fatalf("template change must not rebuild the backend")
	}
	if sys, f := rt.Agent().Defaults(); sys != "new system" || f.String() != "chatml" {
		t.Fatalf("defaults = %q %v", sys, f)
	}

	cfg.Backend.Model = "other"
	rt.Reload(context.Background(), cfg)
	if rt.Agent().Backend() == before || rt.Config().Backend.Model != "other" {
		t.Fatalf("backend change must rebuild")
	}
}

func TestNewLocalNeedsModelFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Defaults(config.Config{ModelsDir: dir, Backend: config.Backend{Model: "missing.gguf"}})
	if _, err := New(cfg, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for missing model")
	}
	if err := os.WriteFile(filepath.Join(dir, "tiny.Q4_0.gguf"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Backend.Model = "tiny"
	rt, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Close()
	st := rt.Status()
	if st.Backend != "local" || st.Model != "tiny.Q4_0.gguf" || st.Server == nil || st.Server.Running {
		t.Fatalf("status = %+v", st)
	}
	models, err := rt.ListModels(context.Background())
	if err != nil || len(models) != 1 || models[0].Quant != "Q4_0" {
		t.Fatalf("local models = %+v, %v", models, err)
	}
}

func TestSupervisorConfigMapping(t *testing.T) {
	cfg := config.Defaults(config.Config{Server: config.Server{Port: -1, HealthIntervalMS: 250, DisableWatchdog: true}})
	sc := supervisorConfig(cfg, zerolog.Nop())
	if sc.Port != 0 || sc.HealthInterval.Milliseconds() != 250 || !sc.DisableWatchdog || !sc.UseGPU {
		t.Fatalf("supervisor config = %+v", sc)
	}
	if sc.HealthTimeout != supervisor.DefaultHealthTimeout {
		t.Fatalf("health timeout = %v", sc.HealthTimeout)
	}
}
