package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"inferd/internal/backend"
	"inferd/pkg/types"
)

type mockService struct {
	models    []types.Model
	modelsErr error
	status    types.StatusResponse
	ready     bool

	fragments []string
	chatErr   error
	gotChat   types.ChatRequest

	warmupErr   error
	switchErr   error
	gotSwitch   types.SwitchRequest
	interrupted bool
}

func (m *mockService) ListModels(context.Context) ([]types.Model, error) {
	return append([]types.Model(nil), m.models...), m.modelsErr
}
func (m *mockService) Status() types.StatusResponse { return m.status }
func (m *mockService) Ready() bool                  { return m.ready }
func (m *mockService) Interrupt()                   { m.interrupted = true }
func (m *mockService) Warmup(context.Context) error { return m.warmupErr }
func (m *mockService) Switch(_ context.Context, req types.SwitchRequest) error {
	m.gotSwitch = req
	return m.switchErr
}

// Chat emits the scripted fragments, then fails with chatErr if set.
func (m *mockService) Chat(ctx context.Context, req types.ChatRequest, fn func(string)) (backend.Summary, error) {
	m.gotChat = req
	sum := backend.Summary{TurnID: "turn-1", FinishReason: "stop"}
	for _, f := range m.fragments {
		fn(f)
		sum.Text += f
		sum.Fragments++
	}
	return sum, m.chatErr
}

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

func postJSON(h http.Handler, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)
	return w
}

func TestModelsHandler(t *testing.T) {
	svc := &mockService{models: []types.Model{{ID: "m1"}, {ID: "m2"}}}
	r := NewMux(svc)
	req := httptest.NewRequest(http.MethodGet, "/models", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	var body types.ModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body.Models) != 2 {
		t.Fatalf("models len=%d", len(body.Models))
	}
}

func TestModelsHandlerEmptyListIsArray(t *testing.T) {
	w := httptest.NewRecorder()
	NewMux(&mockService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/models", nil))
	if !strings.Contains(w.Body.String(), `"models":[]`) {
		t.Fatalf("body=%s", w.Body.String())
	}
}

func TestModelsHandlerBackendError(t *testing.T) {
	svc := &mockService{modelsErr: &backend.NetworkError{Op: "connect", Err: io.ErrUnexpectedEOF}}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/models", nil))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestStatusHandler(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{State: "ready", Backend: "local", HealthScore: 0.9}}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.State != "ready" || body.HealthScore != 0.9 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestReadyz(t *testing.T) {
	svc := &mockService{ready: true}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz_NotReady(t *testing.T) {
	svc := &mockService{ready: false}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "cold") {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestInterruptHandler(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{State: "processing"}}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/interrupt", nil))
	if w.Code != http.StatusOK || !svc.interrupted {
		t.Fatalf("status=%d interrupted=%v", w.Code, svc.interrupted)
	}
	if !strings.Contains(w.Body.String(), `"state":"processing"`) {
		t.Fatalf("body=%s", w.Body.String())
	}
}

func TestWarmupHandler(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{State: "ready"}}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/warmup", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	svc.warmupErr = mockHTTPError{msg: "busy", code: http.StatusConflict}
	w = httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/warmup", nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestSwitchHandler(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{State: "ready"}}
	w := postJSON(NewMux(svc), "/switch", `{"kind":"ollama","url":"http://localhost:11434","model":"llama2:7b"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if svc.gotSwitch.Kind != "ollama" || svc.gotSwitch.Model != "llama2:7b" {
		t.Fatalf("switch request = %+v", svc.gotSwitch)
	}
	svc.switchErr = mockHTTPError{msg: "unknown backend kind", code: http.StatusBadRequest}
	if w := postJSON(NewMux(svc), "/switch", `{"kind":"gpt"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestSwitchUnsupportedMediaType(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/switch", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	NewMux(&mockService{}).ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestSecurityHeader(t *testing.T) {
	w := httptest.NewRecorder()
	NewMux(&mockService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options=nosniff, got %q", got)
	}
}

func TestCORSHeaders(t *testing.T) {
	SetCORSOptions(true, []string{"*"}, nil, nil)
	defer SetCORSOptions(false, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/models", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	NewMux(&mockService{}).ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Fatalf("expected CORS header Access-Control-Allow-Origin to be set, got empty")
	}
}
