// Package httpapi exposes the runtime over HTTP: model listing, status,
// streamed chat turns (SSE) and the control endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inferd/internal/backend"
	"inferd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels(ctx context.Context) ([]types.Model, error)
	Status() types.StatusResponse
	Chat(ctx context.Context, req types.ChatRequest, fn func(string)) (backend.Summary, error)
	Interrupt()
	Warmup(ctx context.Context) error
	Switch(ctx context.Context, req types.SwitchRequest) error
	Ready() bool
}

type handlers struct {
	svc Service
}

func NewMux(svc Service) http.Handler {
	h := &handlers{svc: svc}
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	// Compression for JSON endpoints; text/event-stream is left alone.
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/models", h.models)
	r.Get("/status", h.status)
	r.Post("/chat", h.chat)
	r.Post("/interrupt", h.interrupt)
	r.Post("/warmup", h.warmup)
	r.Post("/switch", h.switchBackend)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("cold"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

// decodeJSON enforces the content type and body limit, then decodes into v.
// It writes the error response itself and reports whether to continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Oversized bodies also land here; keep the size limit out of the message.
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// models godoc
// @Summary      List models
// @Description  Model files in models_dir for the local backend, the server's models otherwise.
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.ModelsResponse
// @Failure      502  {object}  types.ErrorResponse
// @Router       /models [get]
func (h *handlers) models(w http.ResponseWriter, r *http.Request) {
	models, err := h.svc.ListModels(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if models == nil {
		models = []types.Model{}
	}
	writeJSON(w, types.ModelsResponse{Models: models})
}

// status godoc
// @Summary      Runtime status
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.Status())
}

// chat godoc
// @Summary      Run one chat turn
// @Description  Streams `message` events (one per fragment) and a final `done` event with the summary. Failures after streaming began arrive as an `error` event (types.ErrorEvent) carrying the partial summary.
// @Tags         chat
// @Accept       json
// @Produce      text/event-stream
// @Param        request  body      types.ChatRequest  true  "conversation"
// @Success      200      {object}  types.DoneEvent
// @Failure      400      {object}  types.ErrorResponse
// @Failure      409      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /chat [post]
func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		writeJSONError(w, http.StatusBadRequest, "messages are required")
		return
	}

	lvl := requestLogLevel(r)
	log := reqLogger(r)
	if lvl >= LevelInfo {
		log.Info().Int("messages", len(req.Messages)).Str("template", req.Template).Msg("chat start")
	}

	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	if chatTimeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, chatTimeout)
		defer tcancel()
	}

	start := time.Now()
	sw := newSSEWriter(w)
	sum, err := h.svc.Chat(ctx, req, func(text string) {
		if lvl >= LevelDebug {
			log.Debug().Str("fragment", text).Msg("chat>")
		}
		_ = sw.event("message", types.FragmentEvent{Text: text})
	})
	interrupted := errors.Is(err, backend.ErrInterrupted)
	if err != nil && !interrupted {
		// Client went away or the server is shutting down.
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		status := statusFor(err)
		if sw.started {
			_ = sw.event("error", types.ErrorEvent{DoneEvent: doneEvent(sum, false), Error: err.Error(), Code: status})
		} else {
			writeJSONError(w, status, err.Error())
		}
		if lvl >= LevelError {
			log.Warn().Int("status", status).Dur("dur", time.Since(start)).Err(err).Msg("chat end")
		}
		return
	}
	_ = sw.event("done", doneEvent(sum, interrupted))
	if lvl >= LevelInfo {
		log.Info().Str("turn_id", sum.TurnID).Int("fragments", sum.Fragments).
			Bool("interrupted", interrupted).Dur("dur", time.Since(start)).Msg("chat end")
	}
}

func doneEvent(sum backend.Summary, interrupted bool) types.DoneEvent {
	return types.DoneEvent{
		TurnID:          sum.TurnID,
		Text:            sum.Text,
		FinishReason:    sum.FinishReason,
		Fragments:       sum.Fragments,
		Tokens:          sum.Tokens,
		ResponseStartMS: sum.ResponseStart.Milliseconds(),
		DurationMS:      sum.Duration.Milliseconds(),
		TokensPerSecond: sum.TokensPerSecond,
		Interrupted:     interrupted,
	}
}

// interrupt godoc
// @Summary      Interrupt the running turn
// @Description  The turn's stream ends with a `done` event marked interrupted. A no-op when idle.
// @Tags         chat
// @Produce      json
// @Success      200  {object}  types.AckResponse
// @Router       /interrupt [post]
func (h *handlers) interrupt(w http.ResponseWriter, r *http.Request) {
	h.svc.Interrupt()
	writeJSON(w, types.AckResponse{State: h.svc.Status().State})
}

// warmup godoc
// @Summary      Load the backend
// @Description  Runs a one-token completion so the first real turn does not pay for the model load.
// @Tags         control
// @Produce      json
// @Success      200  {object}  types.AckResponse
// @Failure      409  {object}  types.ErrorResponse
// @Failure      503  {object}  types.ErrorResponse
// @Router       /warmup [post]
func (h *handlers) warmup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	if err := h.svc.Warmup(ctx); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, types.AckResponse{State: h.svc.Status().State})
}

// switchBackend godoc
// @Summary      Switch backend
// @Description  Rebinds the agent to another backend or model and warms it up.
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        request  body      types.SwitchRequest  true  "target backend"
// @Success      200      {object}  types.AckResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      409      {object}  types.ErrorResponse
// @Router       /switch [post]
func (h *handlers) switchBackend(w http.ResponseWriter, r *http.Request) {
	var req types.SwitchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	if err := h.svc.Switch(ctx, req); err != nil {
		status := writeError(w, err)
		log := reqLogger(r)
		log.Warn().Int("status", status).Err(err).Msg("switch failed")
		return
	}
	writeJSON(w, types.AckResponse{State: h.svc.Status().State})
}
