package types

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	// Conversation so far, alternating user and assistant, starting and
	// ending with the user.
	// example: ["What is the capital of France?"]
	Messages []string `json:"messages" example:"What is the capital of France?"`
	// Overrides the configured system prompt.
	// example: You are a terse geography tutor.
	SystemPrompt string `json:"system_prompt,omitempty" example:"You are a terse geography tutor."`
	// Prompt template name (llama2, chatml, vicuna, alpaca, continuation).
	// Empty uses the configured or inferred one.
	// example: chatml
	Template string `json:"template,omitempty" example:"chatml"`
	// Sampling temperature; nil uses the configured default.
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
}

// FragmentEvent is the data of an SSE `message` event on /chat.
type FragmentEvent struct {
	// example: Hel
	Text string `json:"text" example:"Hel"`
}

// DoneEvent is the data of the SSE `done` event that ends a /chat stream.
type DoneEvent struct {
	// example: 4b7c0f7e-1a0a-4ad4-9f0e-5c1b7f6b2e11
	TurnID string `json:"turn_id" example:"4b7c0f7e-1a0a-4ad4-9f0e-5c1b7f6b2e11"`
	// example: Paris.
	Text string `json:"text" example:"Paris."`
	// example: stop
	FinishReason string `json:"finish_reason,omitempty" example:"stop"`
	// example: 3
	Fragments int `json:"fragments" example:"3"`
	// example: 3
	Tokens int `json:"tokens" example:"3"`
	// Milliseconds until the first fragment.
	// example: 120
	ResponseStartMS int64 `json:"response_start_ms" example:"120"`
	// example: 640
	DurationMS int64 `json:"duration_ms" example:"640"`
	// example: 42.5
	TokensPerSecond float64 `json:"tokens_per_second" example:"42.5"`
	// True when the turn was cut short by POST /interrupt.
	Interrupted bool `json:"interrupted,omitempty"`
}

// ErrorEvent is the data of the SSE `error` event sent when a /chat turn
// fails after streaming began. The summary fields describe what was
// streamed before the failure.
type ErrorEvent struct {
	DoneEvent
	// example: network error during stream: unexpected EOF
	Error string `json:"error" example:"network error during stream: unexpected EOF"`
	// example: 502
	Code int `json:"code" example:"502"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of available models.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// ServerStatus describes the supervised llama.cpp server.
type ServerStatus struct {
	Running bool `json:"running"`
	// example: mistral-7b-instruct-v0.2.Q4_K_M.gguf
	Model string `json:"model,omitempty" example:"mistral-7b-instruct-v0.2.Q4_K_M.gguf"`
	// example: http://127.0.0.1:8690
	BaseURL string `json:"base_url,omitempty" example:"http://127.0.0.1:8690"`
	// example: 12345
	PID int `json:"pid,omitempty" example:"12345"`
	// example: 12346
	WatchdogPID int `json:"watchdog_pid,omitempty" example:"12346"`
	// example: 6
	Threads int `json:"threads,omitempty" example:"6"`
	// example: 99
	GPULayers int `json:"gpu_layers" example:"99"`
	// example: 4096
	ContextLength int `json:"context_length,omitempty" example:"4096"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Agent state: cold, coldProcessing, ready or processing.
	// example: ready
	State string `json:"state" example:"ready"`
	// Backend kind: local, llama, openai or ollama.
	// example: local
	Backend string `json:"backend" example:"local"`
	// example: mistral-7b-instruct-v0.2.Q4_K_M.gguf
	Model string `json:"model,omitempty" example:"mistral-7b-instruct-v0.2.Q4_K_M.gguf"`
	// Prompt template used when a request names none.
	// example: llama2
	Template string `json:"template" example:"llama2"`
	// Health score of the local server in [0,1].
	// example: 0.93
	HealthScore float64 `json:"health_score" example:"0.93"`
	// Present for the local backend.
	Server *ServerStatus `json:"server,omitempty"`
	// Last error observed (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the service in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// SwitchRequest is the body of POST /switch. Empty fields keep the
// configured value.
type SwitchRequest struct {
	// example: ollama
	Kind string `json:"kind" example:"ollama"`
	// example: http://localhost:11434
	URL    string `json:"url,omitempty" example:"http://localhost:11434"`
	APIKey string `json:"api_key,omitempty"`
	// example: llama2:7b
	Model string `json:"model,omitempty" example:"llama2:7b"`
}

// AckResponse acknowledges control requests.
type AckResponse struct {
	// example: ready
	State string `json:"state" example:"ready"`
}
