package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"inferd/internal/backend"
	"inferd/internal/prompt"
	"inferd/internal/supervisor"
)

// Config holds runtime parameters for the service. Zero values mean
// "unspecified" and are replaced by Defaults.
type Config struct {
	Addr      string  `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir string  `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	Log       Log     `json:"log" yaml:"log" toml:"log"`
	Backend   Backend `json:"backend" yaml:"backend" toml:"backend"`
	Server    Server  `json:"server" yaml:"server" toml:"server"`
	Agent     Agent   `json:"agent" yaml:"agent" toml:"agent"`
	HTTP      HTTP    `json:"http" yaml:"http" toml:"http"`
}

type Log struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"` // console | json
}

// Backend selects where completions come from.
type Backend struct {
	Kind   string `json:"kind" yaml:"kind" toml:"kind"` // local | llama | openai | ollama
	URL    string `json:"url" yaml:"url" toml:"url"`
	APIKey string `json:"api_key" yaml:"api_key" toml:"api_key"`
	// Model is a file under models_dir (or an absolute path) for local, and
	// the server-side model name otherwise.
	Model string `json:"model" yaml:"model" toml:"model"`
}

// Server configures the supervised llama.cpp server.
type Server struct {
	Bin                  string   `json:"bin" yaml:"bin" toml:"bin"`
	Host                 string   `json:"host" yaml:"host" toml:"host"`
	Port                 int      `json:"port" yaml:"port" toml:"port"` // -1 picks a free port
	CtxSize              int      `json:"ctx_size" yaml:"ctx_size" toml:"ctx_size"`
	Threads              int      `json:"threads" yaml:"threads" toml:"threads"`
	GPULayers            *int     `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`
	UseGPU               *bool    `json:"use_gpu" yaml:"use_gpu" toml:"use_gpu"`
	ExtraArgs            []string `json:"extra_args" yaml:"extra_args" toml:"extra_args"`
	WatchdogBin          string   `json:"watchdog_bin" yaml:"watchdog_bin" toml:"watchdog_bin"`
	DisableWatchdog      bool     `json:"disable_watchdog" yaml:"disable_watchdog" toml:"disable_watchdog"`
	HealthTimeoutSeconds int      `json:"health_timeout_seconds" yaml:"health_timeout_seconds" toml:"health_timeout_seconds"`
	HealthIntervalMS     int      `json:"health_interval_ms" yaml:"health_interval_ms" toml:"health_interval_ms"`
}

// Agent holds the conversation defaults.
type Agent struct {
	SystemPrompt  string   `json:"system_prompt" yaml:"system_prompt" toml:"system_prompt"`
	Template      string   `json:"template" yaml:"template" toml:"template"` // empty infers from the model name
	// Temperature is a pointer so an explicit 0 (greedy decoding) survives Defaults.
	Temperature   *float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopK          int      `json:"top_k" yaml:"top_k" toml:"top_k"`
	TopP          float64  `json:"top_p" yaml:"top_p" toml:"top_p"`
	RepeatPenalty float64  `json:"repeat_penalty" yaml:"repeat_penalty" toml:"repeat_penalty"`
	MaxTokens     int      `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
}

// Temp returns the configured sampling temperature, DefaultTemperature when unset.
func (a Agent) Temp() float64 {
	if a.Temperature == nil {
		return DefaultTemperature
	}
	return *a.Temperature
}

type HTTP struct {
	CORSEnabled  bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
}

const (
	DefaultAddr          = ":8080"
	DefaultModelsDir     = "~/models/llm"
	DefaultServerBin     = "llama-server"
	DefaultSystemPrompt  = "You are a helpful assistant."
	DefaultTemperature   = 0.7
	DefaultMaxBodyBytes  = 1 << 20
	defaultTopK          = 40
	defaultTopP          = 0.95
	defaultRepeatPenalty = 1.1
)

// Defaults fills every unspecified field.
func Defaults(c Config) Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.ModelsDir == "" {
		c.ModelsDir = DefaultModelsDir
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Backend.Kind == "" {
		c.Backend.Kind = string(backend.KindLocal)
	}
	if c.Server.Bin == "" {
		c.Server.Bin = DefaultServerBin
	}
	if c.Server.Host == "" {
		c.Server.Host = supervisor.DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = supervisor.DefaultPort
	}
	if c.Server.CtxSize == 0 {
		c.Server.CtxSize = supervisor.DefaultContextLength
	}
	if c.Server.GPULayers == nil {
		v := supervisor.AutoGPULayers
		c.Server.GPULayers = &v
	}
	if c.Server.UseGPU == nil {
		v := true
		c.Server.UseGPU = &v
	}
	if c.Server.HealthTimeoutSeconds == 0 {
		c.Server.HealthTimeoutSeconds = int(supervisor.DefaultHealthTimeout / time.Second)
	}
	if c.Server.HealthIntervalMS == 0 {
		c.Server.HealthIntervalMS = int(supervisor.DefaultHealthInterval / time.Millisecond)
	}
	if c.Agent.SystemPrompt == "" {
		c.Agent.SystemPrompt = DefaultSystemPrompt
	}
	if c.Agent.Temperature == nil {
		v := DefaultTemperature
		c.Agent.Temperature = &v
	}
	if c.Agent.TopK == 0 {
		c.Agent.TopK = defaultTopK
	}
	if c.Agent.TopP == 0 {
		c.Agent.TopP = defaultTopP
	}
	if c.Agent.RepeatPenalty == 0 {
		c.Agent.RepeatPenalty = defaultRepeatPenalty
	}
	if c.HTTP.MaxBodyBytes == 0 {
		c.HTTP.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return c
}

// ApplyEnv overrides fields from INFERD_* environment variables.
func ApplyEnv(c Config) (Config, error) {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := os.LookupEnv(name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	str("INFERD_ADDR", &c.Addr)
	str("INFERD_MODELS_DIR", &c.ModelsDir)
	str("INFERD_LOG_LEVEL", &c.Log.Level)
	str("INFERD_LOG_FORMAT", &c.Log.Format)
	str("INFERD_BACKEND", &c.Backend.Kind)
	str("INFERD_BACKEND_URL", &c.Backend.URL)
	str("INFERD_API_KEY", &c.Backend.APIKey)
	str("INFERD_MODEL", &c.Backend.Model)
	str("INFERD_SERVER_BIN", &c.Server.Bin)
	str("INFERD_WATCHDOG_BIN", &c.Server.WatchdogBin)
	num("INFERD_SERVER_PORT", &c.Server.Port)
	num("INFERD_CTX_SIZE", &c.Server.CtxSize)
	num("INFERD_THREADS", &c.Server.Threads)
	if v, ok := os.LookupEnv("INFERD_GPU_LAYERS"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("INFERD_GPU_LAYERS: %w", err))
		} else {
			c.Server.GPULayers = &n
		}
	}
	if v, ok := os.LookupEnv("INFERD_USE_GPU"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("INFERD_USE_GPU: %w", err))
		} else {
			c.Server.UseGPU = &b
		}
	}
	if v, ok := os.LookupEnv("INFERD_TEMPERATURE"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("INFERD_TEMPERATURE: %w", err))
		} else {
			c.Agent.Temperature = &f
		}
	}
	str("INFERD_TEMPLATE", &c.Agent.Template)
	str("INFERD_SYSTEM_PROMPT", &c.Agent.SystemPrompt)
	return c, errors.Join(errs...)
}

// Validate checks a defaulted Config for values no component can use.
func Validate(c Config) error {
	var errs []error
	kind, err := backend.ParseKind(c.Backend.Kind)
	if err != nil {
		errs = append(errs, err)
	}
	if kind != backend.KindLocal && kind != "" && c.Backend.URL == "" {
		errs = append(errs, fmt.Errorf("backend %s requires backend.url", kind))
	}
	if c.Agent.Template != "" {
		if _, err := prompt.ParseFormat(c.Agent.Template); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Server.Port < -1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.CtxSize < 0 || c.Server.Threads < 0 {
		errs = append(errs, errors.New("server.ctx_size and server.threads must not be negative"))
	}
	if t := c.Agent.Temp(); t < 0 || t > 2 {
		errs = append(errs, fmt.Errorf("agent.temperature must be within [0,2], got %v", t))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// SupervisorPort maps the configured port onto supervisor.Config.Port,
// where 0 means a free port.
func (s Server) SupervisorPort() int {
	if s.Port < 0 {
		return 0
	}
	return s.Port
}

// Format resolves the prompt template: the configured one, else inferred
// from the model name.
func (c Config) Format() prompt.Format {
	if f, err := prompt.ParseFormat(c.Agent.Template); err == nil && c.Agent.Template != "" {
		return f
	}
	return prompt.InferFormat(c.Backend.Model)
}
