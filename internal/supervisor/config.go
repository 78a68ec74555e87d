package supervisor

import (
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/watchdog"
)

// Defaults applied when the corresponding Config or Options fields are unset.
const (
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 8690
	DefaultContextLength  = 4096
	DefaultHealthInterval = 1 * time.Second
	DefaultHealthTimeout  = 60 * time.Second
	DefaultReadyThreshold = 0.25
	defaultStopGrace      = 2 * time.Second

	// AutoGPULayers asks the supervisor to decide GPU offload from hardware
	// detection and Config.UseGPU.
	AutoGPULayers = -1
	// AutoThreads asks the supervisor to derive the thread count from the
	// number of CPU cores.
	AutoThreads = 0

	gpuAllLayers = 99
)

// Config holds the process-independent settings of a Supervisor.
type Config struct {
	// Bin is the llama.cpp server executable.
	Bin       string
	Host      string
	Port      int // 0 picks a free port per start
	ExtraArgs []string
	UseGPU    bool

	// WatchdogBin is the inferd-watchdog executable. Empty means look next
	// to the running executable, then on PATH.
	WatchdogBin       string
	DisableWatchdog   bool
	HeartbeatInterval time.Duration

	HealthInterval time.Duration
	HealthTimeout  time.Duration
	ReadyThreshold float64
	StopGrace      time.Duration

	Logger    zerolog.Logger
	Publisher EventPublisher
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = watchdog.HeartbeatInterval
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = DefaultHealthInterval
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = DefaultHealthTimeout
	}
	if c.ReadyThreshold <= 0 {
		c.ReadyThreshold = DefaultReadyThreshold
	}
	if c.StopGrace <= 0 {
		c.StopGrace = defaultStopGrace
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	return c
}

// Options describe one server instance. Two Start calls with equal resolved
// Options refer to the same instance.
type Options struct {
	ModelPath     string
	ContextLength int
	Threads       int // AutoThreads (0) derives it from the CPU count
	GPULayers     int // AutoGPULayers (-1) derives it from hardware detection
}
