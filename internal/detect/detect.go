// Package detect answers the one hardware question the supervisor has:
// can the inference server offload layers to a GPU on this machine.
package detect

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"
)

const detectTimeout = 5 * time.Second

// Accelerator describes the GPU found, if any.
type Accelerator struct {
	Kind string // "metal", "cuda", "rocm" or "cpu"
	Name string
}

// Capable reports whether layers can be offloaded.
func (a Accelerator) Capable() bool { return a.Kind != "" && a.Kind != "cpu" }

var (
	cacheOnce sync.Once
	cached    Accelerator
)

// GPU returns the detected accelerator. Detection runs once per process.
func GPU() Accelerator {
	cacheOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), detectTimeout)
		defer cancel()
		cached = detect(ctx, runtime.GOOS, runtime.GOARCH, lookPathRunner{})
	})
	return cached
}

// runner abstracts command execution so detection can be tested.
type runner interface {
	LookPath(name string) (string, error)
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type lookPathRunner struct{}

func (lookPathRunner) LookPath(name string) (string, error) { return exec.LookPath(name) }

func (lookPathRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func detect(ctx context.Context, goos, goarch string, r runner) Accelerator {
	// Apple Silicon always carries a Metal-capable GPU.
	if goos == "darwin" && goarch == "arm64" {
		return Accelerator{Kind: "metal", Name: "Apple Silicon"}
	}
	if _, err := r.LookPath("nvidia-smi"); err == nil {
		out, err := r.Output(ctx, "nvidia-smi", "--query-gpu=name", "--format=csv,noheader")
		if err == nil {
			if name := firstLine(out); name != "" {
				return Accelerator{Kind: "cuda", Name: name}
			}
		}
	}
	if _, err := r.LookPath("rocm-smi"); err == nil {
		out, err := r.Output(ctx, "rocm-smi", "--showproductname")
		if err == nil && strings.Contains(strings.ToLower(string(out)), "gpu") {
			return Accelerator{Kind: "rocm", Name: "AMD GPU"}
		}
	}
	return Accelerator{Kind: "cpu"}
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
