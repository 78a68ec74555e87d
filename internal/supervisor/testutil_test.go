package supervisor

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// buildTestBinary builds the fake llama server used for subprocess tests and returns its path.
func buildTestBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("short mode")
	}
	bin := filepath.Join(t.TempDir(), "fake_llama_server")
	if runtime.GOOS == "windows" {
		bin += ".exe"
	}
	cmd := exec.Command("go", "build", "-o", bin, "./testdata/fake_llama_server.go")
	cmd.Dir = "."
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build fake server: %v: %s", err, string(out))
	}
	return bin
}

// buildWatchdog builds cmd/inferd-watchdog into a temp dir.
func buildWatchdog(t *testing.T) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), watchdogName)
	cmd := exec.Command("go", "build", "-o", bin, "inferd/cmd/inferd-watchdog")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build watchdog: %v: %s", err, string(out))
	}
	return bin
}

func testConfig(bin string, pub EventPublisher) Config {
	return Config{
		Bin:             bin,
		Host:            "127.0.0.1",
		DisableWatchdog: true,
		HealthInterval:  50 * time.Millisecond,
		HealthTimeout:   10 * time.Second,
		StopGrace:       time.Second,
		Publisher:       pub,
	}
}

func testOptions(model string) Options {
	return Options{ModelPath: model, ContextLength: 512, Threads: 1, GPULayers: 0}
}

// waitFor polls cond until it holds or d elapses.
func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}
