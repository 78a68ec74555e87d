package detect

import (
	"context"
	"errors"
	"testing"
)

type fakeRunner struct {
	paths   map[string]bool
	outputs map[string]string
}

func (f fakeRunner) LookPath(name string) (string, error) {
	if f.paths[name] {
		return "/usr/bin/" + name, nil
	}
	return "", errors.New("not found")
}

func (f fakeRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	if out, ok := f.outputs[name]; ok {
		return []byte(out), nil
	}
	return nil, errors.New("failed")
}

func TestDetectAppleSilicon(t *testing.T) {
	a := detect(context.Background(), "darwin", "arm64", fakeRunner{})
	if a.Kind != "metal" || !a.Capable() {
		t.Fatalf("unexpected accelerator: %+v", a)
	}
}

func TestDetectNvidia(t *testing.T) {
	r := fakeRunner{
		paths:   map[string]bool{"nvidia-smi": true},
		outputs: map[string]string{"nvidia-smi": "NVIDIA GeForce RTX 4090\nNVIDIA GeForce RTX 4090\n"},
	}
	a := detect(context.Background(), "linux", "amd64", r)
	if a.Kind != "cuda" || a.Name != "NVIDIA GeForce RTX 4090" {
		t.Fatalf("unexpected accelerator: %+v", a)
	}
}

func TestDetectCPUFallback(t *testing.T) {
	a := detect(context.Background(), "linux", "amd64", fakeRunner{})
	if a.Capable() {
		t.Fatalf("expected cpu fallback, got %+v", a)
	}
}
