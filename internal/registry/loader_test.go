package registry

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestGGUFScanner_ScanFiltersGGUF(t *testing.T) {
	dir := t.TempDir()
	// create files
	files := []string{
		"a.gguf",
		"b.GGUF", // case-insensitive
		"not-model.txt",
		"model.bin",
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("x"), 0o644); err != nil {
			t.Fatalf("write temp file: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.gguf"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	s := NewGGUFScanner()
	models, err := s.Scan(dir)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	if models[0].ID != "a.gguf" || models[1].ID != "b.GGUF" {
		t.Fatalf("models not sorted by id: %+v", models)
	}
	for _, m := range models {
		if !filepath.IsAbs(m.Path) || m.SizeBytes != 1 {
			t.Fatalf("bad model entry: %+v", m)
		}
	}
}

func TestDescribe(t *testing.T) {
	cases := []struct {
		file, name, quant, format string
	}{
		{"mistral-7b-instruct-v0.2.Q4_K_M.gguf", "mistral-7b-instruct-v0.2", "Q4_K_M", "llama2"},
		{"openhermes-2.5-mistral-7b.Q5_K_M.gguf", "openhermes-2.5-mistral-7b", "Q5_K_M", "chatml"},
		{"tinyllama-1.1b-chat-v1.0.Q8_0.gguf", "tinyllama-1.1b-chat-v1.0", "Q8_0", "vicuna"},
		{"phi-2-f16.gguf", "phi-2", "F16", "vicuna"},
		{"mystery.gguf", "mystery", "", "vicuna"},
	}
	for _, c := range cases {
		m := describe(c.file)
		if m.ID != c.file || m.Name != c.name || m.Quant != c.quant || !strings.EqualFold(m.Format, c.format) {
			t.Errorf("describe(%q) = %+v, want name=%q quant=%q format=%q", c.file, m, c.name, c.quant, c.format)
		}
	}
}

func TestGGUFScanner_ExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir on this platform: %v", err)
	}
	// create temporary directory under home
	hTmp, err := os.MkdirTemp(home, "inferd-registry-*")
	if err != nil {
		t.Skipf("cannot create temp under home: %v", err)
	}
	defer os.RemoveAll(hTmp)
	if err := os.WriteFile(filepath.Join(hTmp, "x.gguf"), []byte(""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	var tildePath string
	if runtime.GOOS == "windows" {
		tildePath = filepath.Join("~", filepath.Base(hTmp))
	} else {
		tildePath = "~/" + filepath.Base(hTmp)
	}
	models, err := NewGGUFScanner().Scan(tildePath)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 1 || models[0].ID != "x.gguf" {
		t.Fatalf("unexpected models: %+v", models)
	}
}

func TestLoadDirMissing(t *testing.T) {
	if _, err := LoadDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "m.Q4_0.gguf"), []byte(""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	for _, ref := range []string{"m.Q4_0.gguf", "m"} {
		p, err := ResolvePath(dir, ref)
		if err != nil || p != filepath.Join(dir, "m.Q4_0.gguf") {
			t.Fatalf("ResolvePath(%q) = %q, %v", ref, p, err)
		}
	}
	abs := filepath.Join(dir, "elsewhere.gguf")
	if p, err := ResolvePath(dir, abs); err != nil || p != abs {
		t.Fatalf("absolute path not passed through: %q %v", p, err)
	}
	if _, err := ResolvePath(dir, "missing"); err == nil {
		t.Fatalf("expected not found")
	}
	if _, err := ResolvePath(dir, ""); err == nil {
		t.Fatalf("expected error for empty model")
	}
}
