// Package registry discovers GGUF model files and describes them.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"inferd/internal/prompt"
	"inferd/pkg/types"
)

// GGUFScanner scans a directory for *.gguf files.
type GGUFScanner struct{}

func NewGGUFScanner() *GGUFScanner { return &GGUFScanner{} }

var quantRe = regexp.MustCompile(`(?i)[._-]((?:i?q\d+(?:_[a-z0-9]+)*)|f16|f32|bf16)$`)

// Scan builds a registry from the file names in dir, sorted by ID. ID is
// the full filename; Path the absolute file path. The prompt format is
// inferred from the name.
func (s *GGUFScanner) Scan(dir string) ([]types.Model, error) {
	base, err := ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		m := describe(name)
		m.Path = filepath.Join(abs, name)
		if info, err := e.Info(); err == nil {
			m.SizeBytes = info.Size()
		}
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// LoadDir is NewGGUFScanner().Scan(dir).
func LoadDir(dir string) ([]types.Model, error) {
	return NewGGUFScanner().Scan(dir)
}

// describe derives the metadata carried by a model file name.
func describe(file string) types.Model {
	stem := file[:len(file)-len(filepath.Ext(file))]
	m := types.Model{ID: file, Name: stem, Format: prompt.InferFormat(file).String()}
	if loc := quantRe.FindStringSubmatchIndex(stem); loc != nil {
		m.Quant = strings.ToUpper(stem[loc[2]:loc[3]])
		m.Name = stem[:loc[0]]
	}
	return m
}

// Find returns the model whose ID or Name equals id.
func Find(models []types.Model, id string) (types.Model, bool) {
	for _, m := range models {
		if m.ID == id || m.Name == id {
			return m, true
		}
	}
	return types.Model{}, false
}

// ResolvePath maps a configured model reference to a file: absolute (or
// ~-prefixed) paths are used as is, anything else is looked up in dir.
func ResolvePath(dir, model string) (string, error) {
	if model == "" {
		return "", fmt.Errorf("no model configured")
	}
	if strings.HasPrefix(model, "~") || filepath.IsAbs(model) {
		return ExpandHome(model)
	}
	models, err := LoadDir(dir)
	if err != nil {
		return "", err
	}
	if m, ok := Find(models, model); ok {
		return m.Path, nil
	}
	return "", fmt.Errorf("model %q not found in %s", model, dir)
}

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	// handle cases like ~/models/llm
	return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~/"), "~\\")), nil
}
