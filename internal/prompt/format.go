package prompt

import (
	"fmt"
	"strings"
)

// Format identifies a prompt template grammar.
type Format int

const (
	Vicuna Format = iota
	Llama2
	ChatML
	Alpaca
	Continuation
)

// DefaultFormat is used when nothing more specific is known about a model.
const DefaultFormat = Vicuna

var formatNames = map[Format]string{
	Vicuna:       "vicuna",
	Llama2:       "llama2",
	ChatML:       "chatml",
	Alpaca:       "alpaca",
	Continuation: "continuation",
}

// Formats lists every supported format in a stable order.
func Formats() []Format {
	return []Format{Llama2, ChatML, Vicuna, Alpaca, Continuation}
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// ParseFormat maps a config or CLI string to a Format. Matching ignores case,
// so "chatML" and "chatml" are the same format.
func ParseFormat(s string) (Format, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for f, name := range formatNames {
		if name == key {
			return f, nil
		}
	}
	return DefaultFormat, fmt.Errorf("unknown prompt format: %q", s)
}

// MarshalText lets formats appear as plain strings in JSON/YAML/TOML.
func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText is the inverse of MarshalText.
func (f *Format) UnmarshalText(b []byte) error {
	v, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// StopWords returns the stop sequences a server should honor for the format.
// The returned slice is a fresh copy.
func StopWords(f Format) []string {
	var words []string
	switch f {
	case Llama2:
		words = []string{"</s>", "[INST]"}
	case ChatML:
		words = []string{"<|im_end|>", "<|im_start|>"}
	case Vicuna:
		words = []string{"</s>", "USER:"}
	case Alpaca:
		words = []string{"### Instruction:", "</s>"}
	case Continuation:
		return nil
	default:
		return StopWords(DefaultFormat)
	}
	return words
}
