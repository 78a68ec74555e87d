package prompt

import (
	"path/filepath"
	"regexp"
	"strings"
)

type formatRule struct {
	re     *regexp.Regexp
	format Format
}

// Rules are evaluated in order against the lowercased file name; the first
// match wins.
var formatRules = []formatRule{
	{regexp.MustCompile(`mistral-7b-instruct`), Llama2},
	{regexp.MustCompile(`llama-?2|codellama`), Llama2},
	{regexp.MustCompile(`openhermes|hermes.*mistral`), ChatML},
	{regexp.MustCompile(`chatml|qwen|dolphin|openchat|mixtral-8x7b-instruct`), ChatML},
	{regexp.MustCompile(`hermes|alpaca|wizardcoder`), Alpaca},
	{regexp.MustCompile(`vicuna|wizardlm`), Vicuna},
	{regexp.MustCompile(`(^|[-_.])(base|continuation)([-_.]|$)`), Continuation},
}

// InferFormat guesses the template format from a model name or file path.
// It never fails; unknown names get DefaultFormat.
func InferFormat(modelName string) Format {
	name := strings.ToLower(filepath.Base(strings.TrimSpace(modelName)))
	if name == "" || name == "." {
		return DefaultFormat
	}
	for _, r := range formatRules {
		if r.re.MatchString(name) {
			return r.format
		}
	}
	return DefaultFormat
}
