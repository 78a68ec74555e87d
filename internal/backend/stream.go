package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"inferd/internal/metrics"
)

type chatRequest struct {
	Model         string    `json:"model,omitempty"`
	Messages      []Message `json:"messages"`
	Stream        bool      `json:"stream"`
	Temperature   float64   `json:"temperature"`
	TopK          int       `json:"top_k,omitempty"`
	TopP          float64   `json:"top_p,omitempty"`
	RepeatPenalty float64   `json:"repeat_penalty,omitempty"`
	Stop          []string  `json:"stop,omitempty"`
	MaxTokens     int       `json:"max_tokens,omitempty"`
}

// streamChunk accepts both the OpenAI chunk shape and llama.cpp's native
// completion shape (content/stop at the top level).
type streamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Text         string  `json:"text"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`

	Content    *string `json:"content"`
	Stop       bool    `json:"stop"`
	StopType   string  `json:"stop_type"`
	StopReason string  `json:"stop_reason"`

	Timings *struct {
		PromptN            int     `json:"prompt_n"`
		PredictedN         int     `json:"predicted_n"`
		PredictedPerSecond float64 `json:"predicted_per_second"`
	} `json:"timings"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// text returns the delta carried by the chunk and whether one was present.
func (c *streamChunk) text() (string, bool) {
	if len(c.Choices) > 0 {
		ch := c.Choices[0]
		if ch.Delta.Content != "" {
			return ch.Delta.Content, true
		}
		if ch.Text != "" {
			return ch.Text, true
		}
		return "", false
	}
	if c.Content != nil {
		return *c.Content, *c.Content != ""
	}
	return "", false
}

// finish returns the finish reason when the chunk ends the stream.
func (c *streamChunk) finish() (string, bool) {
	if len(c.Choices) > 0 && c.Choices[0].FinishReason != nil {
		return *c.Choices[0].FinishReason, true
	}
	if c.Stop {
		switch {
		case c.StopType != "":
			return c.StopType, true
		case c.StopReason != "":
			return c.StopReason, true
		}
		return "stop", true
	}
	return "", false
}

// holdTrailingQuote prepends a quote held back from the previous fragment
// and holds back frag's own trailing '"' until the next fragment or the end
// of the stream shows whether it is paired.
func holdTrailingQuote(frag string, held bool) (string, bool) {
	if held {
		frag = `"` + frag
	}
	if strings.HasSuffix(frag, `"`) {
		return frag[:len(frag)-1], true
	}
	return frag, false
}

// releaseHeldQuote reports whether a quote held back at the end of a
// response closes one opened in text. An unpaired final quote is dropped.
func releaseHeldQuote(text string) bool {
	return strings.Count(text, `"`)%2 == 1
}

// stream posts req to /v1/chat/completions at base and decodes the SSE
// response. It is the only decode path; every variant ends up here. ctx
// comes from begin.
func (c *client) stream(ctx context.Context, base string, req Request, fn func(Fragment) error) (Summary, error) {
	start := time.Now()
	sum := Summary{TurnID: uuid.NewString(), Model: req.Model}
	if sum.Model == "" {
		sum.Model = c.model
	}
	outcome := "error"
	defer func() {
		metrics.StreamDuration.WithLabelValues(string(c.kind), outcome).Observe(time.Since(start).Seconds())
	}()

	msgs := make([]Message, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, req.Messages...)
	body, err := json.Marshal(chatRequest{
		Model:         sum.Model,
		Messages:      msgs,
		Stream:        true,
		Temperature:   req.Temperature,
		TopK:          req.TopK,
		TopP:          req.TopP,
		RepeatPenalty: req.RepeatPenalty,
		Stop:          req.Stop,
		MaxTokens:     req.MaxTokens,
	})
	if err != nil {
		return sum, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return sum, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "text/event-stream")
	c.authorize(hreq)

	finish := func() {
		sum.Duration = time.Since(start)
		if sum.Fragments == 0 {
			sum.ResponseStart = sum.Duration
		}
		if sum.Tokens == 0 {
			sum.Tokens = sum.Fragments
		}
		if sum.TokensPerSecond == 0 && sum.Tokens > 0 {
			if gen := sum.Duration - sum.ResponseStart; gen > 0 {
				sum.TokensPerSecond = float64(sum.Tokens) / gen.Seconds()
			} else if sum.Duration > 0 {
				sum.TokensPerSecond = float64(sum.Tokens) / sum.Duration.Seconds()
			}
		}
	}
	// fail classifies an error seen mid-stream.
	fail := func(err error) (Summary, error) {
		finish()
		if c.interrupted.Load() {
			outcome = "interrupted"
			return sum, ErrInterrupted
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			outcome = "canceled"
			return sum, ctxErr
		}
		return sum, err
	}

	resp, err := c.http.Do(hreq)
	if err != nil {
		return fail(&NetworkError{Op: "connect", Err: err})
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Error().Int("status", resp.StatusCode).Str("body", strings.TrimSpace(string(b))).Msg("completion request rejected")
		return fail(&NetworkError{Op: "status", Err: fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(b)))})
	}

	var text strings.Builder
	emit := func(frag string) error {
		if sum.Fragments == 0 {
			sum.ResponseStart = time.Since(start)
		}
		sum.Fragments++
		text.WriteString(frag)
		sum.Text = text.String()
		metrics.StreamFragments.WithLabelValues(string(c.kind)).Inc()
		return fn(Fragment{Text: frag})
	}
	heldQuote := false
	sr := newSSEReader(resp.Body)
	lastProgress := time.Now()
	for {
		if c.interrupted.Load() {
			return fail(ErrInterrupted)
		}
		ev, err := sr.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fail(&NetworkError{Op: "read", Err: err})
		}
		if c.interrupted.Load() {
			return fail(ErrInterrupted)
		}
		data := bytes.TrimSpace(ev.Data)
		if ev.Name == "error" {
			c.log.Error().Str("data", string(data)).Msg("server sent error event")
			return fail(&NetworkError{Op: "stream", Err: errors.New(serverMessage(data))})
		}
		if bytes.Equal(data, []byte("[DONE]")) {
			break
		}
		if len(data) == 0 {
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			derr := &ProtocolDecodeError{Data: string(data), Err: err}
			c.log.Debug().Err(derr).Msg("skipping undecodable event")
			if time.Since(lastProgress) > c.stall {
				return fail(&NetworkError{Op: "stall", Err: fmt.Errorf("no decodable event for %s: %w", c.stall, derr)})
			}
			continue
		}
		lastProgress = time.Now()
		if chunk.Error != nil {
			c.log.Error().Str("message", chunk.Error.Message).Msg("server reported error")
			return fail(&NetworkError{Op: "stream", Err: errors.New(chunk.Error.Message)})
		}
		if chunk.Model != "" {
			sum.Model = chunk.Model
		}

		if frag, ok := chunk.text(); ok {
			frag, heldQuote = holdTrailingQuote(frag, heldQuote)
			if frag != "" {
				if err := emit(frag); err != nil {
					finish()
					return sum, err
				}
			}
		}
		if t := chunk.Timings; t != nil {
			sum.Tokens = t.PredictedN
			sum.PromptTokens = t.PromptN
			sum.TokensPerSecond = t.PredictedPerSecond
		}
		if u := chunk.Usage; u != nil && sum.Tokens == 0 {
			sum.Tokens = u.CompletionTokens
			sum.PromptTokens = u.PromptTokens
		}
		if reason, ok := chunk.finish(); ok {
			sum.FinishReason = reason
			break
		}
	}

	if heldQuote && releaseHeldQuote(text.String()) {
		if err := emit(`"`); err != nil {
			finish()
			return sum, err
		}
	}
	finish()
	outcome = "ok"
	final := sum
	if err := fn(Fragment{Final: true, Summary: &final}); err != nil {
		return sum, err
	}
	return sum, nil
}

// serverMessage extracts a readable message from an error event payload.
func serverMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Error != nil && body.Error.Message != "" {
			return body.Error.Message
		}
		if body.Message != "" {
			return body.Message
		}
	}
	if len(data) == 0 {
		return "server error"
	}
	return string(data)
}
