// Command fake_llama_server imitates the parts of llama.cpp's server that
// inferd talks to. Behaviour is tuned through environment variables:
//
//	FAKE_READY_DELAY_MS     /health answers 503 until this much time passed
//	FAKE_EXIT_CODE          exit immediately with this code
//	FAKE_FRAGMENT_DELAY_MS  pause between streamed fragments
//	FAKE_ARGS_FILE          write the command line here, one arg per line
//	FAKE_IGNORE_SIGTERM     keep running on SIGTERM
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"
)

var fragments = []string{"Hel", "lo ", "world"}

func envMillis(name string) time.Duration {
	n, _ := strconv.Atoi(os.Getenv(name))
	return time.Duration(n) * time.Millisecond
}

func main() {
	var model, host, port string
	var ctxSize, threads, ngl int
	flag.StringVar(&model, "m", "", "model path")
	flag.IntVar(&ctxSize, "c", 0, "context size")
	flag.StringVar(&host, "host", "127.0.0.1", "host")
	flag.StringVar(&port, "port", "0", "port")
	flag.IntVar(&threads, "t", 0, "threads")
	flag.IntVar(&ngl, "ngl", 0, "gpu layers")
	flag.Parse()

	if f := os.Getenv("FAKE_ARGS_FILE"); f != "" {
		_ = os.WriteFile(f, []byte(strings.Join(os.Args[1:], "\n")), 0o644)
	}
	if code := os.Getenv("FAKE_EXIT_CODE"); code != "" {
		n, _ := strconv.Atoi(code)
		os.Exit(n)
	}

	readyAt := time.Now().Add(envMillis("FAKE_READY_DELAY_MS"))
	fragDelay := envMillis("FAKE_FRAGMENT_DELAY_MS")

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if time.Now().Before(readyAt) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"loading model"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"data":[{"id":%q,"object":"model"}]}`, model)
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			MaxTokens int `json:"max_tokens"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		fl, _ := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		n := len(fragments)
		if req.MaxTokens > 0 && req.MaxTokens < n {
			n = req.MaxTokens
		}
		for _, f := range fragments[:n] {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(fragDelay):
			}
			b, _ := json.Marshal(map[string]any{
				"choices": []any{map[string]any{"index": 0, "delta": map[string]string{"content": f}, "finish_reason": nil}},
			})
			_, _ = fmt.Fprintf(w, "data: %s\n\n", b)
			if fl != nil {
				fl.Flush()
			}
		}
		b, _ := json.Marshal(map[string]any{
			"model":   model,
			"choices": []any{map[string]any{"index": 0, "delta": map[string]string{}, "finish_reason": "stop"}},
			"timings": map[string]any{"predicted_n": n, "predicted_per_second": 42.0, "prompt_n": 7},
		})
		_, _ = fmt.Fprintf(w, "data: %s\n\ndata: [DONE]\n\n", b)
		if fl != nil {
			fl.Flush()
		}
	})

	srv := &http.Server{Addr: host + ":" + port, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	for range sigCh {
		if os.Getenv("FAKE_IGNORE_SIGTERM") == "" {
			break
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
