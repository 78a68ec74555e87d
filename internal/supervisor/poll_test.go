package supervisor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestPollSkipsWhileStarting(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	s := New(Config{HealthInterval: 10 * time.Millisecond})
	s.prober.UpdateTarget(srv.URL + "/health")
	s.starting.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Poll(ctx, 10*time.Millisecond)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	time.Sleep(100 * time.Millisecond)
	if n := hits.Load(); n != 0 {
		t.Fatalf("polled %d times during Start", n)
	}
	s.starting.Store(false)
	if !waitFor(t, 2*time.Second, func() bool { return hits.Load() > 0 }) {
		t.Fatalf("no probe after Start finished")
	}
	if s.Score() <= 0 {
		t.Fatalf("score not refreshed: %v", s.Score())
	}
}
