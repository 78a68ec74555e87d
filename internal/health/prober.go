// Package health scores the responsiveness of an inference server from a
// sliding window of probe outcomes.
package health

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/metrics"
)

const (
	// DefaultWindow is the number of samples kept per target.
	DefaultWindow = 15

	// LatencyThreshold is the response time above which the latency share of
	// a sample starts to decay; at twice the threshold it reaches zero.
	LatencyThreshold = 300 * time.Millisecond

	connectTimeout  = 3 * time.Second
	transferTimeout = 1 * time.Second

	validWeight   = 0.75
	latencyWeight = 0.25
)

// Config tunes a Prober. Zero values select the defaults.
type Config struct {
	Window int
	Client *http.Client
	Logger zerolog.Logger
}

// Prober probes one health URL at a time and keeps a ring buffer of scores.
// It is safe for concurrent use; a sample whose probe started before the
// last UpdateTarget is dropped.
type Prober struct {
	client *http.Client
	log    zerolog.Logger

	mu      sync.Mutex
	target  string
	gen     uint64
	samples []float64
	cursor  int
	filled  int
}

// NewProber returns a Prober with no target; its score is 0 until a target
// is set and probed.
func NewProber(cfg Config) *Prober {
	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}
	cli := cfg.Client
	if cli == nil {
		tr := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: connectTimeout,
			}).DialContext,
			ResponseHeaderTimeout: transferTimeout,
			DisableKeepAlives:     true,
		}
		cli = &http.Client{Transport: tr, Timeout: 0}
	}
	return &Prober{client: cli, log: cfg.Logger, samples: make([]float64, window)}
}

// UpdateTarget points the prober at a new health URL and discards every
// sample taken against the previous one.
func (p *Prober) UpdateTarget(url string) {
	p.mu.Lock()
	old := p.target
	p.target = url
	p.gen++
	for i := range p.samples {
		p.samples[i] = 0
	}
	p.cursor = 0
	p.filled = 0
	p.mu.Unlock()
	if old != "" && old != url {
		metrics.HealthScore.DeleteLabelValues(old)
	}
}

// Target returns the URL currently probed.
func (p *Prober) Target() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

// Check probes the target once and records the resulting sample, which it
// also returns. A prober without a target records nothing.
func (p *Prober) Check(ctx context.Context) float64 {
	p.mu.Lock()
	target, gen := p.target, p.gen
	p.mu.Unlock()
	if target == "" {
		return 0
	}

	start := time.Now()
	valid, err := p.probe(ctx, target)
	latency := time.Since(start)
	sample := 0.0
	if err != nil {
		p.log.Debug().Str("target", target).Err(err).Msg("health probe failed")
	} else {
		sample = SampleScore(valid, latency)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// A retargeted prober has already dropped this target's gauge.
	if p.gen == gen {
		p.recordLocked(sample)
		metrics.HealthScore.WithLabelValues(target).Set(p.scoreLocked())
	}
	return sample
}

func (p *Prober) probe(ctx context.Context, target string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout+transferTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err != nil {
		return false, nil
	}
	return resp.StatusCode == http.StatusOK && body.Status == "ok", nil
}

// Record appends a sample to the ring buffer, clamped to [0,1].
func (p *Prober) Record(sample float64) {
	p.mu.Lock()
	p.recordLocked(sample)
	p.mu.Unlock()
}

func (p *Prober) recordLocked(sample float64) {
	p.samples[p.cursor] = clamp(sample, 0, 1)
	p.cursor = (p.cursor + 1) % len(p.samples)
	if p.filled < len(p.samples) {
		p.filled++
	}
}

// Score is the mean of the populated slots, or 0 when nothing has been
// sampled (including when no target is set).
func (p *Prober) Score() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scoreLocked()
}

func (p *Prober) scoreLocked() float64 {
	if p.target == "" || p.filled == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < p.filled; i++ {
		sum += p.samples[i]
	}
	return sum / float64(p.filled)
}

// Run probes every interval until ctx is done.
func (p *Prober) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		p.Check(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// SampleScore converts one probe outcome into a score in [0,1].
func SampleScore(valid bool, latency time.Duration) float64 {
	v := 0.0
	if valid {
		v = 1
	}
	th := LatencyThreshold.Seconds()
	l := clamp(1-(latency.Seconds()-th)/th, 0, 1)
	return validWeight*v + latencyWeight*l
}

// IsValidSample reports whether a sample came from a probe that returned a
// healthy payload, regardless of its latency.
func IsValidSample(s float64) bool { return s >= validWeight }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
