// Package metrics holds the runtime's Prometheus collectors. HTTP-level
// request metrics live with the router in internal/httpapi.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "inferd"

var (
	HealthScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "health_score",
		Help:      "Current health score in [0,1] per probed endpoint",
	}, []string{"target"})

	ServerStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "server",
		Name:      "starts_total",
		Help:      "Local inference server start attempts by result",
	}, []string{"result"})

	ServerRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "server",
		Name:      "running",
		Help:      "1 while the supervised inference server is healthy",
	})

	StreamFragments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "fragments_total",
		Help:      "Completion fragments yielded to callers",
	}, []string{"backend"})

	StreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "duration_seconds",
		Help:      "Wall-clock duration of completion streams",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"backend", "outcome"})

	AgentState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "state",
		Help:      "1 for the agent's current state, 0 otherwise",
	}, []string{"state"})
)
