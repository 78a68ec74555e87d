package agent

import (
	"fmt"

	"inferd/internal/metrics"
)

// State is the agent's lifecycle position.
type State int

const (
	// Cold: no warm server (or the last attempt to warm one failed).
	Cold State = iota
	// ColdProcessing: a turn is running against a server that is not yet warm.
	ColdProcessing
	// Ready: warm and idle.
	Ready
	// Processing: a turn is running against a warm server.
	Processing
)

var stateNames = [...]string{"cold", "coldProcessing", "ready", "processing"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Busy reports whether a turn is in flight.
func (s State) Busy() bool { return s == ColdProcessing || s == Processing }

func publishState(s State) {
	for i, name := range stateNames {
		v := 0.0
		if State(i) == s {
			v = 1
		}
		metrics.AgentState.WithLabelValues(name).Set(v)
	}
}
