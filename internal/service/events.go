package service

import (
	"github.com/rs/zerolog"

	"inferd/internal/supervisor"
)

// eventLogger publishes supervisor lifecycle events to the log.
type eventLogger struct {
	log zerolog.Logger
}

func (l eventLogger) Publish(e supervisor.Event) {
	ev := l.log.Info()
	if e.Name == "server_exit" {
		ev = l.log.Warn()
	}
	ev.Str("event", e.Name).Str("model", e.Model).Fields(e.Fields).Msg("supervisor")
}
