// Command inferd-watchdog terminates an inference server once its parent
// stops writing heartbeat bytes to this process's standard input.
//
// Usage:
//
//	inferd-watchdog <pid>
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"inferd/internal/logging"
	"inferd/internal/watchdog"
)

func main() {
	log := logging.New("error", "console", os.Stderr)
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: inferd-watchdog <pid>")
		os.Exit(2)
	}
	pid, err := strconv.Atoi(os.Args[1])
	if err != nil || pid <= 0 {
		log.Error().Str("arg", os.Args[1]).Msg("invalid pid")
		os.Exit(2)
	}
	err = watchdog.Run(context.Background(), os.Stdin, watchdog.CheckInterval, func() error {
		return watchdog.Terminate(pid)
	})
	if err != nil {
		log.Error().Int("pid", pid).Err(err).Msg("terminate failed")
		os.Exit(1)
	}
}
