//go:build windows

package watchdog

import "os"

// Terminate kills pid. Windows has no SIGTERM equivalent for console-less
// processes, so this is a hard kill.
func Terminate(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
