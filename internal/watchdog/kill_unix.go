//go:build !windows

package watchdog

import "syscall"

// Terminate asks pid to exit with SIGTERM.
func Terminate(pid int) error {
	return syscall.Kill(pid, syscall.SIGTERM)
}
