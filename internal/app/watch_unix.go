//go:build !windows

package app

import (
	"os"
	"syscall"
)

var shutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// processAlive probes pid with signal 0.
func processAlive(pid int) bool {
	return pid > 0 && syscall.Kill(pid, 0) == nil
}

// terminate asks the daemon to shut down; it exits after its current poll.
func terminate(pid int) error {
	return syscall.Kill(pid, syscall.SIGTERM)
}
