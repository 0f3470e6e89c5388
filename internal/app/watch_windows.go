//go:build windows

package app

import (
	"os"
)

var shutdownSignals = []os.Signal{os.Interrupt}

// processAlive reports whether pid can be opened and signalled. FindProcess
// alone succeeds for any pid on Windows.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(os.Signal(nil)) == nil
}

// terminate kills the daemon. Windows has no SIGTERM to deliver.
func terminate(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}
