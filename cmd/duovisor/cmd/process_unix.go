//go:build !windows

package cmd

import (
	"os"
	"syscall"
)

// gracefulSignals returns the signals that start a clean shutdown:
// SIGINT (Ctrl+C) and SIGTERM (kill, service managers).
func gracefulSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}

// processIsAlive probes the process with signal 0.
func processIsAlive(proc *os.Process) bool {
	return proc.Signal(syscall.Signal(0)) == nil
}

// sendGracefulStop asks a supervisor to shut down its children.
func sendGracefulStop(proc *os.Process) error {
	return proc.Signal(syscall.SIGTERM)
}
