//go:build !windows

package process

import (
	"os"
	"syscall"
)

// sendGracefulStop sends SIGTERM for graceful shutdown on Unix.
func sendGracefulStop(proc *os.Process) error {
	return proc.Signal(syscall.SIGTERM)
}

// exitSignal returns the name of the signal that killed the process, if any.
func exitSignal(ps *os.ProcessState) string {
	ws, ok := ps.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return ""
	}
	return ws.Signal().String()
}
