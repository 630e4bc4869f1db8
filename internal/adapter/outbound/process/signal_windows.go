//go:build windows

package process

import "os"

// sendGracefulStop terminates the process on Windows.
// Windows does not support SIGTERM; Kill() calls TerminateProcess.
func sendGracefulStop(proc *os.Process) error {
	return proc.Kill()
}

// exitSignal always returns "" on Windows, which has no exit signals.
func exitSignal(ps *os.ProcessState) string {
	return ""
}
