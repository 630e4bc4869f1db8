// Package outbound defines the outbound port interfaces the supervisor
// uses to reach the operating system and its persistence backends.
package outbound

import (
	"context"

	"github.com/Sentinel-Gate/duovisor/internal/domain/supervisor"
)

// Process is a running child owned by the supervisor.
type Process interface {
	// Pid returns the OS process ID.
	Pid() int

	// Terminate sends a graceful termination request.
	Terminate() error

	// Wait blocks until the process exits. It must be called exactly once.
	// A non-nil error means the exit status could not be determined.
	Wait() (supervisor.ExitStatus, error)
}

// ProcessSpawner starts child processes.
// Adapters implement this on top of os/exec; tests inject fakes.
type ProcessSpawner interface {
	// Spawn starts the process described by spec. The returned error is
	// a spawn-level failure (executable not found, permission denied).
	Spawn(spec supervisor.ProcessSpec) (Process, error)
}

// EventRecorder persists supervisor lifecycle events.
type EventRecorder interface {
	Record(ctx context.Context, entry supervisor.HistoryEntry) error
}

// RunStateWriter publishes the current supervisor snapshot for other
// processes (e.g. "duovisor stop").
type RunStateWriter interface {
	Save(snap *supervisor.Snapshot) error
	Remove() error
}
