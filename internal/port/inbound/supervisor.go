// Package inbound defines the inbound port the CLI drives.
package inbound

import (
	"context"
	"os"

	"github.com/Sentinel-Gate/duovisor/internal/domain/supervisor"
)

// Supervisor runs the two children in the foreground.
type Supervisor interface {
	// Run blocks until shutdown completes and returns the process exit status.
	Run(ctx context.Context, signals <-chan os.Signal) int

	// RunID identifies this run in history and the state file.
	RunID() string

	// Snapshot returns the current view of the supervisor. Only safe to call
	// from the goroutine running Run, or after Run returns.
	Snapshot() *supervisor.Snapshot
}
