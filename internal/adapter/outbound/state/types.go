// Package state provides file-based persistence for the running supervisor's
// state.
//
// The state file records the supervisor PID, the lifecycle state and the
// child PIDs so that "duovisor stop" and "duovisor status" can find a running
// supervisor from another process. It is written atomically under a file
// lock and removed when the supervisor exits.
package state

import (
	"time"

	"github.com/Sentinel-Gate/duovisor/internal/domain/supervisor"
)

// schemaVersion is the current state file schema version.
const schemaVersion = "1"

// RunState is the top-level structure persisted in the state file.
type RunState struct {
	// Version is the schema version for forward compatibility. Currently "1".
	Version string `json:"version"`

	supervisor.Snapshot

	// UpdatedAt is when the file was last written.
	UpdatedAt time.Time `json:"updated_at"`
}

// Child returns the entry for the given role, or nil.
func (s *RunState) Child(role supervisor.Role) *supervisor.ChildSnapshot {
	for i := range s.Children {
		if s.Children[i].Role == role {
			return &s.Children[i]
		}
	}
	return nil
}
