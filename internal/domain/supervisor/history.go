package supervisor

import "time"

// HistoryEntry is one recorded lifecycle event of a supervisor run.
type HistoryEntry struct {
	RunID    string
	At       time.Time
	Role     Role
	Kind     string
	Detail   string
	ExitCode *int
}

// ChildSnapshot is the persisted view of one child.
type ChildSnapshot struct {
	Role    Role   `json:"role"`
	Name    string `json:"name"`
	PID     int    `json:"pid"`
	Running bool   `json:"running"`
}

// Snapshot is the persisted view of a running supervisor.
type Snapshot struct {
	RunID     string          `json:"run_id"`
	PID       int             `json:"pid"`
	State     string          `json:"state"`
	Children  []ChildSnapshot `json:"children"`
	StartedAt time.Time       `json:"started_at"`
}
