// Package supervisor contains the domain model for supervising the primary
// (application server) and secondary (bot) child processes.
//
// The lifecycle is expressed as a pure state machine: events go in, actions
// come out. The service layer owns the OS processes, timers and signals and
// translates them into events, so the transition rules are testable without
// spawning anything.
package supervisor

import (
	"fmt"
	"time"
)

const (
	// SecondaryDelay is the fixed delay between the primary spawn returning
	// and the secondary being spawned.
	SecondaryDelay = 2000 * time.Millisecond

	// GracePeriod is how long the supervisor waits after sending graceful
	// termination requests before it exits.
	GracePeriod = 1000 * time.Millisecond

	// BotEnabledEnv is injected into the secondary's environment.
	BotEnabledEnv = "BOT_ENABLED"
)

// Role identifies one of the two supervised children.
type Role string

const (
	// RolePrimary is the application server.
	RolePrimary Role = "primary"
	// RoleSecondary is the companion bot.
	RoleSecondary Role = "secondary"
)

// Roles lists both roles in termination order.
var Roles = []Role{RolePrimary, RoleSecondary}

// State is the supervisor lifecycle state.
type State int

const (
	StateStarting State = iota
	StatePrimaryRunning
	StateBothRunning
	StateShuttingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StatePrimaryRunning:
		return "primary_running"
	case StateBothRunning:
		return "both_running"
	case StateShuttingDown:
		return "shutting_down"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ExitStatus describes how a child process ended.
type ExitStatus struct {
	// Code is the process exit code, or -1 when the process did not exit
	// normally (e.g. it was killed by a signal).
	Code int
	// Signal is the name of the terminating signal, empty if none.
	Signal string
}

// ShutdownCode maps an unexpected exit to the supervisor's exit status.
// A defined non-zero code is propagated. Anything else, including a clean
// exit, becomes 1 because children are expected to run until stopped.
func (e ExitStatus) ShutdownCode() int {
	if e.Code > 0 {
		return e.Code
	}
	return 1
}

func (e ExitStatus) String() string {
	if e.Signal != "" {
		return "signal " + e.Signal
	}
	return fmt.Sprintf("code %d", e.Code)
}

// ProcessSpec describes how to launch a supervised child.
type ProcessSpec struct {
	Role    Role
	Name    string
	Command string
	Args    []string
	// Env holds overrides merged over the inherited environment.
	Env map[string]string
}
