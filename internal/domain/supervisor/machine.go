package supervisor

import "fmt"

// EventKind enumerates everything that can happen to a supervisor.
type EventKind int

const (
	EventStart EventKind = iota
	EventPrimarySpawned
	EventPrimarySpawnError
	EventPrimaryExited
	EventSecondaryDue
	EventSecondarySpawned
	EventSecondarySpawnError
	EventSecondaryExited
	EventSignalReceived
	EventGracePeriodElapsed
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventPrimarySpawned:
		return "primary_spawned"
	case EventPrimarySpawnError:
		return "primary_spawn_error"
	case EventPrimaryExited:
		return "primary_exited"
	case EventSecondaryDue:
		return "secondary_due"
	case EventSecondarySpawned:
		return "secondary_spawned"
	case EventSecondarySpawnError:
		return "secondary_spawn_error"
	case EventSecondaryExited:
		return "secondary_exited"
	case EventSignalReceived:
		return "signal_received"
	case EventGracePeriodElapsed:
		return "grace_period_elapsed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a single input to the state machine.
type Event struct {
	Kind EventKind
	// Err is set for spawn errors.
	Err error
	// Status is set for exit events.
	Status ExitStatus
	// Signal names the OS signal for EventSignalReceived.
	Signal string
}

// Role returns the child the event concerns, or "" for supervisor-wide events.
func (e Event) Role() Role {
	switch e.Kind {
	case EventPrimarySpawned, EventPrimarySpawnError, EventPrimaryExited:
		return RolePrimary
	case EventSecondaryDue, EventSecondarySpawned, EventSecondarySpawnError, EventSecondaryExited:
		return RoleSecondary
	default:
		return ""
	}
}

// ActionKind enumerates the side effects the machine asks for.
type ActionKind int

const (
	ActionSpawnPrimary ActionKind = iota
	ActionScheduleSecondary
	ActionSpawnSecondary
	ActionCancelSecondary
	ActionTerminate
	ActionStartGrace
	ActionExit
)

func (k ActionKind) String() string {
	switch k {
	case ActionSpawnPrimary:
		return "spawn_primary"
	case ActionScheduleSecondary:
		return "schedule_secondary"
	case ActionSpawnSecondary:
		return "spawn_secondary"
	case ActionCancelSecondary:
		return "cancel_secondary"
	case ActionTerminate:
		return "terminate"
	case ActionStartGrace:
		return "start_grace"
	case ActionExit:
		return "exit"
	default:
		return fmt.Sprintf("action(%d)", int(k))
	}
}

// Action is a side effect requested by the machine.
type Action struct {
	Kind ActionKind
	// Role is set for ActionTerminate.
	Role Role
	// Code is set for ActionExit.
	Code int
}

// Machine holds the supervisor state. It is not safe for concurrent use;
// a single goroutine must own it.
type Machine struct {
	state        State
	shuttingDown bool
	exitCode     int
	running      map[Role]bool
	trigger      EventKind
}

// NewMachine returns a machine in StateStarting.
func NewMachine() *Machine {
	return &Machine{
		state:   StateStarting,
		running: make(map[Role]bool, len(Roles)),
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// ShuttingDown reports whether the shutdown sequence has begun.
func (m *Machine) ShuttingDown() bool { return m.shuttingDown }

// ExitCode returns the code chosen when shutdown began.
func (m *Machine) ExitCode() int { return m.exitCode }

// Running reports whether the given child is believed to be running.
func (m *Machine) Running(r Role) bool { return m.running[r] }

// Trigger returns the event that started the shutdown sequence.
// Only meaningful once ShuttingDown is true.
func (m *Machine) Trigger() EventKind { return m.trigger }

// Apply feeds one event into the machine and returns the actions to perform,
// in order. Events that are irrelevant in the current state yield no actions.
func (m *Machine) Apply(ev Event) []Action {
	if m.state == StateTerminated {
		return nil
	}

	switch ev.Kind {
	case EventStart:
		if m.state != StateStarting || m.shuttingDown {
			return nil
		}
		return []Action{{Kind: ActionSpawnPrimary}}

	case EventPrimarySpawned:
		m.running[RolePrimary] = true
		if m.shuttingDown {
			return nil
		}
		m.state = StatePrimaryRunning
		return []Action{{Kind: ActionScheduleSecondary}}

	case EventSecondaryDue:
		if m.shuttingDown || m.running[RoleSecondary] {
			return nil
		}
		return []Action{{Kind: ActionSpawnSecondary}}

	case EventSecondarySpawned:
		m.running[RoleSecondary] = true
		if m.shuttingDown {
			// Cannot happen from a single owner goroutine, but make sure a
			// late spawn is still stopped rather than orphaned.
			return []Action{{Kind: ActionTerminate, Role: RoleSecondary}}
		}
		m.state = StateBothRunning
		return nil

	case EventPrimarySpawnError, EventSecondarySpawnError:
		return m.beginShutdown(ev.Kind, 1)

	case EventPrimaryExited, EventSecondaryExited:
		m.running[ev.Role()] = false
		return m.beginShutdown(ev.Kind, ev.Status.ShutdownCode())

	case EventSignalReceived:
		return m.beginShutdown(ev.Kind, 0)

	case EventGracePeriodElapsed:
		if !m.shuttingDown {
			return nil
		}
		m.state = StateTerminated
		return []Action{{Kind: ActionExit, Code: m.exitCode}}
	}

	return nil
}

// beginShutdown starts the shutdown sequence at most once.
func (m *Machine) beginShutdown(trigger EventKind, code int) []Action {
	if m.shuttingDown {
		return nil
	}
	m.shuttingDown = true
	m.state = StateShuttingDown
	m.exitCode = code
	m.trigger = trigger

	actions := []Action{{Kind: ActionCancelSecondary}}
	for _, r := range Roles {
		if m.running[r] {
			actions = append(actions, Action{Kind: ActionTerminate, Role: r})
		}
	}
	return append(actions, Action{Kind: ActionStartGrace})
}
