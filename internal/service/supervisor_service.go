package service

import (
	"context"
	"log/slog"
	"maps"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Sentinel-Gate/duovisor/internal/domain/supervisor"
	"github.com/Sentinel-Gate/duovisor/internal/port/inbound"
	"github.com/Sentinel-Gate/duovisor/internal/port/outbound"
)

// LifecycleObserver receives supervisor lifecycle notifications (metrics).
type LifecycleObserver interface {
	ObserveSpawn(role supervisor.Role)
	ObserveSpawnError(role supervisor.Role)
	ObserveExit(role supervisor.Role, status supervisor.ExitStatus)
	ObserveShutdown(trigger supervisor.EventKind)
	ObserveState(state supervisor.State)
}

type nopObserver struct{}

func (nopObserver) ObserveSpawn(supervisor.Role) {}
func (nopObserver) ObserveSpawnError(supervisor.Role) {}
func (nopObserver) ObserveExit(supervisor.Role, supervisor.ExitStatus) {}
func (nopObserver) ObserveShutdown(supervisor.EventKind) {}
func (nopObserver) ObserveState(supervisor.State) {}

// Supervisor runs the primary and secondary children and coordinates
// shutdown. All supervisor state is owned by the goroutine calling Run;
// child waiters only send events into a buffered channel.
type Supervisor struct {
	spawner  outbound.ProcessSpawner
	specs    map[supervisor.Role]supervisor.ProcessSpec
	logger   *slog.Logger
	recorder outbound.EventRecorder
	history  *historyWriter
	runState outbound.RunStateWriter
	observer LifecycleObserver
	tracer   trace.Tracer

	runID     string
	pid       int
	startedAt time.Time

	// Fixed in production; tests shorten them.
	secondaryDelay time.Duration
	gracePeriod    time.Duration
	flushTimeout   time.Duration

	machine        *supervisor.Machine
	procs          map[supervisor.Role]outbound.Process
	events         chan supervisor.Event
	secondaryTimer *time.Timer
	graceTimer     *time.Timer
	runSpan        trace.Span
	shutdownSpan   trace.Span
}

// SupervisorOption configures a Supervisor.
type SupervisorOption func(*Supervisor)

// WithRecorder records lifecycle events to a history store.
func WithRecorder(r outbound.EventRecorder) SupervisorOption {
	return func(s *Supervisor) { s.recorder = r }
}

// WithRunState publishes snapshots to a state file.
func WithRunState(w outbound.RunStateWriter) SupervisorOption {
	return func(s *Supervisor) { s.runState = w }
}

// WithObserver attaches a lifecycle observer.
func WithObserver(o LifecycleObserver) SupervisorOption {
	return func(s *Supervisor) { s.observer = o }
}

// WithTracer attaches an OpenTelemetry tracer.
func WithTracer(t trace.Tracer) SupervisorOption {
	return func(s *Supervisor) { s.tracer = t }
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) SupervisorOption {
	return func(s *Supervisor) { s.runID = id }
}

// NewSupervisor creates a supervisor for the given primary and secondary.
// The secondary always receives BOT_ENABLED=true on top of its overrides.
func NewSupervisor(spawner outbound.ProcessSpawner, primary, secondary supervisor.ProcessSpec, logger *slog.Logger, opts ...SupervisorOption) *Supervisor {
	primary.Role = supervisor.RolePrimary
	secondary.Role = supervisor.RoleSecondary
	env := make(map[string]string, len(secondary.Env)+1)
	maps.Copy(env, secondary.Env)
	env[supervisor.BotEnabledEnv] = "true"
	secondary.Env = env

	s := &Supervisor{
		spawner: spawner,
		specs: map[supervisor.Role]supervisor.ProcessSpec{
			supervisor.RolePrimary:   primary,
			supervisor.RoleSecondary: secondary,
		},
		logger:         logger,
		observer:       nopObserver{},
		tracer:         noop.NewTracerProvider().Tracer(""),
		runID:          uuid.New().String(),
		pid:            os.Getpid(),
		secondaryDelay: supervisor.SecondaryDelay,
		gracePeriod:    supervisor.GracePeriod,
		flushTimeout:   historyFlushTimeout,
		machine:        supervisor.NewMachine(),
		procs:          make(map[supervisor.Role]outbound.Process, len(supervisor.Roles)),
		// Each child sends at most one exit event, so waiters never block.
		events: make(chan supervisor.Event, 2*len(supervisor.Roles)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunID returns the identifier of this supervisor run.
func (s *Supervisor) RunID() string {
	return s.runID
}

// Run starts the children and blocks until the shutdown sequence completes.
// It returns the exit status the supervisor process should exit with.
// A signal on signals, or cancellation of ctx, triggers a clean shutdown.
// Run must be called once.
func (s *Supervisor) Run(ctx context.Context, signals <-chan os.Signal) int {
	s.startedAt = time.Now().UTC()
	ctx, s.runSpan = s.tracer.Start(ctx, "supervisor.run",
		trace.WithAttributes(attribute.String("run_id", s.runID)))
	defer s.runSpan.End()

	if s.recorder != nil {
		s.history = newHistoryWriter(s.recorder, s.logger)
		defer s.history.close(s.flushTimeout)
	}

	s.logger.Info("supervisor starting", "run_id", s.runID, "pid", s.pid)
	s.record("", "supervisor_started", "", nil)
	defer s.removeRunState()

	done := ctx.Done()
	if exit, code := s.dispatch(ctx, supervisor.Event{Kind: supervisor.EventStart}); exit {
		return code
	}
	for {
		var ev supervisor.Event
		select {
		case sig, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			ev = supervisor.Event{Kind: supervisor.EventSignalReceived, Signal: sig.String()}
		case <-done:
			done = nil
			ev = supervisor.Event{Kind: supervisor.EventSignalReceived, Signal: "context canceled"}
		case ev = <-s.events:
		case <-timerC(s.secondaryTimer):
			s.secondaryTimer = nil
			ev = supervisor.Event{Kind: supervisor.EventSecondaryDue}
		case <-timerC(s.graceTimer):
			s.graceTimer = nil
			ev = supervisor.Event{Kind: supervisor.EventGracePeriodElapsed}
		}
		if exit, code := s.dispatch(ctx, ev); exit {
			return code
		}
	}
}

// dispatch applies one event and performs the resulting actions.
func (s *Supervisor) dispatch(ctx context.Context, ev supervisor.Event) (exit bool, code int) {
	wasShuttingDown := s.machine.ShuttingDown()
	prevState := s.machine.State()

	s.logEvent(ev, wasShuttingDown)
	s.observeEvent(ev)

	actions := s.machine.Apply(ev)

	if !wasShuttingDown && s.machine.ShuttingDown() {
		s.logger.Info("shutting down",
			"trigger", s.machine.Trigger().String(),
			"exit_code", s.machine.ExitCode(),
		)
		s.observer.ObserveShutdown(s.machine.Trigger())
	}

	for _, a := range actions {
		switch a.Kind {
		case supervisor.ActionSpawnPrimary, supervisor.ActionSpawnSecondary:
			role := supervisor.RolePrimary
			if a.Kind == supervisor.ActionSpawnSecondary {
				role = supervisor.RoleSecondary
			}
			if exit, code := s.dispatch(ctx, s.spawn(role)); exit {
				return true, code
			}

		case supervisor.ActionScheduleSecondary:
			s.logger.Debug("secondary scheduled", "delay", s.secondaryDelay)
			s.secondaryTimer = time.NewTimer(s.secondaryDelay)

		case supervisor.ActionCancelSecondary:
			if s.secondaryTimer != nil {
				s.secondaryTimer.Stop()
				s.secondaryTimer = nil
				s.logger.Debug("pending secondary start canceled")
			}

		case supervisor.ActionTerminate:
			s.terminate(a.Role)

		case supervisor.ActionStartGrace:
			_, s.shutdownSpan = s.tracer.Start(ctx, "supervisor.shutdown",
				trace.WithAttributes(attribute.Int("exit_code", s.machine.ExitCode())))
			s.graceTimer = time.NewTimer(s.gracePeriod)

		case supervisor.ActionExit:
			if s.shutdownSpan != nil {
				s.shutdownSpan.End()
			}
			s.observer.ObserveState(s.machine.State())
			s.logger.Info("supervisor exiting", "exit_code", a.Code)
			c := a.Code
			s.record("", "supervisor_exited", "", &c)
			return true, a.Code
		}
	}

	if s.machine.State() != prevState {
		s.observer.ObserveState(s.machine.State())
		s.saveRunState()
	} else if isExit(ev.Kind) {
		s.saveRunState()
	}
	return false, 0
}

// spawn starts the child for role and returns the resulting event.
func (s *Supervisor) spawn(role supervisor.Role) supervisor.Event {
	spec := s.specs[role]
	s.logger.Info("starting child",
		"role", role,
		"name", spec.Name,
		"command", spec.Command,
		"args", spec.Args,
	)

	p, err := s.spawner.Spawn(spec)
	if err != nil {
		return supervisor.Event{Kind: spawnErrorKind(role), Err: err}
	}

	s.procs[role] = p
	go s.wait(role, p)
	return supervisor.Event{Kind: spawnedKind(role)}
}

// wait blocks on the child's exit and reports it to the run loop.
func (s *Supervisor) wait(role supervisor.Role, p outbound.Process) {
	status, err := p.Wait()
	s.events <- supervisor.Event{Kind: exitedKind(role), Status: status, Err: err}
}

// terminate sends a graceful termination request to a running child.
func (s *Supervisor) terminate(role supervisor.Role) {
	p, ok := s.procs[role]
	if !ok {
		return
	}
	s.logger.Info("sending termination request", "role", role, "name", s.specs[role].Name, "pid", p.Pid())
	if err := p.Terminate(); err != nil {
		s.logger.Warn("termination request failed", "role", role, "pid", p.Pid(), "error", err)
	}
	s.record(role, "terminate_requested", "", nil)
}

func (s *Supervisor) logEvent(ev supervisor.Event, shuttingDown bool) {
	role := ev.Role()
	switch ev.Kind {
	case supervisor.EventPrimarySpawned, supervisor.EventSecondarySpawned:
		if p, ok := s.procs[role]; ok {
			s.logger.Info("child started", "role", role, "name", s.specs[role].Name, "pid", p.Pid())
		}
	case supervisor.EventPrimarySpawnError, supervisor.EventSecondarySpawnError:
		s.logger.Error("failed to start child", "role", role, "name", s.specs[role].Name, "error", ev.Err)
	case supervisor.EventPrimaryExited, supervisor.EventSecondaryExited:
		attrs := []any{"role", role, "name", s.specs[role].Name, "code", ev.Status.Code}
		if ev.Status.Signal != "" {
			attrs = append(attrs, "signal", ev.Status.Signal)
		}
		if ev.Err != nil {
			attrs = append(attrs, "error", ev.Err)
		}
		if shuttingDown {
			s.logger.Info("child exited", attrs...)
		} else {
			s.logger.Error("child exited unexpectedly", attrs...)
		}
	case supervisor.EventSignalReceived:
		s.logger.Info("received signal", "signal", ev.Signal)
	case supervisor.EventSecondaryDue:
		s.logger.Debug("secondary start delay elapsed")
	case supervisor.EventGracePeriodElapsed:
		s.logger.Debug("grace period elapsed", "grace_period", s.gracePeriod)
	}
}

// observeEvent updates metrics, the run span and the history store.
func (s *Supervisor) observeEvent(ev supervisor.Event) {
	role := ev.Role()
	var (
		detail   string
		exitCode *int
	)
	switch ev.Kind {
	case supervisor.EventStart, supervisor.EventSecondaryDue:
		return
	case supervisor.EventPrimarySpawned, supervisor.EventSecondarySpawned:
		s.observer.ObserveSpawn(role)
	case supervisor.EventPrimarySpawnError, supervisor.EventSecondarySpawnError:
		s.observer.ObserveSpawnError(role)
		detail = ev.Err.Error()
	case supervisor.EventPrimaryExited, supervisor.EventSecondaryExited:
		delete(s.procs, role)
		s.observer.ObserveExit(role, ev.Status)
		detail = ev.Status.String()
		code := ev.Status.Code
		exitCode = &code
	case supervisor.EventSignalReceived:
		detail = ev.Signal
	}

	s.runSpan.AddEvent(ev.Kind.String(), trace.WithAttributes(
		attribute.String("role", string(role)),
		attribute.String("detail", detail),
	))
	s.record(role, ev.Kind.String(), detail, exitCode)
}

// record queues a history entry for the background writer.
func (s *Supervisor) record(role supervisor.Role, kind, detail string, exitCode *int) {
	if s.history == nil {
		return
	}
	s.history.enqueue(supervisor.HistoryEntry{
		RunID:    s.runID,
		At:       time.Now().UTC(),
		Role:     role,
		Kind:     kind,
		Detail:   detail,
		ExitCode: exitCode,
	})
}

// Snapshot returns the current supervisor view.
func (s *Supervisor) Snapshot() *supervisor.Snapshot {
	snap := &supervisor.Snapshot{
		RunID:     s.runID,
		PID:       s.pid,
		State:     s.machine.State().String(),
		StartedAt: s.startedAt,
	}
	for _, role := range supervisor.Roles {
		child := supervisor.ChildSnapshot{Role: role, Name: s.specs[role].Name}
		if p, ok := s.procs[role]; ok {
			child.PID = p.Pid()
			child.Running = s.machine.Running(role)
		}
		snap.Children = append(snap.Children, child)
	}
	return snap
}

func (s *Supervisor) saveRunState() {
	if s.runState == nil {
		return
	}
	if err := s.runState.Save(s.Snapshot()); err != nil {
		s.logger.Warn("failed to write state file", "error", err)
	}
}

func (s *Supervisor) removeRunState() {
	if s.runState == nil {
		return
	}
	if err := s.runState.Remove(); err != nil {
		s.logger.Warn("failed to remove state file", "error", err)
	}
}

func isExit(k supervisor.EventKind) bool {
	return k == supervisor.EventPrimaryExited || k == supervisor.EventSecondaryExited
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func spawnedKind(r supervisor.Role) supervisor.EventKind {
	if r == supervisor.RolePrimary {
		return supervisor.EventPrimarySpawned
	}
	return supervisor.EventSecondarySpawned
}

func spawnErrorKind(r supervisor.Role) supervisor.EventKind {
	if r == supervisor.RolePrimary {
		return supervisor.EventPrimarySpawnError
	}
	return supervisor.EventSecondarySpawnError
}

func exitedKind(r supervisor.Role) supervisor.EventKind {
	if r == supervisor.RolePrimary {
		return supervisor.EventPrimaryExited
	}
	return supervisor.EventSecondaryExited
}

// Compile-time check that Supervisor implements the inbound port.
var _ inbound.Supervisor = (*Supervisor)(nil)
