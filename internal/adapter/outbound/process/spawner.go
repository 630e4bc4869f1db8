// Package process provides the os/exec adapter that spawns supervised children.
package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/Sentinel-Gate/duovisor/internal/domain/supervisor"
	"github.com/Sentinel-Gate/duovisor/internal/port/outbound"
)

// ExecSpawner starts children with os/exec. Children inherit the
// supervisor's standard streams directly (no pipes) and a copy of its
// environment with the ProcessSpec env overrides applied.
type ExecSpawner struct {
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	environ func() []string
}

// Option configures an ExecSpawner.
type Option func(*ExecSpawner)

// WithStdio replaces the inherited standard streams.
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(s *ExecSpawner) {
		s.stdin = stdin
		s.stdout = stdout
		s.stderr = stderr
	}
}

// WithEnviron replaces os.Environ as the source of the inherited environment.
func WithEnviron(fn func() []string) Option {
	return func(s *ExecSpawner) {
		s.environ = fn
	}
}

// NewExecSpawner creates a spawner wired to the current process's stdio.
func NewExecSpawner(opts ...Option) *ExecSpawner {
	s := &ExecSpawner{
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		environ: os.Environ,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Spawn starts the child described by spec.
func (s *ExecSpawner) Spawn(spec supervisor.ProcessSpec) (outbound.Process, error) {
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Env = MergeEnv(s.environ(), spec.Env)
	cmd.Stdin = s.stdin
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Role: spec.Role, Command: spec.Command, Err: err}
	}
	return &execProcess{cmd: cmd}, nil
}

// execProcess wraps a started exec.Cmd.
type execProcess struct {
	cmd *exec.Cmd

	waitOnce sync.Once
	status   supervisor.ExitStatus
	waitErr  error
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

// Terminate sends SIGTERM on Unix and kills the process on Windows.
// A process that already exited is not an error.
func (p *execProcess) Terminate() error {
	if err := sendGracefulStop(p.cmd.Process); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return fmt.Errorf("terminate pid %d: %w", p.cmd.Process.Pid, err)
	}
	return nil
}

func (p *execProcess) Wait() (supervisor.ExitStatus, error) {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()
		if p.cmd.ProcessState == nil {
			p.status = supervisor.ExitStatus{Code: -1}
			p.waitErr = fmt.Errorf("wait pid %d: %w", p.cmd.Process.Pid, err)
			return
		}
		p.status = exitStatusOf(p.cmd.ProcessState)
	})
	return p.status, p.waitErr
}

// exitStatusOf converts an os.ProcessState into the domain exit status.
func exitStatusOf(ps *os.ProcessState) supervisor.ExitStatus {
	return supervisor.ExitStatus{
		Code:   ps.ExitCode(),
		Signal: exitSignal(ps),
	}
}

// Compile-time check that ExecSpawner implements ProcessSpawner.
var _ outbound.ProcessSpawner = (*ExecSpawner)(nil)
