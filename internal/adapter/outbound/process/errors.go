package process

import (
	"fmt"

	"github.com/Sentinel-Gate/duovisor/internal/domain/supervisor"
)

// SpawnError reports that the OS could not create a child process
// (missing executable, permission denied).
type SpawnError struct {
	Role    supervisor.Role
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s (%s): %v", e.Role, e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
