package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/Sentinel-Gate/duovisor/internal/domain/supervisor"
	"github.com/Sentinel-Gate/duovisor/internal/port/outbound"
)

// ErrNoState is returned by Load when no state file exists, meaning no
// supervisor is running (or it exited without cleaning up).
var ErrNoState = errors.New("no supervisor state file")

// FileStateStore manages reading and writing the state file.
// It provides atomic writes (write-tmp-then-rename) and file locking
// (flock for cross-process, mutex for in-process).
type FileStateStore struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewFileStateStore creates a new FileStateStore for the given file path.
func NewFileStateStore(path string, logger *slog.Logger) *FileStateStore {
	return &FileStateStore{
		path:   path,
		logger: logger,
	}
}

// Load reads and parses the state file.
// If the file does not exist, it returns ErrNoState.
func (s *FileStateStore) Load() (*RunState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrNoState, s.path)
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var state RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	return &state, nil
}

// Save writes the snapshot to disk atomically.
//
// The write sequence is:
//  1. Acquire in-process mutex
//  2. Acquire flock on path+".lock"
//  3. Marshal state as indented JSON
//  4. Write to path+".tmp" with 0600 permissions
//  5. Fsync the temp file
//  6. Rename path+".tmp" -> path
//  7. Release flock and mutex
func (s *FileStateStore) Save(snap *supervisor.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	lockFile, err := s.lock()
	if err != nil {
		return err
	}
	defer s.unlock(lockFile)

	state := RunState{
		Version:   schemaVersion,
		Snapshot:  *snap,
		UpdatedAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	data = append(data, '\n')

	if err := s.writeAtomic(data); err != nil {
		return err
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(s.path, 0600); err != nil {
			s.logger.Warn("failed to set permissions on state file", "error", err)
		}
	}

	s.logger.Debug("state saved", "path", s.path, "state", snap.State)
	return nil
}

// Remove deletes the state file and its lock file. A missing file is not an error.
func (s *FileStateStore) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, p := range []string{s.path, s.path + ".lock"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

func (s *FileStateStore) lock() (*os.File, error) {
	lockPath := s.path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := lockExclusive(lockFile); err != nil {
		_ = lockFile.Close()
		return nil, fmt.Errorf("acquire file lock: %w", err)
	}
	return lockFile, nil
}

func (s *FileStateStore) unlock(lockFile *os.File) {
	_ = unlockFile(lockFile)
	_ = lockFile.Close()
}

// writeAtomic writes data to a temp file, fsyncs it, and renames it
// over the target path. On any error the temp file is cleaned up.
func (s *FileStateStore) writeAtomic(data []byte) error {
	tmpPath := s.path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := f.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp to state: %w", err)
	}
	return nil
}

// Exists returns true if the state file exists on disk.
func (s *FileStateStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Path returns the configured file path.
func (s *FileStateStore) Path() string {
	return s.path
}

// DefaultPath returns the default state file location.
func DefaultPath() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".duovisor", "state.json")
	}
	return filepath.Join(os.TempDir(), "duovisor-state.json")
}

// Compile-time check that FileStateStore implements RunStateWriter.
var _ outbound.RunStateWriter = (*FileStateStore)(nil)
