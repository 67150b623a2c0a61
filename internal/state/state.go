// Package state manages the .ralph directory structure and the operator
// flags shared between the loop and the CLI.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yarlson/ralph-gates/internal/filelock"
)

// Directory and file names for the .ralph structure.
const (
	RalphDir       = ".ralph"
	StateDir       = "state"
	LogsDir        = "logs"
	ArchiveDir     = "archive"
	TasksFile      = "tasks.md"
	LearningsFile  = "learnings.jsonl"
	ContextFile    = "context.md"
	RecordsFile    = "iterations.jsonl"
	LoopStateFile  = "loop.json"
	GateStateFile  = "gates.json"
	RunLockFile    = "run.lock"
	PausedFile     = "paused"
)

// ErrRunning is returned when another loop already holds the run lock.
var ErrRunning = errors.New("another loop is already running in this project")

// RalphDirPath returns the path to the .ralph directory.
func RalphDirPath(root string) string {
	return filepath.Join(root, RalphDir)
}

// StateDirPath returns the path to the state directory.
func StateDirPath(root string) string {
	return filepath.Join(root, RalphDir, StateDir)
}

// LogsDirPath returns the path to the logs directory.
func LogsDirPath(root string) string {
	return filepath.Join(root, RalphDir, LogsDir)
}

// ArchiveDirPath returns the path to the archive directory.
func ArchiveDirPath(root string) string {
	return filepath.Join(root, RalphDir, ArchiveDir)
}

// TasksFilePath returns the default task-list document path.
func TasksFilePath(root string) string {
	return filepath.Join(root, RalphDir, TasksFile)
}

// LearningsFilePath returns the learning store path.
func LearningsFilePath(root string) string {
	return filepath.Join(root, RalphDir, LearningsFile)
}

// ContextFilePath returns the rendered learning context path.
func ContextFilePath(root string) string {
	return filepath.Join(root, RalphDir, ContextFile)
}

// RecordsFilePath returns the iteration record log path.
func RecordsFilePath(root string) string {
	return filepath.Join(root, RalphDir, LogsDir, RecordsFile)
}

// LoopStateFilePath returns the persisted loop state path.
func LoopStateFilePath(root string) string {
	return filepath.Join(root, RalphDir, StateDir, LoopStateFile)
}

// GateStateFilePath returns the persisted repeat-failure counters path.
func GateStateFilePath(root string) string {
	return filepath.Join(root, RalphDir, StateDir, GateStateFile)
}

// RunLockFilePath returns the path of the one-loop-per-project lock.
func RunLockFilePath(root string) string {
	return filepath.Join(root, RalphDir, StateDir, RunLockFile)
}

// PausedFilePath returns the path to the paused state file.
func PausedFilePath(root string) string {
	return filepath.Join(root, RalphDir, StateDir, PausedFile)
}

// EnsureRalphDir creates the .ralph directory structure if it doesn't exist.
// It creates the following directories:
//   - .ralph/
//   - .ralph/state/
//   - .ralph/logs/
//   - .ralph/archive/
//
// The function is idempotent - calling it multiple times is safe.
func EnsureRalphDir(root string) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return fmt.Errorf("root directory does not exist: %s", root)
	}

	dirs := []string{
		RalphDirPath(root),
		StateDirPath(root),
		LogsDirPath(root),
		ArchiveDirPath(root),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// IsPaused checks if the loop is currently paused. A missing state
// directory means nothing was ever paused.
func IsPaused(root string) (bool, error) {
	_, err := os.Stat(PausedFilePath(root))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check paused state: %w", err)
	}
	return true, nil
}

// SetPaused sets the paused state.
func SetPaused(root string, paused bool) error {
	stateDir := StateDirPath(root)
	if _, err := os.Stat(stateDir); os.IsNotExist(err) {
		return fmt.Errorf(".ralph/state directory does not exist")
	}

	pausedPath := PausedFilePath(root)

	if paused {
		file, err := os.Create(pausedPath)
		if err != nil {
			return fmt.Errorf("failed to create paused file: %w", err)
		}
		return file.Close()
	}

	err := os.Remove(pausedPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove paused file: %w", err)
	}
	return nil
}

// AcquireRunLock takes the project run lock without blocking. The returned
// function releases it. ErrRunning means another loop holds the lock.
func AcquireRunLock(root string) (func() error, error) {
	lock := filelock.New(RunLockFilePath(root))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRunning
	}
	return lock.Unlock, nil
}
