// Package git reads repository metadata for iteration records. The loop
// never commits: the worker owns the working tree.
package git

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common Git failures.
var (
	// ErrNotAGitRepo indicates the directory is not a git repository.
	ErrNotAGitRepo = errors.New("not a git repository")

	// ErrNoCommits indicates the repository has no commits yet.
	ErrNoCommits = errors.New("repository has no commits")
)

// GitError represents a Git command error with additional context.
type GitError struct {
	// Command is the git command that failed.
	Command string
	// Output is the stderr output from the command.
	Output string
	// Err is the underlying error (typically a sentinel error).
	Err error
}

// Error returns a formatted error message.
func (e *GitError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("git command %q failed: %s", e.Command, e.Output)
	}
	return fmt.Sprintf("git command %q failed", e.Command)
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *GitError) Unwrap() error {
	return e.Err
}

// Manager reads repository state. All methods are read-only.
type Manager interface {
	// GetCurrentCommit returns the current HEAD commit hash.
	GetCurrentCommit(ctx context.Context) (string, error)

	// GetCurrentBranch returns the name of the current branch.
	GetCurrentBranch(ctx context.Context) (string, error)

	// HasChanges returns true if there are uncommitted changes in the working tree.
	HasChanges(ctx context.Context) (bool, error)

	// GetDiffStat returns the diff stat output for uncommitted changes.
	GetDiffStat(ctx context.Context) (string, error)

	// GetChangedFiles returns the files with uncommitted changes, including
	// untracked ones.
	GetChangedFiles(ctx context.Context) ([]string, error)
}

// Open returns a Manager for workDir, or nil when workDir is not inside a
// git repository.
func Open(ctx context.Context, workDir string) Manager {
	m := NewShellManager(workDir)
	if !m.IsRepo(ctx) {
		return nil
	}
	return m
}
