package git

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// ShellManager implements the Manager interface by shelling out to git.
type ShellManager struct {
	workDir string
}

var _ Manager = (*ShellManager)(nil)

// NewShellManager creates a new ShellManager with the given working directory.
func NewShellManager(workDir string) *ShellManager {
	return &ShellManager{workDir: workDir}
}

// runGit executes a git command and returns its trimmed stdout.
func (m *ShellManager) runGit(ctx context.Context, args ...string) (string, error) {
	out, err := m.runGitRaw(ctx, args...)
	return strings.TrimSpace(out), err
}

// runGitRaw executes a git command and returns its stdout unmodified.
func (m *ShellManager) runGitRaw(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = m.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		stderrLower := strings.ToLower(stderrStr)
		gitErr := &GitError{
			Command: "git " + strings.Join(args, " "),
			Output:  stderrStr,
			Err:     err,
		}

		switch {
		case strings.Contains(stderrLower, "not a git repository"):
			gitErr.Err = ErrNotAGitRepo
		case strings.Contains(stderrLower, "ambiguous argument 'head'"),
			strings.Contains(stderrLower, "unknown revision"):
			gitErr.Err = ErrNoCommits
		}
		return "", gitErr
	}

	return stdout.String(), nil
}

// IsRepo reports whether the working directory is inside a git repository.
func (m *ShellManager) IsRepo(ctx context.Context) bool {
	_, err := m.runGit(ctx, "rev-parse", "--git-dir")
	return err == nil
}

// GetCurrentBranch returns the name of the current branch.
func (m *ShellManager) GetCurrentBranch(ctx context.Context) (string, error) {
	branch, err := m.runGit(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err == nil {
		return branch, nil
	}
	// symbolic-ref works in a repository without commits.
	return m.runGit(ctx, "symbolic-ref", "--short", "HEAD")
}

// GetCurrentCommit returns the current HEAD commit hash.
func (m *ShellManager) GetCurrentCommit(ctx context.Context) (string, error) {
	return m.runGit(ctx, "rev-parse", "HEAD")
}

// HasChanges returns true if there are uncommitted changes in the working tree.
// This includes staged changes, unstaged changes, and untracked files.
func (m *ShellManager) HasChanges(ctx context.Context) (bool, error) {
	output, err := m.runGit(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return output != "", nil
}

// GetDiffStat returns the diff stat output for uncommitted changes.
func (m *ShellManager) GetDiffStat(ctx context.Context) (string, error) {
	return m.runGit(ctx, "diff", "--stat")
}

// GetChangedFiles returns a list of files with uncommitted changes.
func (m *ShellManager) GetChangedFiles(ctx context.Context) ([]string, error) {
	// The first status column may be a space, so the output stays untrimmed.
	output, err := m.runGitRaw(ctx, "status", "--porcelain", "-z")
	if err != nil {
		return nil, err
	}
	return parsePorcelainZ(output), nil
}

// parsePorcelainZ parses `git status --porcelain -z` output. Renames carry
// the original path as a separate NUL-terminated field, which is skipped.
func parsePorcelainZ(output string) []string {
	var files []string
	fields := strings.Split(output, "\x00")
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if len(f) < 4 {
			continue
		}
		files = append(files, f[3:])
		if f[0] == 'R' || f[0] == 'C' {
			i++
		}
	}
	return files
}
