package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yarlson/ralph-gates/internal/state"
)

// inProject switches to a fresh project directory with an isolated global
// config and returns its path.
func inProject(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

// writeTasks writes a task list into the project.
func writeTasks(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, state.EnsureRalphDir(dir))
	require.NoError(t, os.WriteFile(state.TasksFilePath(dir), []byte(content), 0644))
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

const sampleTasks = "---\n" +
	"status: running\n" +
	"iteration: 2\n" +
	"spec: login\n" +
	"---\n" +
	"# Feature: Login\n\n" +
	"## Tasks\n\n" +
	"### In Progress\n\n" +
	"- [ ] T2: Build session store\n\n" +
	"### Pending\n\n" +
	"- [ ] T3: Add lockout counter\n\n" +
	"### Completed\n\n" +
	"- [x] T1: Scaffold package\n\n" +
	"## Quality Gates\n\n" +
	"```gate\n" +
	"true\n" +
	"```\n"
