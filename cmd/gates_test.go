package cmd

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const allowTrueFalse = "safety:\n  allowed_commands: [\"true\", \"false\"]\n"

func TestGatesCommand(t *testing.T) {
	t.Run("passing gates", func(t *testing.T) {
		dir := inProject(t)
		writeFile(t, filepath.Join(dir, "ralph.yaml"), allowTrueFalse)
		writeTasks(t, dir, sampleTasks)

		out, err := execute(t, "gates")
		require.NoError(t, err)
		assert.Contains(t, out, "PASS true")
		assert.Contains(t, out, "All blocking gates passed")
	})

	t.Run("failing gate exits 1", func(t *testing.T) {
		dir := inProject(t)
		writeFile(t, filepath.Join(dir, "ralph.yaml"), allowTrueFalse)
		writeTasks(t, dir, "---\nstatus: idle\ngates:\n  - \"false\"\n---\n# Feature: X\n\n## Tasks\n\n### Pending\n\n- [ ] T1: Work\n")

		out, err := execute(t, "gates")
		require.Error(t, err)
		var exitErr *ExitError
		require.True(t, errors.As(err, &exitErr))
		assert.Equal(t, 1, exitErr.Code)
		assert.Contains(t, out, "FAIL false")
	})

	t.Run("command outside the allowlist is refused", func(t *testing.T) {
		dir := inProject(t)
		writeTasks(t, dir, sampleTasks)

		out, err := execute(t, "gates")
		require.Error(t, err)
		assert.Contains(t, out, "UNSAFE true")
	})

	t.Run("no gates anywhere", func(t *testing.T) {
		inProject(t)

		out, err := execute(t, "gates")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no quality gates found")
		assert.Contains(t, out, "No gates declared and none discovered.")
	})
}
