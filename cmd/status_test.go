package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yarlson/ralph-gates/internal/state"
)

func TestStatusCommand(t *testing.T) {
	t.Run("requires a task list", func(t *testing.T) {
		inProject(t)
		_, err := execute(t, "status")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ralph init")
	})

	t.Run("shows progress", func(t *testing.T) {
		dir := inProject(t)
		writeTasks(t, dir, sampleTasks)
		require.NoError(t, state.SetPaused(dir, true))

		out, err := execute(t, "status")
		require.NoError(t, err)
		assert.Contains(t, out, "## Feature: Login")
		assert.Contains(t, out, "State: running (iteration 2)")
		assert.Contains(t, out, "1/3 completed")
		assert.Contains(t, out, "Next Task: T2 (Build session store)")
		assert.Contains(t, out, "Paused")
	})
}
