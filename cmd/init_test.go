package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yarlson/ralph-gates/internal/state"
	"github.com/yarlson/ralph-gates/internal/taskstore"
)

func TestInitCommand(t *testing.T) {
	t.Run("requires a title", func(t *testing.T) {
		inProject(t)
		_, err := execute(t, "init")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--title")
	})

	t.Run("creates a task list with discovered gates", func(t *testing.T) {
		dir := inProject(t)
		writeFile(t, filepath.Join(dir, "go.mod"), "module example.com/demo\n\ngo 1.25\n")

		out, err := execute(t, "init", "--title", "Feature: Login", "--spec", "login",
			"-t", "Build session store", "-t", "Add lockout counter")
		require.NoError(t, err)
		assert.Contains(t, out, "with 2 task(s)")
		assert.Contains(t, out, "gate: go test ./...")

		doc, err := taskstore.NewFileStore(state.TasksFilePath(dir)).Load()
		require.NoError(t, err)
		assert.Equal(t, "Feature: Login", doc.Title)
		assert.Equal(t, "login", doc.Header.Spec)
		assert.Equal(t, taskstore.RunStatusIdle, doc.Header.Status)
		require.Len(t, doc.Tasks, 2)
		assert.Equal(t, "T1", doc.Tasks[0].ID)
		assert.Equal(t, taskstore.StatusPending, doc.Tasks[1].Status)
		assert.Len(t, doc.GateDecls(), 3)
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		dir := inProject(t)
		writeTasks(t, dir, sampleTasks)

		_, err := execute(t, "init", "--title", "Other")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")

		_, err = execute(t, "init", "--title", "Other", "--force")
		require.NoError(t, err)
	})
}
