package loop

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yarlson/ralph-gates/internal/gate"
)

func TestState_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "loop.json")

	st := &State{
		Iteration:           4,
		ConsecutiveFailures: 1,
		MaxIterations:       50,
		PendingIssues:       []string{"fix the build"},
		LastFailures:        []gate.Result{{Command: "go test ./...", ExitCode: 1, Output: "FAIL"}},
		LastLogPath:         "/tmp/iteration-0004.log",
	}
	require.NoError(t, SaveState(path, st))
	assert.False(t, st.UpdatedAt.IsZero())

	loaded, err := LoadState(path)
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Iteration)
	assert.Equal(t, []string{"fix the build"}, loaded.PendingIssues)
	require.Len(t, loaded.LastFailures, 1)
	assert.Equal(t, "FAIL", loaded.LastFailures[0].Output)
	assert.Equal(t, st.LastLogPath, loaded.LastLogPath)
}

func TestLoadState_Missing(t *testing.T) {
	st, err := LoadState(filepath.Join(t.TempDir(), "loop.json"))
	require.NoError(t, err)
	assert.Equal(t, &State{}, st)
}

func TestLoadState_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := LoadState(path)
	assert.Error(t, err)
}

func TestSaveState_Nil(t *testing.T) {
	assert.Error(t, SaveState(filepath.Join(t.TempDir(), "loop.json"), nil))
}

func TestState_PendingIssues(t *testing.T) {
	st := &State{}
	st.AddIssue("")
	st.AddIssue("gate failed")
	st.AddIssue("task list note")

	assert.Equal(t, []string{"gate failed", "task list note"}, st.TakePendingIssues())
	assert.Empty(t, st.TakePendingIssues())
}
