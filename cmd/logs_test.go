package cmd

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yarlson/ralph-gates/internal/gate"
	"github.com/yarlson/ralph-gates/internal/loop"
	"github.com/yarlson/ralph-gates/internal/state"
)

func TestLogsCommand(t *testing.T) {
	t.Run("no iterations", func(t *testing.T) {
		inProject(t)
		out, err := execute(t, "logs")
		require.NoError(t, err)
		assert.Contains(t, out, "No iterations recorded")
	})

	dir := inProject(t)
	for i := 1; i <= 2; i++ {
		rec := loop.NewIterationRecord(i, "T1")
		rec.LogPath = filepath.Join(state.LogsDirPath(dir), fmt.Sprintf("iteration-%04d.log", i))
		rec.Gates = []gate.Result{{Command: "go test ./...", Passed: i == 2}}
		rec.CompletionClaimed = i == 1
		rec.CompletionRejected = i == 1
		rec.Complete(loop.OutcomeSuccess)
		require.NoError(t, loop.AppendRecord(state.RecordsFilePath(dir), rec))
		writeFile(t, rec.LogPath, fmt.Sprintf("agent output %d\n=== result: pass ===\n", i))
	}

	t.Run("lists iterations", func(t *testing.T) {
		out, err := execute(t, "logs")
		require.NoError(t, err)
		assert.Contains(t, out, "ITER")
		assert.Contains(t, out, "success (claim rejected)")
		assert.Contains(t, out, "fail")
		assert.Contains(t, out, "pass")
	})

	t.Run("prints one log", func(t *testing.T) {
		out, err := execute(t, "logs", "-i", "2")
		require.NoError(t, err)
		assert.Contains(t, out, "agent output 2")
	})

	t.Run("unknown iteration", func(t *testing.T) {
		_, err := execute(t, "logs", "--iteration", "9")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "iteration 9 not found")
	})
}
