package cmd

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yarlson/ralph-gates/internal/state"
)

const learningsFile = `{"id":"a1","category":"discovery","text":"sessions live in redis","spec":"login","iteration":1,"timestamp":"2026-01-02T10:00:00Z"}
{"id":"a2","category":"fix","text":"nil map -> make the map","error":"nil map","fix":"make the map","spec":"login","iteration":2,"timestamp":"2026-01-02T11:00:00Z"}
{"id":"a3","category":"pattern","text":"skip the failing tests when stuck","spec":"login","iteration":3,"timestamp":"2026-01-02T12:00:00Z"}
`

func TestLearningsShow(t *testing.T) {
	t.Run("empty store", func(t *testing.T) {
		inProject(t)
		out, err := execute(t, "learnings", "show")
		require.NoError(t, err)
		assert.Contains(t, out, "No learnings stored.")
	})

	t.Run("renders groups", func(t *testing.T) {
		dir := inProject(t)
		writeFile(t, state.LearningsFilePath(dir), learningsFile)

		out, err := execute(t, "learnings", "show")
		require.NoError(t, err)
		assert.Contains(t, out, "sessions live in redis")
		assert.Contains(t, out, "nil map → make the map")
	})

	t.Run("filters by category", func(t *testing.T) {
		dir := inProject(t)
		writeFile(t, state.LearningsFilePath(dir), learningsFile)

		out, err := execute(t, "learnings", "show", "--category", "fix")
		require.NoError(t, err)
		assert.Contains(t, out, "nil map")
		assert.NotContains(t, out, "redis")
	})

	t.Run("rejects unknown category", func(t *testing.T) {
		inProject(t)
		_, err := execute(t, "learnings", "show", "--category", "gossip")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown category")
	})
}

func TestLearningsReset(t *testing.T) {
	dir := inProject(t)
	writeFile(t, state.LearningsFilePath(dir), learningsFile)

	out, err := execute(t, "learnings", "reset", "--spec", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Archived to")
	assert.Contains(t, out, "Purged 1 harmful learning(s), kept 2")

	data, err := os.ReadFile(state.LearningsFilePath(dir))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "skip the failing tests")

	archives, err := os.ReadDir(state.ArchiveDirPath(dir))
	require.NoError(t, err)
	assert.Len(t, archives, 1)
}

func TestLearningsArchives(t *testing.T) {
	dir := inProject(t)

	out, err := execute(t, "learnings", "archives")
	require.NoError(t, err)
	assert.Contains(t, out, "No archives in")

	writeFile(t, state.LearningsFilePath(dir), learningsFile)
	_, err = execute(t, "learnings", "reset")
	require.NoError(t, err)

	out, err = execute(t, "learnings", "archives")
	require.NoError(t, err)
	assert.Contains(t, out, "learnings-")
	assert.Contains(t, out, ".jsonl")
}
