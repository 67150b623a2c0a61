package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Run("defaults to claude", func(t *testing.T) {
		value, err := Normalize("")
		require.NoError(t, err)
		assert.Equal(t, Claude, value)
	})

	t.Run("accepts codex", func(t *testing.T) {
		value, err := Normalize("Codex")
		require.NoError(t, err)
		assert.Equal(t, Codex, value)
	})

	t.Run("rejects unknown", func(t *testing.T) {
		_, err := Normalize("unknown")
		assert.Error(t, err)
	})
}

func TestResolve(t *testing.T) {
	value, err := Resolve("opencode", "claude")
	require.NoError(t, err)
	assert.Equal(t, OpenCode, value)

	value, err = Resolve("", "codex")
	require.NoError(t, err)
	assert.Equal(t, Codex, value)
}

func TestCommandFor(t *testing.T) {
	t.Run("preset contains placeholder", func(t *testing.T) {
		argv, err := CommandFor(Claude, nil)
		require.NoError(t, err)
		assert.Equal(t, "claude", argv[0])
		assert.Contains(t, argv, PromptPlaceholder)
	})

	t.Run("custom command wins", func(t *testing.T) {
		argv, err := CommandFor(Claude, []string{"my-agent", "--yes"})
		require.NoError(t, err)
		assert.Equal(t, []string{"my-agent", "--yes"}, argv)
	})

	t.Run("custom provider needs a command", func(t *testing.T) {
		_, err := CommandFor(Custom, nil)
		assert.Error(t, err)
	})

	t.Run("preset is copied", func(t *testing.T) {
		argv, err := CommandFor(Codex, nil)
		require.NoError(t, err)
		argv[0] = "changed"
		again, _ := CommandFor(Codex, nil)
		assert.Equal(t, "codex", again[0])
	})
}
