package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the global config lookup at an empty directory.
func isolate(t *testing.T) string {
	t.Helper()
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	return xdg
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadConfig_WithValidFile(t *testing.T) {
	isolate(t)
	tmpDir := t.TempDir()

	writeConfig(t, filepath.Join(tmpDir, "ralph.yaml"), `
executor:
  provider: custom
  command: ["my-agent", "--prompt", "{prompt}"]
  timeout: 120s
  max_retries: 5
  retry_delay: 2s
tasks:
  path: "docs/tasks.md"
memory:
  render_limit: 4
gates:
  warn_after: 3
  abort_after: 6
verification:
  test: ["go test ./..."]
  build: ["go build ./..."]
loop:
  max_iterations: 20
  iteration_delay: 1s
safety:
  allowed_commands: ["go", "make"]
probe:
  url: "http://localhost:3000"
logging:
  level: debug
  format: json
metrics:
  addr: ":9090"
`)

	cfg, err := LoadConfig(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "custom", cfg.Executor.Provider)
	assert.Equal(t, []string{"my-agent", "--prompt", "{prompt}"}, cfg.Executor.Command)
	assert.Equal(t, 120*time.Second, cfg.Executor.Timeout)
	assert.Equal(t, 5, cfg.Executor.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Executor.RetryDelay)

	assert.Equal(t, "docs/tasks.md", cfg.Tasks.Path)
	assert.Equal(t, 4, cfg.Memory.RenderLimit)

	assert.Equal(t, 3, cfg.Gates.WarnAfter)
	assert.Equal(t, 6, cfg.Gates.AbortAfter)

	assert.Equal(t, []string{"go test ./..."}, cfg.Verification.Test)
	assert.Equal(t, []string{"go build ./..."}, cfg.Verification.Build)

	assert.Equal(t, 20, cfg.Loop.MaxIterations)
	assert.Equal(t, time.Second, cfg.Loop.IterationDelay)

	assert.Equal(t, []string{"go", "make"}, cfg.Safety.AllowedCommands)
	assert.Equal(t, "http://localhost:3000", cfg.Probe.URL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestLoadConfig_WithDefaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultProvider, cfg.Executor.Provider)
	assert.Empty(t, cfg.Executor.Command)
	assert.Equal(t, 600*time.Second, cfg.Executor.Timeout)
	assert.Equal(t, 3, cfg.Executor.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Executor.RetryDelay)

	assert.Equal(t, ".ralph/tasks.md", cfg.Tasks.Path)
	assert.Equal(t, ".ralph/learnings.jsonl", cfg.Memory.Path)
	assert.Equal(t, ".ralph/context.md", cfg.Memory.ContextPath)
	assert.Equal(t, ".ralph/archive", cfg.Memory.ArchiveDir)
	assert.Equal(t, 10, cfg.Memory.RenderLimit)

	assert.Equal(t, 5, cfg.Gates.WarnAfter)
	assert.Equal(t, 10, cfg.Gates.AbortAfter)

	assert.Empty(t, cfg.Verification.Test)

	assert.Equal(t, 50, cfg.Loop.MaxIterations)
	assert.Equal(t, 3, cfg.Loop.MaxConsecutiveFailures)
	assert.Equal(t, 3*time.Second, cfg.Loop.IterationDelay)

	assert.Empty(t, cfg.Safety.AllowedCommands)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoadConfig_GlobalThenProject(t *testing.T) {
	xdg := isolate(t)
	tmpDir := t.TempDir()

	writeConfig(t, filepath.Join(xdg, "ralph", "config.yaml"), `
executor:
  provider: opencode
loop:
  max_iterations: 10
`)
	writeConfig(t, filepath.Join(tmpDir, "ralph.yaml"), `
loop:
  max_iterations: 100
`)

	cfg, err := LoadConfig(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "opencode", cfg.Executor.Provider)
	assert.Equal(t, 100, cfg.Loop.MaxIterations)
	assert.Equal(t, 3, cfg.Loop.MaxConsecutiveFailures)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("RALPH_LOOP_MAX_ITERATIONS", "7")
	t.Setenv("RALPH_EXECUTOR_TIMEOUT", "30s")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Loop.MaxIterations)
	assert.Equal(t, 30*time.Second, cfg.Executor.Timeout)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	isolate(t)
	tmpDir := t.TempDir()

	writeConfig(t, filepath.Join(tmpDir, "ralph.yaml"), `
loop:
  max_iterations: [invalid
`)

	_, err := LoadConfig(tmpDir)
	assert.Error(t, err)
}

func TestLoadConfigFromPath(t *testing.T) {
	isolate(t)

	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := LoadConfigFromPath(filepath.Join(t.TempDir(), "none.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultMaxIterations, cfg.Loop.MaxIterations)
	})

	t.Run("explicit file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "custom.yaml")
		writeConfig(t, path, "gates:\n  abort_after: 0\n")

		cfg, err := LoadConfigWithFile(t.TempDir(), path)
		require.NoError(t, err)
		assert.Equal(t, 0, cfg.Gates.AbortAfter)
	})
}

func TestConfig_Validate(t *testing.T) {
	isolate(t)

	tests := []struct {
		name    string
		content string
	}{
		{"unknown provider", "executor:\n  provider: nope\n"},
		{"custom without command", "executor:\n  provider: custom\n"},
		{"zero timeout", "executor:\n  timeout: 0s\n"},
		{"zero retries", "executor:\n  max_retries: 0\n"},
		{"abort below warn", "gates:\n  warn_after: 5\n  abort_after: 2\n"},
		{"bad log level", "logging:\n  level: loud\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			writeConfig(t, filepath.Join(tmpDir, "ralph.yaml"), tc.content)

			_, err := LoadConfig(tmpDir)
			assert.Error(t, err)
		})
	}
}

func TestConfig_Resolve(t *testing.T) {
	cfg := &Config{
		Tasks:  TasksConfig{Path: ".ralph/tasks.md"},
		Memory: MemoryConfig{Path: "/abs/learnings.jsonl", ContextPath: "ctx.md"},
	}
	cfg.Resolve("/repo")

	assert.Equal(t, "/repo/.ralph/tasks.md", cfg.Tasks.Path)
	assert.Equal(t, "/abs/learnings.jsonl", cfg.Memory.Path)
	assert.Equal(t, "/repo/ctx.md", cfg.Memory.ContextPath)
	assert.Empty(t, cfg.Memory.ArchiveDir)
}
