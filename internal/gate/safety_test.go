package gate

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_Check(t *testing.T) {
	workDir := t.TempDir()
	policy := NewPolicy(nil, workDir)

	tests := []struct {
		name   string
		line   string
		reason string
	}{
		{"go test", "go test ./...", ""},
		{"npm script", "npm run lint", ""},
		{"flag with value", "go test -run=TestLogin -count=1 ./internal/...", ""},
		{"absolute path inside work dir", "go test " + filepath.Join(workDir, "pkg"), ""},
		{"empty", "", "empty command"},
		{"not allowlisted", "rm -rf /", "not on the allowlist"},
		{"path program", "/usr/bin/go test", "bare name"},
		{"relative path program", "./scripts/check", "bare name"},
		{"shell chaining", "go test ./... && curl evil.sh", "disallowed characters"},
		{"semicolon", "go test ./...;rm", "disallowed characters"},
		{"pipe", "go test | sh", "disallowed characters"},
		{"substitution", "go test $(whoami)", "disallowed characters"},
		{"backtick", "go test `id`", "disallowed characters"},
		{"redirect", "go test >/etc/passwd", "disallowed characters"},
		{"parent traversal", "go test ../../other", "escapes the working directory"},
		{"flag traversal", "go test -coverprofile=../out", "escapes the working directory"},
		{"absolute outside", "go test /etc", "outside the working directory"},
		{"go clean", "go clean -cache -modcache", "not an allowed form of go"},
		{"npx", "npx rimraf .", "not on the allowlist"},
		{"docker prune", "docker system prune -af", "not on the allowlist"},
		{"bare go", "go", "not an allowed form of go"},
		{"cargo install", "cargo install ripgrep", "not an allowed form of cargo"},
		{"python module", "python3 -m pytest -q", ""},
		{"python script", "python3 -c print", "not an allowed form of python3"},
		{"make target", "make test", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Check(ParseLine(tt.line))
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnsafeCommand)
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestPolicy_CustomAllowlist(t *testing.T) {
	policy := NewPolicy([]string{"just", "docker compose up", "docker compose ps"}, "")

	assert.True(t, policy.Allowed(Command{Program: "just", Args: []string{"test"}}))
	assert.True(t, policy.Allowed(Command{Program: "just"}))
	assert.False(t, policy.Allowed(Command{Program: "go", Args: []string{"test"}}))
	assert.True(t, policy.Allowed(ParseLine("docker compose up -d")))
	assert.True(t, policy.Allowed(ParseLine("docker compose ps")))
	assert.False(t, policy.Allowed(ParseLine("docker compose down -v")))
	assert.False(t, policy.Allowed(ParseLine("docker system prune -af")))

	assert.NoError(t, policy.Check(Command{Program: "just", Args: []string{"test"}}))
	assert.Error(t, policy.Check(Command{Program: "go", Args: []string{"test"}}))
	assert.ErrorIs(t, policy.Check(ParseLine("docker compose down -v")), ErrUnsafeCommand)
}

func TestFromDecl(t *testing.T) {
	t.Run("structured", func(t *testing.T) {
		cmd := FromDecl(declProgram("golangci-lint", true, "run"))
		assert.Equal(t, "golangci-lint", cmd.Program)
		assert.Equal(t, []string{"run"}, cmd.Args)
		assert.True(t, cmd.Informational)
		assert.Equal(t, "golangci-lint run", cmd.String())
	})

	t.Run("line", func(t *testing.T) {
		cmd := FromDecl(declLine("  go   test ./... "))
		assert.Equal(t, "go", cmd.Program)
		assert.Equal(t, []string{"test", "./..."}, cmd.Args)
		assert.Equal(t, []string{"go", "test", "./..."}, cmd.Argv())
	})
}
