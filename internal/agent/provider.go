package agent

import (
	"fmt"
	"strings"
)

// Executor presets.
const (
	Claude   = "claude"
	OpenCode = "opencode"
	Codex    = "codex"
	Custom   = "custom"
)

// PromptPlaceholder is replaced by the prompt in a command template. A
// template without it receives the prompt on stdin.
const PromptPlaceholder = "{prompt}"

var presets = map[string][]string{
	Claude:   {"claude", "-p", PromptPlaceholder, "--dangerously-skip-permissions"},
	OpenCode: {"opencode", "run", PromptPlaceholder},
	Codex:    {"codex", "exec", "--full-auto", PromptPlaceholder},
}

// Normalize validates a provider name, defaulting to Claude.
func Normalize(value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return Claude, nil
	}

	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case Claude, OpenCode, Codex, Custom:
		return normalized, nil
	default:
		return "", fmt.Errorf("unsupported provider: %s", value)
	}
}

// Resolve picks the CLI value over the config value.
func Resolve(cliValue, configValue string) (string, error) {
	if strings.TrimSpace(cliValue) != "" {
		return Normalize(cliValue)
	}
	return Normalize(configValue)
}

// CommandFor returns the command template for provider. A non-empty custom
// template always wins.
func CommandFor(provider string, custom []string) ([]string, error) {
	if len(custom) > 0 {
		return append([]string(nil), custom...), nil
	}
	p, err := Normalize(provider)
	if err != nil {
		return nil, err
	}
	if p == Custom {
		return nil, fmt.Errorf("provider %q requires executor.command", Custom)
	}
	return append([]string(nil), presets[p]...), nil
}
