package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yarlson/ralph-gates/internal/agent"
	"github.com/yarlson/ralph-gates/internal/logging"
)

// Config holds all harness configuration
type Config struct {
	Executor     ExecutorConfig     `mapstructure:"executor"`
	Tasks        TasksConfig        `mapstructure:"tasks"`
	Memory       MemoryConfig       `mapstructure:"memory"`
	Gates        GatesConfig        `mapstructure:"gates"`
	Verification VerificationConfig `mapstructure:"verification"`
	Loop         LoopConfig         `mapstructure:"loop"`
	Safety       SafetyConfig       `mapstructure:"safety"`
	Probe        ProbeConfig        `mapstructure:"probe"`
	Prompt       PromptConfig       `mapstructure:"prompt"`
	Logging      logging.Config     `mapstructure:"logging"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
}

// ExecutorConfig holds worker invocation settings
type ExecutorConfig struct {
	// Provider selects a preset argv: claude, opencode, codex or custom.
	Provider string `mapstructure:"provider"`
	// Command overrides the preset. "{prompt}" is replaced with the prompt;
	// without it the prompt is written to stdin.
	Command    []string      `mapstructure:"command"`
	Env        []string      `mapstructure:"env"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	KillGrace  time.Duration `mapstructure:"kill_grace"`
}

// TasksConfig holds task-list settings
type TasksConfig struct {
	Path string `mapstructure:"path"`
}

// MemoryConfig holds learning store settings
type MemoryConfig struct {
	Path        string `mapstructure:"path"`
	ContextPath string `mapstructure:"context_path"`
	ArchiveDir  string `mapstructure:"archive_dir"`
	RenderLimit int    `mapstructure:"render_limit"`
}

// GatesConfig holds quality gate settings
type GatesConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	WarnAfter int           `mapstructure:"warn_after"`
	// AbortAfter blocks the task and stops the run after this many identical
	// consecutive failures (0 disables).
	AbortAfter  int `mapstructure:"abort_after"`
	HashLines   int `mapstructure:"hash_lines"`
	OutputLines int `mapstructure:"output_lines"`
	OutputBytes int `mapstructure:"output_bytes"`
}

// VerificationConfig holds fallback verifier stages as command lines. Stages
// declared in the task-list header take precedence.
type VerificationConfig struct {
	Services  []string `mapstructure:"services"`
	Bootstrap []string `mapstructure:"bootstrap"`
	Test      []string `mapstructure:"test"`
	E2E       []string `mapstructure:"e2e"`
	Build     []string `mapstructure:"build"`
}

// LoopConfig holds iteration loop settings
type LoopConfig struct {
	MaxIterations          int           `mapstructure:"max_iterations"`
	MaxConsecutiveFailures int           `mapstructure:"max_consecutive_failures"`
	IterationDelay         time.Duration `mapstructure:"iteration_delay"`
}

// SafetyConfig holds the gate command allowlist
type SafetyConfig struct {
	AllowedCommands []string `mapstructure:"allowed_commands"`
}

// ProbeConfig holds preview probe settings
type ProbeConfig struct {
	URL           string        `mapstructure:"url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RenderCommand []string      `mapstructure:"render_command"`
}

// PromptConfig bounds the size of the iteration prompt
type PromptConfig struct {
	MaxPromptBytes    int `mapstructure:"max_prompt_bytes"`
	MaxLearningsBytes int `mapstructure:"max_learnings_bytes"`
	MaxIssueBytes     int `mapstructure:"max_issue_bytes"`
}

// MetricsConfig holds the Prometheus endpoint settings
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables the endpoint.
	Addr string `mapstructure:"addr"`
}

// LoadConfigWithFile loads configuration from a specific file if provided,
// otherwise falls back to LoadConfig with the working directory.
func LoadConfigWithFile(workDir, configFile string) (*Config, error) {
	if configFile != "" {
		return LoadConfigFromPath(configFile)
	}
	return LoadConfig(workDir)
}

// LoadConfig loads the global config file, then ralph.yaml in the given
// directory on top of it. Missing files leave the defaults in place.
func LoadConfig(dir string) (*Config, error) {
	v := newViper()

	if global, err := GlobalConfigPath(); err == nil {
		if err := mergeFile(v, global); err != nil {
			return nil, err
		}
	}
	if err := mergeFile(v, filepath.Join(dir, "ralph.yaml")); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

// LoadConfigFromPath loads configuration from a specific file path. A missing
// file yields the defaults.
func LoadConfigFromPath(configPath string) (*Config, error) {
	v := newViper()
	if err := mergeFile(v, configPath); err != nil {
		return nil, err
	}
	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("RALPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func mergeFile(v *viper.Viper, path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := v.MergeConfig(f); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	provider, err := agent.Normalize(c.Executor.Provider)
	if err != nil {
		return err
	}
	if _, err := agent.CommandFor(provider, c.Executor.Command); err != nil {
		return err
	}
	if c.Executor.Timeout <= 0 {
		return errors.New("executor.timeout must be positive")
	}
	if c.Executor.MaxRetries < 1 {
		return errors.New("executor.max_retries must be at least 1")
	}
	if c.Executor.RetryDelay < 0 {
		return errors.New("executor.retry_delay cannot be negative")
	}
	if c.Gates.WarnAfter < 1 {
		return errors.New("gates.warn_after must be at least 1")
	}
	if c.Gates.AbortAfter < 0 {
		return errors.New("gates.abort_after cannot be negative")
	}
	if c.Gates.AbortAfter > 0 && c.Gates.AbortAfter < c.Gates.WarnAfter {
		return fmt.Errorf("gates.abort_after (%d) must not be below gates.warn_after (%d)", c.Gates.AbortAfter, c.Gates.WarnAfter)
	}
	if c.Loop.MaxIterations < 1 {
		return errors.New("loop.max_iterations must be at least 1")
	}
	if c.Loop.IterationDelay < 0 {
		return errors.New("loop.iteration_delay cannot be negative")
	}
	return c.Logging.Validate()
}

// Resolve makes every relative path absolute against root.
func (c *Config) Resolve(root string) {
	for _, p := range []*string{&c.Tasks.Path, &c.Memory.Path, &c.Memory.ContextPath, &c.Memory.ArchiveDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(root, *p)
		}
	}
}

// setDefaults sets all default values for configuration
func setDefaults(v *viper.Viper) {
	// Executor defaults
	v.SetDefault("executor.provider", DefaultProvider)
	v.SetDefault("executor.command", []string{})
	v.SetDefault("executor.env", []string{})
	v.SetDefault("executor.timeout", DefaultTimeout)
	v.SetDefault("executor.max_retries", DefaultMaxRetries)
	v.SetDefault("executor.retry_delay", DefaultRetryDelay)
	v.SetDefault("executor.kill_grace", DefaultKillGrace)

	// Tasks defaults
	v.SetDefault("tasks.path", DefaultTasksPath)

	// Memory defaults
	v.SetDefault("memory.path", DefaultMemoryPath)
	v.SetDefault("memory.context_path", DefaultContextPath)
	v.SetDefault("memory.archive_dir", DefaultArchiveDir)
	v.SetDefault("memory.render_limit", DefaultRenderLimit)

	// Gate defaults
	v.SetDefault("gates.timeout", DefaultGateTimeout)
	v.SetDefault("gates.warn_after", DefaultWarnAfter)
	v.SetDefault("gates.abort_after", DefaultAbortAfter)
	v.SetDefault("gates.hash_lines", DefaultHashLines)
	v.SetDefault("gates.output_lines", DefaultOutputLines)
	v.SetDefault("gates.output_bytes", DefaultOutputBytes)

	// Verification defaults (discovered when empty)
	v.SetDefault("verification.services", []string{})
	v.SetDefault("verification.bootstrap", []string{})
	v.SetDefault("verification.test", []string{})
	v.SetDefault("verification.e2e", []string{})
	v.SetDefault("verification.build", []string{})

	// Loop defaults
	v.SetDefault("loop.max_iterations", DefaultMaxIterations)
	v.SetDefault("loop.max_consecutive_failures", DefaultMaxConsecutiveFailures)
	v.SetDefault("loop.iteration_delay", DefaultIterationDelay)

	// Safety defaults (empty uses the built-in allowlist)
	v.SetDefault("safety.allowed_commands", []string{})

	// Probe defaults
	v.SetDefault("probe.url", "")
	v.SetDefault("probe.timeout", DefaultProbeTimeout)
	v.SetDefault("probe.render_command", []string{})

	// Prompt defaults
	v.SetDefault("prompt.max_prompt_bytes", DefaultMaxPromptBytes)
	v.SetDefault("prompt.max_learnings_bytes", DefaultMaxLearningsBytes)
	v.SetDefault("prompt.max_issue_bytes", DefaultMaxIssueBytes)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", logging.FormatConsole)
	v.SetDefault("logging.file", "")

	// Metrics defaults
	v.SetDefault("metrics.addr", "")
}
