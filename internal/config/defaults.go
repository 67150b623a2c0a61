package config

import "time"

// Executor defaults
const (
	DefaultProvider   = "claude"
	DefaultTimeout    = 600 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 5 * time.Second
	DefaultKillGrace  = 5 * time.Second
)

// Path defaults, relative to the repository root.
const (
	DefaultTasksPath   = ".ralph/tasks.md"
	DefaultMemoryPath  = ".ralph/learnings.jsonl"
	DefaultContextPath = ".ralph/context.md"
	DefaultArchiveDir  = ".ralph/archive"
)

// Memory defaults
const (
	DefaultRenderLimit = 10
)

// Gate defaults
const (
	DefaultGateTimeout = 10 * time.Minute
	DefaultWarnAfter   = 5
	DefaultAbortAfter  = 10
	DefaultHashLines   = 5
	DefaultOutputLines = 50
	DefaultOutputBytes = 8192
)

// Loop defaults
const (
	DefaultMaxIterations          = 50
	DefaultMaxConsecutiveFailures = 3
	DefaultIterationDelay         = 3 * time.Second
)

// Probe defaults
const (
	DefaultProbeTimeout = 15 * time.Second
)

// Prompt defaults
const (
	DefaultMaxPromptBytes    = 32000
	DefaultMaxLearningsBytes = 6000
	DefaultMaxIssueBytes     = 12000
)
