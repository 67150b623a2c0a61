package gate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/yarlson/ralph-gates/internal/metrics"
)

// DefaultTimeout bounds a single gate execution.
const DefaultTimeout = 10 * time.Minute

// waitDelay bounds how long Exec waits for grandchildren holding the output
// pipe after the gate process itself has exited or been killed.
const waitDelay = 2 * time.Second

// Result is the outcome of one gate execution.
type Result struct {
	Command             string        `json:"command"`
	Informational       bool          `json:"informational,omitempty"`
	Passed              bool          `json:"passed"`
	Unsafe              bool          `json:"unsafe,omitempty"`
	ExitCode            int           `json:"exit_code"`
	Output              string        `json:"output,omitempty"`
	ErrorHash           string        `json:"error_hash,omitempty"`
	ConsecutiveFailures int           `json:"consecutive_failures,omitempty"`
	Warning             string        `json:"warning,omitempty"`
	Duration            time.Duration `json:"duration"`

	raw string
}

// Raw returns the untrimmed output captured by Exec, or Output when the
// result was not produced by Exec.
func (r Result) Raw() string {
	if r.raw == "" {
		return r.Output
	}
	return r.raw
}

// Report aggregates the results of one gate run.
type Report struct {
	Results    []Result `json:"results"`
	Discovered bool     `json:"discovered,omitempty"`
	NoGates    bool     `json:"no_gates,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	// Interrupted is set when ctx was cancelled before every gate finished.
	// The cut-short gate is dropped and the tracker is left untouched.
	Interrupted bool `json:"interrupted,omitempty"`
}

// Passed returns true when every blocking gate passed.
func (r Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Passed && !res.Informational {
			return false
		}
	}
	return true
}

// BlockingFailures returns failing gates that affect the overall outcome.
func (r Report) BlockingFailures() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Passed && !res.Informational {
			out = append(out, res)
		}
	}
	return out
}

// Options configures a Runner.
type Options struct {
	WorkDir   string
	Policy    *Policy
	Tracker   *Tracker
	Timeout   time.Duration
	Trim      TrimOptions
	WarnAfter int
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// Runner executes gate commands without a shell.
type Runner struct {
	workDir   string
	policy    *Policy
	tracker   *Tracker
	timeout   time.Duration
	trim      TrimOptions
	warnAfter int
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewRunner creates a Runner, filling unset options with defaults.
func NewRunner(opts Options) *Runner {
	r := &Runner{
		workDir:   opts.WorkDir,
		policy:    opts.Policy,
		tracker:   opts.Tracker,
		timeout:   opts.Timeout,
		trim:      opts.Trim,
		warnAfter: opts.WarnAfter,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
	if r.policy == nil {
		r.policy = NewPolicy(nil, opts.WorkDir)
	}
	if r.tracker == nil {
		r.tracker = NewTracker(DefaultHashLines)
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.trim.MaxLines == 0 && r.trim.MaxBytes == 0 {
		r.trim = DefaultTrimOptions()
	}
	if r.warnAfter <= 0 {
		r.warnAfter = DefaultWarnAfter
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Tracker returns the repeat-failure tracker.
func (r *Runner) Tracker() *Tracker {
	return r.tracker
}

// Run executes cmds in order and tracks repeat failures of blocking gates.
// With no commands it falls back to Discover; if that finds nothing too the
// report carries NoGates and a warning instead of silently passing.
func (r *Runner) Run(ctx context.Context, cmds []Command) Report {
	var report Report

	if len(cmds) == 0 {
		cmds = Discover(r.workDir)
		report.Discovered = len(cmds) > 0
		if len(cmds) == 0 {
			msg := "no quality gates declared in the task list and none could be discovered; add a Quality Gates section"
			r.logger.Warn("no quality gates", zap.String("work_dir", r.workDir))
			report.NoGates = true
			report.Warnings = append(report.Warnings, msg)
			return report
		}
		r.logger.Warn("no quality gates declared, using discovered gates", zap.Int("count", len(cmds)))
	}

	for _, cmd := range cmds {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}

		res := r.Exec(ctx, cmd)
		if ctx.Err() != nil {
			r.logger.Info("gate interrupted", zap.String("gate", res.Command))
			report.Interrupted = true
			break
		}
		if !res.Informational {
			res.ErrorHash = ""
			if !res.Passed {
				res.ErrorHash = r.tracker.Hash(res.raw)
			}
			res.ConsecutiveFailures = r.tracker.Record(cmd.Line(), res.Passed, res.ErrorHash)
			if res.ConsecutiveFailures >= r.warnAfter {
				res.Warning = repeatWarning(res.Command, res.ConsecutiveFailures)
				report.Warnings = append(report.Warnings, res.Warning)
				r.metrics.RepeatWarning(res.Command)
				r.logger.Warn("gate failing repeatedly with the same error",
					zap.String("gate", res.Command),
					zap.Int("count", res.ConsecutiveFailures),
					zap.String("hash", res.ErrorHash))
			}
		}

		r.metrics.GateRun(res.Command, res.Passed)
		r.logResult(res)
		report.Results = append(report.Results, res)
	}

	return report
}

// Exec validates and runs a single command without touching the tracker.
// Rejected commands are reported as failing blocking gates and never run.
func (r *Runner) Exec(ctx context.Context, cmd Command) Result {
	start := time.Now()

	if err := r.policy.Check(cmd); err != nil {
		return Result{
			Command:  cmd.String(),
			Passed:   false,
			Unsafe:   true,
			ExitCode: -1,
			Output:   err.Error(),
			Duration: time.Since(start),
			raw:      err.Error(),
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	c := exec.CommandContext(runCtx, cmd.Program, cmd.Args...)
	if r.workDir != "" {
		c.Dir = r.workDir
	}
	c.WaitDelay = waitDelay
	var out bytes.Buffer
	c.Stdout = &out
	c.Stderr = &out

	err := c.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
			_, _ = fmt.Fprintf(&out, "\nerror: %v", err)
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			_, _ = fmt.Fprintf(&out, "\nerror: gate timed out after %s", r.timeout)
		}
	}

	raw := out.String()
	return Result{
		Command:       cmd.String(),
		Informational: cmd.Informational,
		Passed:        err == nil,
		ExitCode:      exitCode,
		Output:        Tail(raw, r.trim),
		Duration:      time.Since(start),
		raw:           raw,
	}
}

func (r *Runner) logResult(res Result) {
	fields := []zap.Field{
		zap.String("gate", res.Command),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", res.Duration),
	}
	switch {
	case res.Passed:
		r.logger.Info("gate passed", fields...)
	case res.Unsafe:
		r.logger.Warn("gate rejected", append(fields, zap.String("reason", res.Output))...)
	case res.Informational:
		r.logger.Info("informational gate failed", fields...)
	default:
		r.logger.Warn("gate failed", fields...)
	}
}

func repeatWarning(gate string, count int) string {
	return fmt.Sprintf("`%s` has failed %d times in a row with the same error. "+
		"This failure is real and caused by the current code; it is not pre-existing, flaky or environmental. "+
		"Fix the root cause before doing anything else.", gate, count)
}
