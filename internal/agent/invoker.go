package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/yarlson/ralph-gates/internal/metrics"
)

// Invocation defaults.
const (
	DefaultTimeout    = 600 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 5 * time.Second
)

// Options configures an Invoker.
type Options struct {
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// MaxRetries is the total number of attempts.
	MaxRetries int
	// RetryDelay is the first backoff; it doubles after every failure.
	RetryDelay time.Duration
	// ShutdownRequested is polled before every attempt.
	ShutdownRequested func() bool
	// Console, when set, receives worker output live.
	Console io.Writer
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Request is one worker invocation.
type Request struct {
	Prompt  string
	LogPath string
}

// Result is a completed invocation.
type Result struct {
	Output   string
	ExitCode int
	Attempts int
	Duration time.Duration
	LogPath  string
}

// Invoker runs the worker with a timeout and retries transient failures.
type Invoker struct {
	exec       Executor
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	shutdown   func() bool
	console    io.Writer
	logger     *zap.Logger
	metrics    *metrics.Metrics
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewInvoker creates an Invoker, filling zero options with defaults.
func NewInvoker(exec Executor, opts Options) *Invoker {
	inv := &Invoker{
		exec:       exec,
		timeout:    opts.Timeout,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		shutdown:   opts.ShutdownRequested,
		console:    opts.Console,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		sleep:      sleepOrCancel,
	}
	if inv.timeout <= 0 {
		inv.timeout = DefaultTimeout
	}
	if inv.maxRetries <= 0 {
		inv.maxRetries = DefaultMaxRetries
	}
	if inv.retryDelay <= 0 {
		inv.retryDelay = DefaultRetryDelay
	}
	if inv.shutdown == nil {
		inv.shutdown = func() bool { return false }
	}
	if inv.logger == nil {
		inv.logger = zap.NewNop()
	}
	return inv
}

// Invoke runs the worker until an attempt completes, retries are exhausted,
// or shutdown is requested. Every attempt is appended to req.LogPath.
func (inv *Invoker) Invoke(ctx context.Context, req Request) (*Result, error) {
	logFile, err := openLog(req.LogPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = logFile.Close() }()

	start := time.Now()
	delay := inv.retryDelay
	var last *AttemptError

	for attempt := 1; attempt <= inv.maxRetries; attempt++ {
		if inv.shutdown() || ctx.Err() != nil {
			fmt.Fprintf(logFile, "=== shutdown requested before attempt %d ===\n", attempt)
			return nil, ErrShutdown
		}

		fmt.Fprintf(logFile, "=== attempt %d/%d started %s ===\n", attempt, inv.maxRetries, time.Now().UTC().Format(time.RFC3339))
		inv.logger.Info("invoking worker",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", inv.maxRetries),
			zap.Duration("timeout", inv.timeout),
		)

		output, code, timedOut, execErr := inv.runAttempt(ctx, req.Prompt, logFile)
		if ctx.Err() != nil {
			fmt.Fprintf(logFile, "\n=== attempt %d interrupted ===\n", attempt)
			return nil, fmt.Errorf("%w: %w", ErrShutdown, ctx.Err())
		}

		class, reason := Classify(Attempt{Output: output, ExitCode: code, TimedOut: timedOut, Err: execErr})
		fmt.Fprintf(logFile, "\n=== attempt %d exit=%d classification=%s", attempt, code, class)
		if reason != "" {
			fmt.Fprintf(logFile, " reason=%q", reason)
		}
		fmt.Fprintln(logFile, " ===")
		inv.metrics.AgentAttempt(string(class))

		if class == ClassCompleted {
			return &Result{
				Output:   output,
				ExitCode: code,
				Attempts: attempt,
				Duration: time.Since(start),
				LogPath:  req.LogPath,
			}, nil
		}

		last = &AttemptError{Attempt: attempt, Reason: reason}
		inv.logger.Warn("worker attempt failed",
			zap.Int("attempt", attempt),
			zap.String("reason", reason),
		)

		if attempt < inv.maxRetries {
			fmt.Fprintf(logFile, "=== retrying in %s ===\n", delay)
			if err := inv.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrShutdown, err)
			}
			delay *= 2
		}
	}

	return nil, &PermanentFailureError{
		Attempts: inv.maxRetries,
		LogPath:  req.LogPath,
		Last:     last,
	}
}

func (inv *Invoker) runAttempt(ctx context.Context, prompt string, logFile io.Writer) (string, int, bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	var buf bytes.Buffer
	writers := []io.Writer{logFile, &buf}
	if inv.console != nil {
		writers = append(writers, inv.console)
	}

	code, err := inv.exec.Execute(attemptCtx, prompt, io.MultiWriter(writers...))
	timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	if timedOut {
		err = nil
		fmt.Fprintf(logFile, "\n=== attempt timed out after %s ===", inv.timeout)
	}
	return buf.String(), code, timedOut, err
}

func openLog(path string) (*os.File, error) {
	if path == "" {
		return nil, errors.New("iteration log path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open iteration log %s: %w", path, err)
	}
	return f, nil
}

func sleepOrCancel(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
