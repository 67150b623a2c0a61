package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultKillGrace is how long a terminated process group gets before SIGKILL.
const DefaultKillGrace = 5 * time.Second

// pipeDrainDelay bounds how long Wait keeps reading output after the child
// exits while a stray descendant still holds the pipe.
const pipeDrainDelay = 2 * time.Second

// Executor runs one worker attempt, streaming its combined output into out.
// A non-zero exit is reported through the exit code, not the error.
type Executor interface {
	Execute(ctx context.Context, prompt string, out io.Writer) (exitCode int, err error)
}

// SubprocessExecutor runs the worker CLI in its own process group.
type SubprocessExecutor struct {
	argv      []string
	workDir   string
	env       []string
	killGrace time.Duration
}

var _ Executor = (*SubprocessExecutor)(nil)

// NewSubprocessExecutor creates an executor for the given command template.
func NewSubprocessExecutor(argv []string, workDir string, killGrace time.Duration) (*SubprocessExecutor, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, errors.New("executor command is empty")
	}
	if killGrace <= 0 {
		killGrace = DefaultKillGrace
	}
	return &SubprocessExecutor{
		argv:      append([]string(nil), argv...),
		workDir:   workDir,
		killGrace: killGrace,
	}, nil
}

// WithEnv adds KEY=VALUE pairs to the child environment.
func (e *SubprocessExecutor) WithEnv(env ...string) *SubprocessExecutor {
	e.env = append(e.env, env...)
	return e
}

// Argv returns the command with prompt substituted, and whether the prompt
// must also be written to stdin.
func (e *SubprocessExecutor) Argv(prompt string) ([]string, bool) {
	out := make([]string, len(e.argv))
	substituted := false
	for i, arg := range e.argv {
		if strings.Contains(arg, PromptPlaceholder) {
			arg = strings.ReplaceAll(arg, PromptPlaceholder, prompt)
			substituted = true
		}
		out[i] = arg
	}
	return out, !substituted
}

// Execute starts the worker and waits for it. When ctx ends first the whole
// process group receives SIGTERM, then SIGKILL after the grace period.
func (e *SubprocessExecutor) Execute(ctx context.Context, prompt string, out io.Writer) (int, error) {
	argv, useStdin := e.Argv(prompt)

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = e.workDir
	if len(e.env) > 0 {
		cmd.Env = append(os.Environ(), e.env...)
	}
	cmd.Stdout = out
	cmd.Stderr = out
	if useStdin {
		cmd.Stdin = strings.NewReader(prompt)
	}
	cmd.WaitDelay = pipeDrainDelay
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start %s: %w", argv[0], err)
	}

	done := make(chan struct{})
	watchdogDone := make(chan struct{})
	go func() {
		defer close(watchdogDone)
		select {
		case <-done:
			return
		case <-ctx.Done():
		}
		_ = terminateGroup(cmd.Process)

		timer := time.NewTimer(e.killGrace)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			_ = killGroup(cmd.Process)
		}
	}()

	waitErr := cmd.Wait()
	close(done)
	<-watchdogDone

	if ctx.Err() != nil {
		// Reap anything in the group that survived SIGTERM.
		_ = killGroup(cmd.Process)
		return -1, fmt.Errorf("worker interrupted: %w", ctx.Err())
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		if errors.Is(waitErr, exec.ErrWaitDelay) {
			return cmd.ProcessState.ExitCode(), nil
		}
		return -1, fmt.Errorf("waiting for %s: %w", argv[0], waitErr)
	}
	return 0, nil
}
