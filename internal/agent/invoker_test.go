package agent

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedAttempt struct {
	output string
	code   int
	err    error
	block  bool
}

type mockExecutor struct {
	attempts []scriptedAttempt
	calls    int
	prompts  []string
}

func (m *mockExecutor) Execute(ctx context.Context, prompt string, out io.Writer) (int, error) {
	m.prompts = append(m.prompts, prompt)
	a := m.attempts[m.calls]
	if m.calls < len(m.attempts)-1 {
		m.calls++
	}
	_, _ = io.WriteString(out, a.output)
	if a.block {
		<-ctx.Done()
		return -1, ctx.Err()
	}
	return a.code, a.err
}

func newTestInvoker(exec Executor, opts Options) (*Invoker, *[]time.Duration) {
	inv := NewInvoker(exec, opts)
	var sleeps []time.Duration
	inv.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return inv, &sleeps
}

const goodOutput = "Implemented the endpoint, added table tests, and all gates pass locally. COMPLETED: T1"

func TestInvoke_SucceedsFirstAttempt(t *testing.T) {
	exec := &mockExecutor{attempts: []scriptedAttempt{{output: goodOutput}}}
	inv, sleeps := newTestInvoker(exec, Options{})
	logPath := filepath.Join(t.TempDir(), "logs", "iteration-0001.log")

	res, err := inv.Invoke(context.Background(), Request{Prompt: "do it", LogPath: logPath})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, goodOutput, res.Output)
	assert.Empty(t, *sleeps)
	assert.Equal(t, []string{"do it"}, exec.prompts)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "=== attempt 1/3 started")
	assert.Contains(t, string(data), goodOutput)
	assert.Contains(t, string(data), "classification=completed")
}

func TestInvoke_RetriesWithDoublingBackoff(t *testing.T) {
	exec := &mockExecutor{attempts: []scriptedAttempt{
		{output: "connection reset"},
		{output: "", code: 1},
		{output: goodOutput},
	}}
	inv, sleeps := newTestInvoker(exec, Options{RetryDelay: 5 * time.Second})

	res, err := inv.Invoke(context.Background(), Request{Prompt: "p", LogPath: filepath.Join(t.TempDir(), "it.log")})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, *sleeps)
}

func TestInvoke_PermanentFailure(t *testing.T) {
	exec := &mockExecutor{attempts: []scriptedAttempt{{output: "rate limit exceeded"}}}
	inv, sleeps := newTestInvoker(exec, Options{MaxRetries: 3})
	logPath := filepath.Join(t.TempDir(), "it.log")

	_, err := inv.Invoke(context.Background(), Request{Prompt: "p", LogPath: logPath})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPermanentFailure)
	assert.ErrorIs(t, err, ErrTransient)

	var pf *PermanentFailureError
	require.True(t, errors.As(err, &pf))
	assert.Equal(t, 3, pf.Attempts)
	assert.Equal(t, logPath, pf.LogPath)
	assert.Equal(t, 3, pf.Last.Attempt)
	assert.Len(t, *sleeps, 2)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "classification=transient"))
}

func TestInvoke_ShutdownBeforeAttempt(t *testing.T) {
	exec := &mockExecutor{attempts: []scriptedAttempt{{output: goodOutput}}}
	inv, _ := newTestInvoker(exec, Options{ShutdownRequested: func() bool { return true }})

	_, err := inv.Invoke(context.Background(), Request{Prompt: "p", LogPath: filepath.Join(t.TempDir(), "it.log")})
	assert.ErrorIs(t, err, ErrShutdown)
	assert.Empty(t, exec.prompts)
}

func TestInvoke_ShutdownBetweenRetries(t *testing.T) {
	calls := 0
	exec := &mockExecutor{attempts: []scriptedAttempt{{output: "", code: 1}}}
	inv, _ := newTestInvoker(exec, Options{ShutdownRequested: func() bool {
		calls++
		return calls > 1
	}})

	_, err := inv.Invoke(context.Background(), Request{Prompt: "p", LogPath: filepath.Join(t.TempDir(), "it.log")})
	assert.ErrorIs(t, err, ErrShutdown)
	assert.Len(t, exec.prompts, 1)
}

func TestInvoke_TimeoutIsTransient(t *testing.T) {
	exec := &mockExecutor{attempts: []scriptedAttempt{
		{output: "working...", block: true},
		{output: goodOutput},
	}}
	inv, _ := newTestInvoker(exec, Options{Timeout: 20 * time.Millisecond})
	logPath := filepath.Join(t.TempDir(), "it.log")

	res, err := inv.Invoke(context.Background(), Request{Prompt: "p", LogPath: logPath})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `reason="timed out"`)
}

func TestInvoke_ParentCancelIsShutdown(t *testing.T) {
	exec := &mockExecutor{attempts: []scriptedAttempt{{block: true}}}
	inv, _ := newTestInvoker(exec, Options{Timeout: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := inv.Invoke(ctx, Request{Prompt: "p", LogPath: filepath.Join(t.TempDir(), "it.log")})
	assert.ErrorIs(t, err, ErrShutdown)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInvoke_EmptyLogPath(t *testing.T) {
	inv, _ := newTestInvoker(&mockExecutor{}, Options{})
	_, err := inv.Invoke(context.Background(), Request{Prompt: "p"})
	assert.Error(t, err)
}

func TestSleepOrCancel(t *testing.T) {
	require.NoError(t, sleepOrCancel(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepOrCancel(ctx, time.Hour), context.Canceled)
}
