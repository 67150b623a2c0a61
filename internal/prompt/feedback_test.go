package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yarlson/ralph-gates/internal/gate"
)

func TestCompletionRejection_QuotesErrorVerbatim(t *testing.T) {
	failures := []gate.Result{
		{Command: "go test ./...", Passed: false, ExitCode: 1, Output: "--- FAIL: TestLogin\n    login_test.go:42: got 500"},
		{Command: "golangci-lint run", Informational: true, Passed: false, Output: "lint noise"},
	}

	out := CompletionRejection(failures)

	assert.Contains(t, out, "REJECTED")
	assert.Contains(t, out, "not pre-existing")
	assert.Contains(t, out, "--- FAIL: TestLogin\n    login_test.go:42: got 500")
	assert.NotContains(t, out, "lint noise")
}

func TestGateFailures(t *testing.T) {
	out := GateFailures([]gate.Result{{Command: "npm test", Output: "1 failing"}})
	assert.Contains(t, out, "Command: npm test")
	assert.Contains(t, out, "1 failing")
	assert.Contains(t, out, "not pre-existing")
}

func TestCorrectiveTask(t *testing.T) {
	assert.Equal(t, "Fix completion verification failures", CorrectiveTask(nil))
	assert.Equal(t,
		"Fix completion verification failure: test stage: `go test ./...` failed (exit 1); build stage: `go build ./...` failed (exit 2)",
		CorrectiveTask([]string{"test stage: `go test ./...` failed (exit 1)", "build stage: `go build ./...` failed (exit 2)"}),
	)
}

func TestVerificationFailed(t *testing.T) {
	out := VerificationFailed([]string{"build stage failed\n```\nundefined: Foo\n```"})
	assert.Contains(t, out, "corrective task")
	assert.Contains(t, out, "undefined: Foo")
}

func TestProbeIssues(t *testing.T) {
	out := ProbeIssues([]string{"error overlay visible", "console error: x"})
	assert.Contains(t, out, "- error overlay visible\n- console error: x")
}
