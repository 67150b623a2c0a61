package prompt

import (
	"fmt"
	"strings"

	"github.com/yarlson/ralph-gates/internal/gate"
)

// CompletionRejection is injected after the worker claimed completion while
// a blocking gate failed. It quotes the captured error output verbatim.
func CompletionRejection(failures []gate.Result) string {
	var sb strings.Builder
	sb.WriteString("Completion was REJECTED: you reported the work as complete, but blocking quality gates failed.\n")
	sb.WriteString("These failures are not pre-existing. They are caused by the current state of the code and you must fix them before claiming completion again.\n\n")
	sb.WriteString("```\n")
	sb.WriteString(gate.FormatFailures(failures))
	sb.WriteString("\n```")
	return sb.String()
}

// GateFailures is injected when blocking gates failed without a completion
// claim.
func GateFailures(failures []gate.Result) string {
	var sb strings.Builder
	sb.WriteString("Blocking quality gates failed at the end of the previous iteration. ")
	sb.WriteString("These failures are not pre-existing; fix them first.\n\n")
	sb.WriteString("```\n")
	sb.WriteString(gate.FormatFailures(failures))
	sb.WriteString("\n```")
	return sb.String()
}

// NoGatesWarning is injected when no gate could be found at all.
func NoGatesWarning() string {
	return "No quality gates are declared in the task list and none could be discovered. " +
		"Add a `## Quality Gates` section with a ```gate block listing the build, lint and test commands."
}

// CorrectiveTask describes the task appended after a failed verification.
func CorrectiveTask(reasons []string) string {
	if len(reasons) == 0 {
		return "Fix completion verification failures"
	}
	return fmt.Sprintf("Fix completion verification failure: %s", strings.Join(reasons, "; "))
}

// VerificationFailed is injected alongside the corrective task.
func VerificationFailed(issues []string) string {
	var sb strings.Builder
	sb.WriteString("Completion verification FAILED after all gates passed. A corrective task was added to the task list.\n")
	sb.WriteString("These failures are not pre-existing; fix them.\n")
	for _, issue := range issues {
		sb.WriteString("\n")
		sb.WriteString(issue)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// ProbeIssues is injected when the preview probe found problems.
func ProbeIssues(issues []string) string {
	var sb strings.Builder
	sb.WriteString("The preview probe found problems with the running application:\n")
	for _, issue := range issues {
		_, _ = fmt.Fprintf(&sb, "- %s\n", issue)
	}
	return strings.TrimRight(sb.String(), "\n")
}
