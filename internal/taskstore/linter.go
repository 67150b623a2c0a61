package taskstore

import (
	"fmt"
	"strings"
)

// LintError represents a validation error for a specific task.
type LintError struct {
	TaskID string
	Error  string
}

// String returns a formatted string representation of the lint error.
func (e LintError) String() string {
	if e.TaskID == "" {
		return e.Error
	}
	return fmt.Sprintf("%s: %s", e.TaskID, e.Error)
}

// LintWarning represents a non-fatal validation warning.
type LintWarning struct {
	TaskID  string
	Warning string
}

// String returns a formatted string representation of the lint warning.
func (w LintWarning) String() string {
	if w.TaskID == "" {
		return w.Warning
	}
	return fmt.Sprintf("%s: %s", w.TaskID, w.Warning)
}

// LintResult contains the results of linting a document.
type LintResult struct {
	Valid    bool
	Errors   []LintError
	Warnings []LintWarning
}

// Error returns an error if the lint result is invalid, or nil if valid.
func (r *LintResult) Error() error {
	if r.Valid || len(r.Errors) == 0 {
		return nil
	}

	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.String())
	}
	return &ValidationError{Reason: fmt.Sprintf("%d errors:\n%s", len(r.Errors), strings.Join(msgs, "\n"))}
}

// Lint validates a document before the loop starts working on it.
// It checks for:
// - Individual task validity
// - Duplicate task IDs
// - More than one task in progress
// - Unknown header status
func Lint(doc *Document) *LintResult {
	result := &LintResult{
		Valid:    true,
		Errors:   []LintError{},
		Warnings: []LintWarning{},
	}

	addErr := func(id, msg string) {
		result.Valid = false
		result.Errors = append(result.Errors, LintError{TaskID: id, Error: msg})
	}

	if doc.Header.Status != "" && !doc.Header.Status.IsValid() {
		addErr("", fmt.Sprintf("header status %q is not recognized", doc.Header.Status))
	}
	if doc.Header.Iteration < 0 {
		addErr("", "header iteration cannot be negative")
	}

	seen := make(map[string]bool, len(doc.Tasks))
	var inProgress []string
	for _, t := range doc.Tasks {
		if err := t.Validate(); err != nil {
			addErr(t.ID, err.Error())
		}
		if seen[t.ID] {
			addErr(t.ID, "duplicate task id")
		}
		seen[t.ID] = true
		if t.Status == StatusInProgress {
			inProgress = append(inProgress, t.ID)
		}
	}
	if len(inProgress) > 1 {
		addErr("", fmt.Sprintf("more than one task in progress: %s", strings.Join(inProgress, ", ")))
	}

	if len(doc.Tasks) == 0 {
		result.Warnings = append(result.Warnings, LintWarning{Warning: "task list has no tasks"})
	}
	if len(doc.GateDecls()) == 0 {
		result.Warnings = append(result.Warnings, LintWarning{Warning: "no quality gates declared; fallback discovery will be used"})
	}

	return result
}
