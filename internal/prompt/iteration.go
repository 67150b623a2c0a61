// Package prompt builds the worker prompt for each loop iteration.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yarlson/ralph-gates/internal/memory"
	"github.com/yarlson/ralph-gates/internal/taskstore"
)

// Completion markers the worker may print when every task is done.
const (
	CompletionMarker     = "<promise>COMPLETE</promise>"
	CompletionJSONMarker = `{"marker":"complete"}`
)

// IterationContext contains everything the worker sees in one iteration.
type IterationContext struct {
	Iteration     int
	MaxIterations int

	// Task is the task selected for this iteration.
	Task *taskstore.Task

	// Document is the current task list.
	Document *taskstore.Document

	// TasksPath is where the worker edits the task list.
	TasksPath string

	// Gates are the blocking and informational gate command lines.
	Gates []string

	// PreviousSummary condenses the previous iteration's log.
	PreviousSummary string

	// PendingIssues carry over from the previous iteration only.
	PendingIssues []string

	// Learnings is the rendered learning context.
	Learnings string

	// SimilarFixes are stored fixes matching a currently failing gate.
	SimilarFixes []memory.Entry

	// Warnings are repeat-failure warnings from the gate runner.
	Warnings []string

	// ChangedFiles lists uncommitted files, when known.
	ChangedFiles []string
}

// SizeOptions bounds the variable parts of the prompt.
type SizeOptions struct {
	MaxPromptBytes    int
	MaxLearningsBytes int
	MaxIssueBytes     int
}

// DefaultSizeOptions returns the default bounds.
func DefaultSizeOptions() SizeOptions {
	return SizeOptions{
		MaxPromptBytes:    32000,
		MaxLearningsBytes: 6000,
		MaxIssueBytes:     12000,
	}
}

// Validate checks that all size options are non-negative.
func (o SizeOptions) Validate() error {
	if o.MaxPromptBytes < 0 {
		return errors.New("max prompt bytes cannot be negative")
	}
	if o.MaxLearningsBytes < 0 {
		return errors.New("max learnings bytes cannot be negative")
	}
	if o.MaxIssueBytes < 0 {
		return errors.New("max issue bytes cannot be negative")
	}
	return nil
}

// Builder builds iteration prompts.
type Builder struct {
	opts SizeOptions
}

// NewBuilder creates a new prompt builder with the given options.
// If opts is nil, default options are used.
func NewBuilder(opts *SizeOptions) *Builder {
	if opts == nil {
		defaultOpts := DefaultSizeOptions()
		opts = &defaultOpts
	}
	return &Builder{opts: *opts}
}

// Preamble is the fixed instruction block at the top of every prompt.
func (b *Builder) Preamble() string {
	return `You are a coding agent running inside an unattended build loop.

## Rules
1. Work on the single task named below. Do not start other tasks.
2. Run the quality gates yourself and fix every failure before claiming the task is done.
3. A failing gate is never "pre-existing", "flaky" or "environmental". Fix it.
4. Never skip, disable or delete tests, lint rules or gates to make them pass.
5. Keep the task list accurate: move the task to Completed only when its work is done and gates pass.
6. Do not commit; the loop inspects the working tree.

## Reporting
Print one marker per line. Prefer JSON lines:
{"marker":"learning","text":"..."}
{"marker":"pattern","text":"..."}
{"marker":"fixed","error":"...","fix":"..."}
{"marker":"blocker","text":"..."}
{"marker":"completed","task":"<task-id>"}
Plain lines also work: LEARNING: ..., PATTERN: ..., FIXED: <error> → <fix>, BLOCKER: ..., COMPLETED: <task-id>.

When every task in the list is completed and all gates pass, print ` + CompletionMarker + `.
`
}

// Build renders the full prompt for one iteration.
func (b *Builder) Build(ctx IterationContext) (string, error) {
	if ctx.Task == nil {
		return "", errors.New("task is required")
	}

	var sb strings.Builder
	sb.WriteString(b.Preamble())
	sb.WriteString("\n")

	if ctx.MaxIterations > 0 {
		_, _ = fmt.Fprintf(&sb, "## Iteration %d of %d\n\n", ctx.Iteration, ctx.MaxIterations)
	} else {
		_, _ = fmt.Fprintf(&sb, "## Iteration %d\n\n", ctx.Iteration)
	}

	_, _ = fmt.Fprintf(&sb, "## Task %s\n\n%s\n\n", ctx.Task.ID, ctx.Task.Description)

	if len(ctx.PendingIssues) > 0 {
		sb.WriteString("## Issues From The Previous Iteration\n\n")
		sb.WriteString("Resolve these before anything else:\n\n")
		for _, issue := range ctx.PendingIssues {
			sb.WriteString(truncateKeepTail(strings.TrimSpace(issue), b.opts.MaxIssueBytes))
			sb.WriteString("\n\n")
		}
	}

	if len(ctx.Warnings) > 0 {
		sb.WriteString("## Repeated Gate Failures\n\n")
		for _, w := range ctx.Warnings {
			_, _ = fmt.Fprintf(&sb, "- %s\n", w)
		}
		sb.WriteString("\n")
	}

	if len(ctx.SimilarFixes) > 0 {
		sb.WriteString("## Fixes That Worked For Similar Errors\n\n")
		for _, e := range ctx.SimilarFixes {
			if e.Error != "" {
				_, _ = fmt.Fprintf(&sb, "- %s → %s\n", e.Error, e.Fix)
				continue
			}
			_, _ = fmt.Fprintf(&sb, "- %s\n", e.Text)
		}
		sb.WriteString("\n")
	}

	if ctx.PreviousSummary != "" {
		_, _ = fmt.Fprintf(&sb, "## Previous Iteration\n\n%s\n\n", ctx.PreviousSummary)
	}

	if strings.TrimSpace(ctx.Learnings) != "" {
		sb.WriteString("## Learnings\n\n")
		sb.WriteString(truncateWithMarker(strings.TrimSpace(ctx.Learnings), b.opts.MaxLearningsBytes))
		sb.WriteString("\n\n")
	}

	if len(ctx.Gates) > 0 {
		sb.WriteString("## Quality Gates\n\n")
		for _, g := range ctx.Gates {
			_, _ = fmt.Fprintf(&sb, "- `%s`\n", g)
		}
		sb.WriteString("\n")
	}

	if ctx.Document != nil {
		sb.WriteString("## Task List\n\n")
		if ctx.TasksPath != "" {
			_, _ = fmt.Fprintf(&sb, "File: `%s`\n\n", ctx.TasksPath)
		}
		sb.WriteString(TaskList(ctx.Document))
		sb.WriteString("\n")
	}

	if len(ctx.ChangedFiles) > 0 {
		sb.WriteString("## Uncommitted Files\n\n")
		for _, f := range ctx.ChangedFiles {
			_, _ = fmt.Fprintf(&sb, "- `%s`\n", f)
		}
		sb.WriteString("\n")
	}

	return truncateWithMarker(sb.String(), b.opts.MaxPromptBytes), nil
}

// TaskList renders tasks as a checklist in document order.
func TaskList(doc *taskstore.Document) string {
	var sb strings.Builder
	for _, t := range doc.Tasks {
		box := " "
		if t.Status == taskstore.StatusCompleted {
			box = "x"
		}
		_, _ = fmt.Fprintf(&sb, "- [%s] %s: %s (%s)\n", box, t.ID, t.Description, t.Status)
	}
	return sb.String()
}

// truncateWithMarker truncates a string to maxBytes and adds a marker if truncated.
// If maxBytes is 0, no truncation is performed.
func truncateWithMarker(s string, maxBytes int) string {
	if maxBytes == 0 || len(s) <= maxBytes {
		return s
	}

	marker := "... [truncated]"
	truncateAt := max(maxBytes, 0)
	for truncateAt > 0 && !isRuneStart(s[truncateAt]) {
		truncateAt--
	}
	return s[:truncateAt] + marker
}

// truncateKeepTail shortens s to about maxBytes, keeping its first line and
// as much of its end as fits. Gate errors sit at the end of captured output.
// If maxBytes is 0, no truncation is performed.
func truncateKeepTail(s string, maxBytes int) string {
	if maxBytes == 0 || len(s) <= maxBytes {
		return s
	}

	const marker = "\n... [truncated] ...\n"
	head := s
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		head = s[:i]
	}
	if len(head)+len(marker) >= maxBytes {
		head = ""
	}

	start := len(s) - (maxBytes - len(head) - len(marker))
	start = max(start, len(head))
	for start < len(s) && !isRuneStart(s[start]) {
		start++
	}
	if i := strings.IndexByte(s[start:], '\n'); i >= 0 && start+i+1 < len(s) {
		start += i + 1
	}
	return head + marker + s[start:]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
