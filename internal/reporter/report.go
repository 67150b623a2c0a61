package reporter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yarlson/ralph-gates/internal/git"
	"github.com/yarlson/ralph-gates/internal/loop"
	"github.com/yarlson/ralph-gates/internal/taskstore"
	"github.com/yarlson/ralph-gates/internal/verifier"
)

// TaskSummary contains summary information about a task.
type TaskSummary struct {
	ID          string
	Description string
}

// Report is the end-of-run summary.
type Report struct {
	Outcome  loop.RunLoopOutcome
	Message  string
	ExitCode int

	Iterations       int
	Rejected         int
	CompletedTasks   []TaskSummary
	OpenTasks        []TaskSummary
	BlockedTasks     []TaskSummary
	Verification     *verifier.Result
	Duration         time.Duration
	DiffStat         string
	LearningsStored  int
	LearningsRefused int
}

// ReportGenerator generates end-of-run reports.
type ReportGenerator struct {
	tasks taskstore.Store
	git   git.Manager
}

// NewReportGenerator creates a new report generator. gitManager may be nil.
func NewReportGenerator(tasks taskstore.Store, gitManager git.Manager) *ReportGenerator {
	return &ReportGenerator{tasks: tasks, git: gitManager}
}

// GenerateReport summarizes a finished run.
func (g *ReportGenerator) GenerateReport(ctx context.Context, result loop.RunResult) (*Report, error) {
	report := &Report{
		Outcome:      result.Outcome,
		Message:      result.Message,
		ExitCode:     result.Outcome.ExitCode(),
		Iterations:   result.IterationsRun,
		Verification: result.Verification,
		Duration:     result.ElapsedTime,
	}
	for _, rec := range result.Records {
		if rec.CompletionRejected {
			report.Rejected++
		}
		report.LearningsStored += rec.Learnings
		report.LearningsRefused += rec.RejectedLearnings
	}

	doc, err := g.tasks.Load()
	if err != nil {
		return report, fmt.Errorf("failed to load task list: %w", err)
	}
	for _, t := range doc.Tasks {
		s := TaskSummary{ID: t.ID, Description: t.Description}
		switch t.Status {
		case taskstore.StatusCompleted:
			report.CompletedTasks = append(report.CompletedTasks, s)
		case taskstore.StatusBlocked:
			report.BlockedTasks = append(report.BlockedTasks, s)
		default:
			report.OpenTasks = append(report.OpenTasks, s)
		}
	}

	if g.git != nil {
		if stat, err := g.git.GetDiffStat(ctx); err == nil {
			report.DiffStat = stat
		}
	}

	return report, nil
}

// FormatReport formats a report for CLI display.
func FormatReport(report *Report, colorize bool) string {
	p := newPalette(colorize)
	var sb strings.Builder

	sb.WriteString(p.title.Sprint("# Run Report") + "\n\n")

	outcome := string(report.Outcome)
	switch report.ExitCode {
	case loop.ExitCompleted:
		outcome = p.good.Sprint(outcome)
	case loop.ExitShutdown:
		outcome = p.warn.Sprint(outcome)
	default:
		outcome = p.bad.Sprint(outcome)
	}
	_, _ = fmt.Fprintf(&sb, "Outcome: %s (exit %d)\n", outcome, report.ExitCode)
	if report.Message != "" {
		_, _ = fmt.Fprintf(&sb, "%s\n", report.Message)
	}
	sb.WriteString("\n")

	sb.WriteString("## Summary\n\n")
	_, _ = fmt.Fprintf(&sb, "- Iterations: %d\n", report.Iterations)
	if report.Rejected > 0 {
		_, _ = fmt.Fprintf(&sb, "- Rejected completion claims: %d\n", report.Rejected)
	}
	_, _ = fmt.Fprintf(&sb, "- Learnings stored: %d", report.LearningsStored)
	if report.LearningsRefused > 0 {
		_, _ = fmt.Fprintf(&sb, " (%d refused)", report.LearningsRefused)
	}
	sb.WriteString("\n")
	if report.Duration > 0 {
		_, _ = fmt.Fprintf(&sb, "- Duration: %s\n", formatDuration(report.Duration))
	}
	sb.WriteString("\n")

	if v := report.Verification; v != nil {
		sb.WriteString("## Verification\n\n")
		for _, st := range v.Stages {
			mark := p.good.Sprint("pass")
			switch {
			case st.Skipped:
				mark = p.subtle.Sprint("skipped")
			case !st.Passed:
				mark = p.bad.Sprint("fail")
			}
			_, _ = fmt.Fprintf(&sb, "- %s: %s\n", st.Stage, mark)
		}
		for _, r := range v.Reasons {
			_, _ = fmt.Fprintf(&sb, "  %s\n", p.bad.Sprint(r))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Completed Tasks\n\n")
	if len(report.CompletedTasks) == 0 {
		sb.WriteString("No completed tasks.\n")
	}
	for _, t := range report.CompletedTasks {
		_, _ = fmt.Fprintf(&sb, "- [x] %s: %s\n", t.ID, t.Description)
	}
	sb.WriteString("\n")

	if len(report.OpenTasks) > 0 {
		sb.WriteString("## Open Tasks\n\n")
		for _, t := range report.OpenTasks {
			_, _ = fmt.Fprintf(&sb, "- [ ] %s: %s\n", t.ID, t.Description)
		}
		sb.WriteString("\n")
	}

	if len(report.BlockedTasks) > 0 {
		sb.WriteString(p.bad.Sprint("## Blocked Tasks") + "\n\n")
		for _, t := range report.BlockedTasks {
			_, _ = fmt.Fprintf(&sb, "- [ ] %s: %s\n", t.ID, t.Description)
		}
		sb.WriteString("\n")
	}

	if report.DiffStat != "" {
		sb.WriteString("## Uncommitted Changes\n\n")
		sb.WriteString(report.DiffStat + "\n")
	}

	return sb.String()
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0f seconds", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1f minutes", d.Minutes())
	}
	return fmt.Sprintf("%.1f hours", d.Hours())
}
