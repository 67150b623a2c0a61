// Package reporter renders the operator-facing status and end-of-run report.
package reporter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yarlson/ralph-gates/internal/gate"
	"github.com/yarlson/ralph-gates/internal/loop"
	"github.com/yarlson/ralph-gates/internal/memory"
	"github.com/yarlson/ralph-gates/internal/taskstore"
)

// LastIterationInfo contains summary information about the last iteration.
type LastIterationInfo struct {
	Iteration   int
	IterationID string
	TaskID      string
	Outcome     loop.IterationOutcome
	GatesPassed bool
	Claimed     bool
	Rejected    bool
	EndTime     time.Time
	LogPath     string
}

// RepeatedGate is a gate failing with the same error at or above the
// warning threshold.
type RepeatedGate struct {
	Gate  string
	Count int
}

// Status contains all status information for the project.
type Status struct {
	Header        taskstore.Header
	Title         string
	Counts        map[taskstore.TaskStatus]int
	Total         int
	NextTask      *taskstore.Task
	LastIteration *LastIterationInfo
	RepeatedGates []RepeatedGate
	Learnings     map[memory.Category]int
	Paused        bool
}

// LearningCounter reports learning counts per category.
type LearningCounter interface {
	Counts() (map[memory.Category]int, error)
}

// StatusOptions locates the files the status reads.
type StatusOptions struct {
	RecordsPath   string
	GateStatePath string
	WarnAfter     int
	Paused        bool
}

// StatusGenerator generates status information.
type StatusGenerator struct {
	tasks     taskstore.Store
	learnings LearningCounter
	opts      StatusOptions
}

// NewStatusGenerator creates a new status generator.
func NewStatusGenerator(tasks taskstore.Store, learnings LearningCounter, opts StatusOptions) *StatusGenerator {
	if opts.WarnAfter <= 0 {
		opts.WarnAfter = gate.DefaultWarnAfter
	}
	return &StatusGenerator{tasks: tasks, learnings: learnings, opts: opts}
}

// GetStatus collects the current status.
func (g *StatusGenerator) GetStatus() (*Status, error) {
	doc, err := g.tasks.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load task list: %w", err)
	}

	status := &Status{
		Header:   doc.Header,
		Title:    doc.Title,
		Counts:   doc.Counts(),
		Total:    len(doc.Tasks),
		NextTask: doc.Next(),
		Paused:   g.opts.Paused,
	}

	if g.opts.RecordsPath != "" {
		if rec, err := loop.LastRecord(g.opts.RecordsPath); err == nil && rec != nil {
			status.LastIteration = &LastIterationInfo{
				Iteration:   rec.Iteration,
				IterationID: rec.IterationID,
				TaskID:      rec.TaskID,
				Outcome:     rec.Outcome,
				GatesPassed: rec.GatesPassed(),
				Claimed:     rec.CompletionClaimed,
				Rejected:    rec.CompletionRejected,
				EndTime:     rec.EndTime,
				LogPath:     rec.LogPath,
			}
		}
	}

	if g.opts.GateStatePath != "" {
		tracker := gate.NewTracker(0)
		if err := tracker.Load(g.opts.GateStatePath); err == nil {
			for _, name := range tracker.AtLeast(g.opts.WarnAfter) {
				status.RepeatedGates = append(status.RepeatedGates, RepeatedGate{Gate: name, Count: tracker.Count(name)})
			}
		}
	}

	if g.learnings != nil {
		if counts, err := g.learnings.Counts(); err == nil {
			status.Learnings = counts
		}
	}

	return status, nil
}

// FormatStatus formats a status for CLI display.
func FormatStatus(status *Status, colorize bool) string {
	p := newPalette(colorize)
	var sb strings.Builder

	title := status.Title
	if title == "" {
		title = "Status"
	}
	sb.WriteString(p.title.Sprintf("## %s", title) + "\n\n")

	state := string(status.Header.Status)
	if state == "" {
		state = string(taskstore.RunStatusIdle)
	}
	_, _ = fmt.Fprintf(&sb, "State: %s (iteration %d)\n", colorState(p, status.Header.Status, state), status.Header.Iteration)
	if status.Paused {
		sb.WriteString(p.warn.Sprint("Paused: run `ralph resume` to continue") + "\n")
	}
	sb.WriteString("\n")

	completed := status.Counts[taskstore.StatusCompleted]
	percent := 0
	if status.Total > 0 {
		percent = completed * 100 / status.Total
	}
	sb.WriteString("### Tasks\n")
	_, _ = fmt.Fprintf(&sb, "%s %d/%d completed\n", ProgressBar(percent, 20), completed, status.Total)
	_, _ = fmt.Fprintf(&sb, "In progress: %d\n", status.Counts[taskstore.StatusInProgress])
	_, _ = fmt.Fprintf(&sb, "Pending: %d\n", status.Counts[taskstore.StatusPending])
	blocked := fmt.Sprintf("Blocked: %d", status.Counts[taskstore.StatusBlocked])
	if status.Counts[taskstore.StatusBlocked] > 0 {
		blocked = p.bad.Sprint(blocked)
	}
	sb.WriteString(blocked + "\n\n")

	sb.WriteString("### Next Task\n")
	if status.NextTask != nil {
		_, _ = fmt.Fprintf(&sb, "Next Task: %s (%s)\n\n", status.NextTask.ID, status.NextTask.Description)
	} else {
		sb.WriteString("Next Task: none\n\n")
	}

	if li := status.LastIteration; li != nil {
		sb.WriteString("### Last Iteration\n")
		_, _ = fmt.Fprintf(&sb, "Iteration: %d (%s)\n", li.Iteration, li.IterationID)
		if li.TaskID != "" {
			_, _ = fmt.Fprintf(&sb, "Task: %s\n", li.TaskID)
		}
		_, _ = fmt.Fprintf(&sb, "Outcome: %s\n", li.Outcome)
		gates := p.good.Sprint("passed")
		if !li.GatesPassed {
			gates = p.bad.Sprint("failed")
		}
		_, _ = fmt.Fprintf(&sb, "Gates: %s\n", gates)
		if li.Rejected {
			sb.WriteString(p.warn.Sprint("Completion claim rejected") + "\n")
		}
		if !li.EndTime.IsZero() {
			_, _ = fmt.Fprintf(&sb, "Finished: %s\n", li.EndTime.Format(time.RFC3339))
		}
		if li.LogPath != "" {
			_, _ = fmt.Fprintf(&sb, "Log: %s\n", p.subtle.Sprint(li.LogPath))
		}
		sb.WriteString("\n")
	}

	if len(status.RepeatedGates) > 0 {
		sb.WriteString("### Repeated Gate Failures\n")
		for _, rg := range status.RepeatedGates {
			sb.WriteString(p.warn.Sprintf("- %s: %d identical failures in a row", rg.Gate, rg.Count) + "\n")
		}
		sb.WriteString("\n")
	}

	if len(status.Learnings) > 0 {
		sb.WriteString("### Learnings\n")
		cats := make([]string, 0, len(status.Learnings))
		for c := range status.Learnings {
			cats = append(cats, string(c))
		}
		sort.Strings(cats)
		for _, c := range cats {
			_, _ = fmt.Fprintf(&sb, "%s: %d\n", c, status.Learnings[memory.Category(c)])
		}
	}

	return sb.String()
}

func colorState(p palette, s taskstore.RunStatus, text string) string {
	switch s {
	case taskstore.RunStatusCompleted:
		return p.good.Sprint(text)
	case taskstore.RunStatusBlocked, taskstore.RunStatusAborted, taskstore.RunStatusMaxIterations:
		return p.bad.Sprint(text)
	case taskstore.RunStatusRunning, taskstore.RunStatusShutdown:
		return p.warn.Sprint(text)
	default:
		return text
	}
}
