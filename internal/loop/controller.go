package loop

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yarlson/ralph-gates/internal/agent"
	"github.com/yarlson/ralph-gates/internal/gate"
	"github.com/yarlson/ralph-gates/internal/git"
	"github.com/yarlson/ralph-gates/internal/memory"
	"github.com/yarlson/ralph-gates/internal/metrics"
	"github.com/yarlson/ralph-gates/internal/prompt"
	"github.com/yarlson/ralph-gates/internal/taskstore"
	"github.com/yarlson/ralph-gates/internal/verifier"
)

// RunLoopOutcome represents the final outcome of a loop run.
type RunLoopOutcome string

const (
	// RunOutcomeCompleted means all tasks were completed and verified.
	RunOutcomeCompleted RunLoopOutcome = "completed"
	// RunOutcomeBlocked means no task can make progress without a human.
	RunOutcomeBlocked RunLoopOutcome = "blocked"
	// RunOutcomeMaxIterations means the iteration budget was used up.
	RunOutcomeMaxIterations RunLoopOutcome = "max_iterations"
	// RunOutcomeShutdown means shutdown was requested; the run can resume.
	RunOutcomeShutdown RunLoopOutcome = "shutdown"
	// RunOutcomeAborted means the worker failed permanently too often.
	RunOutcomeAborted RunLoopOutcome = "aborted"
	// RunOutcomeError indicates a fatal error occurred.
	RunOutcomeError RunLoopOutcome = "error"
)

// validRunOutcomes is the set of valid run outcomes.
var validRunOutcomes = map[RunLoopOutcome]bool{
	RunOutcomeCompleted:     true,
	RunOutcomeBlocked:       true,
	RunOutcomeMaxIterations: true,
	RunOutcomeShutdown:      true,
	RunOutcomeAborted:       true,
	RunOutcomeError:         true,
}

// IsValid returns true if the outcome is a valid value.
func (o RunLoopOutcome) IsValid() bool {
	return validRunOutcomes[o]
}

// Exit codes.
const (
	ExitCompleted = 0
	ExitFailure   = 1
	ExitShutdown  = 130
)

// ExitCode maps the outcome to the process exit code.
func (o RunLoopOutcome) ExitCode() int {
	switch o {
	case RunOutcomeCompleted:
		return ExitCompleted
	case RunOutcomeShutdown:
		return ExitShutdown
	default:
		return ExitFailure
	}
}

// RunStatus maps the outcome to the header status.
func (o RunLoopOutcome) RunStatus() taskstore.RunStatus {
	switch o {
	case RunOutcomeCompleted:
		return taskstore.RunStatusCompleted
	case RunOutcomeBlocked:
		return taskstore.RunStatusBlocked
	case RunOutcomeMaxIterations:
		return taskstore.RunStatusMaxIterations
	case RunOutcomeShutdown:
		return taskstore.RunStatusShutdown
	default:
		return taskstore.RunStatusAborted
	}
}

// RunResult contains the results from a loop run.
type RunResult struct {
	Outcome RunLoopOutcome

	// Message is a human-readable description of the outcome.
	Message string

	// IterationsRun is the number of iterations started in this run.
	IterationsRun int

	Records      []*IterationRecord
	Verification *verifier.Result
	ElapsedTime  time.Duration
}

// Invoker runs the worker.
type Invoker interface {
	Invoke(ctx context.Context, req agent.Request) (*agent.Result, error)
}

// GateRunner runs quality gates and owns the repeat-failure tracker.
type GateRunner interface {
	Run(ctx context.Context, cmds []gate.Command) gate.Report
	Tracker() *gate.Tracker
}

// Verifier runs the completion verifier.
type Verifier interface {
	Verify(ctx context.Context, plan verifier.Plan) verifier.Result
}

// Prober checks a running preview of the application.
type Prober interface {
	Probe(ctx context.Context, url string) []string
}

// LearningStore persists and renders learnings.
type LearningStore interface {
	Append(e memory.Entry) (memory.Entry, error)
	AppendAll(entries []memory.Entry, iteration int) ([]memory.Entry, []error)
	WriteContext(limit int) (string, error)
	FindSimilarFixes(errText string, limit int) ([]memory.Entry, error)
}

var (
	_ Invoker       = (*agent.Invoker)(nil)
	_ GateRunner    = (*gate.Runner)(nil)
	_ Verifier      = (*verifier.Verifier)(nil)
	_ Prober        = (*gate.Prober)(nil)
	_ LearningStore = (*memory.Store)(nil)
)

// Paths locates the files the controller writes.
type Paths struct {
	LogsDir       string
	RecordsPath   string
	StatePath     string
	GateStatePath string
}

// Config tunes the controller.
type Config struct {
	Limits         Limits
	IterationDelay time.Duration
	// AbortAfter stops the run when a gate fails this many times in a row
	// with the same error (0 = never).
	AbortAfter  int
	RenderLimit int
	// Verification fills stages the task list does not declare.
	Verification verifier.Plan
	// PreviewURL is probed when the task list declares none.
	PreviewURL string
}

// ControllerDeps contains the dependencies for the Controller.
type ControllerDeps struct {
	Tasks    taskstore.Store
	Invoker  Invoker
	Gates    GateRunner
	Verifier Verifier
	Memory   LearningStore
	Prober   Prober
	Git      git.Manager
	Prompt   *prompt.Builder
	Metrics  *metrics.Metrics
	Logger   *zap.Logger

	Paths  Paths
	Config Config

	// ShutdownRequested is polled with the context at every checkpoint.
	ShutdownRequested func() bool

	// OnIteration is called after every finished iteration.
	OnIteration func(rec *IterationRecord)
}

// Controller orchestrates the main iteration loop.
type Controller struct {
	tasks       taskstore.Store
	invoker     Invoker
	gates       GateRunner
	verifier    Verifier
	memory      LearningStore
	prober      Prober
	git         git.Manager
	prompt      *prompt.Builder
	metrics     *metrics.Metrics
	logger      *zap.Logger
	paths       Paths
	cfg         Config
	shutdown    func() bool
	onIteration func(rec *IterationRecord)
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewController creates a new loop controller with the given dependencies.
func NewController(deps ControllerDeps) *Controller {
	c := &Controller{
		tasks:       deps.Tasks,
		invoker:     deps.Invoker,
		gates:       deps.Gates,
		verifier:    deps.Verifier,
		memory:      deps.Memory,
		prober:      deps.Prober,
		git:         deps.Git,
		prompt:      deps.Prompt,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		paths:       deps.Paths,
		cfg:         deps.Config,
		shutdown:    deps.ShutdownRequested,
		onIteration: deps.OnIteration,
		sleep:       wait,
	}
	if c.prompt == nil {
		c.prompt = prompt.NewBuilder(nil)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.shutdown == nil {
		c.shutdown = func() bool { return false }
	}
	if c.cfg.RenderLimit <= 0 {
		c.cfg.RenderLimit = memory.DefaultRenderLimit
	}
	return c
}

// stopped checks every shutdown source.
func (c *Controller) stopped(ctx context.Context) bool {
	return ctx.Err() != nil || c.shutdown()
}

// Run executes iterations until the work is verified complete or a terminal
// condition is reached.
func (c *Controller) Run(ctx context.Context) RunResult {
	start := time.Now()
	result := RunResult{}

	finish := func(outcome RunLoopOutcome, msg string, st *State) RunResult {
		result.Outcome = outcome
		result.Message = msg
		result.ElapsedTime = time.Since(start)
		if st != nil {
			st.Shutdown = outcome == RunOutcomeShutdown
			if err := SaveState(c.paths.StatePath, st); err != nil {
				c.logger.Error("failed to save loop state", zap.Error(err))
			}
		}
		if err := c.tasks.Update(func(d *taskstore.Document) error {
			d.Header.Status = outcome.RunStatus()
			return nil
		}); err != nil {
			c.logger.Error("failed to record run status", zap.Error(err))
		}
		c.logger.Info("loop finished",
			zap.String("outcome", string(outcome)),
			zap.String("message", msg),
			zap.Int("iterations", result.IterationsRun),
			zap.Duration("elapsed", result.ElapsedTime),
		)
		return result
	}

	st, err := LoadState(c.paths.StatePath)
	if err != nil {
		return finish(RunOutcomeError, err.Error(), nil)
	}
	st.MaxIterations = c.cfg.Limits.MaxIterations
	st.Shutdown = false
	// An abort is resumable: each run gets a fresh failure budget.
	st.ConsecutiveFailures = 0

	if err := c.gates.Tracker().Load(c.paths.GateStatePath); err != nil {
		c.logger.Warn("ignoring unreadable gate state", zap.Error(err))
	}

	doc, err := c.tasks.Load()
	if err != nil {
		return finish(RunOutcomeError, fmt.Sprintf("failed to load task list: %v", err), st)
	}
	if lint := taskstore.Lint(doc); !lint.Valid {
		return finish(RunOutcomeError, lint.Error().Error(), st)
	}

	for {
		if c.stopped(ctx) {
			return finish(RunOutcomeShutdown, "shutdown requested; run again to resume", st)
		}

		if status := c.cfg.Limits.Check(result.IterationsRun, st); !status.CanContinue {
			if status.ReasonCode == LimitReasonConsecutiveFailures {
				return finish(RunOutcomeAborted, status.Reason+"; fix the worker setup and run again to resume", st)
			}
			return finish(RunOutcomeMaxIterations, status.Reason, st)
		}

		doc, err := c.tasks.Load()
		if err != nil {
			return finish(RunOutcomeError, fmt.Sprintf("failed to load task list: %v", err), st)
		}

		var (
			rec  *IterationRecord
			stop *stopReason
		)
		if !doc.HasOpen() {
			counts := doc.Counts()
			if counts[taskstore.StatusBlocked] > 0 {
				return finish(RunOutcomeBlocked, fmt.Sprintf("no pending tasks; %d blocked task(s) need attention", counts[taskstore.StatusBlocked]), st)
			}
			if counts[taskstore.StatusCompleted] == 0 {
				return finish(RunOutcomeBlocked, "task list has no tasks", st)
			}
			rec, stop = c.verifyOnly(ctx, st, doc)
		} else {
			rec, stop = c.runIteration(ctx, st, doc)
		}
		result.IterationsRun++

		if rec != nil {
			result.Records = append(result.Records, rec)
			result.Verification = rec.Verification
			c.finishRecord(rec)
		}
		if err := SaveState(c.paths.StatePath, st); err != nil {
			c.logger.Error("failed to save loop state", zap.Error(err))
		}
		if stop != nil {
			return finish(stop.outcome, stop.message, st)
		}

		if c.stopped(ctx) {
			continue
		}
		if err := c.sleep(ctx, c.cfg.IterationDelay); err != nil {
			continue
		}
	}
}

type stopReason struct {
	outcome RunLoopOutcome
	message string
}

func (c *Controller) finishRecord(rec *IterationRecord) {
	if err := AppendRecord(c.paths.RecordsPath, rec); err != nil {
		c.logger.Error("failed to append iteration record", zap.Error(err))
	}
	c.metrics.Iteration(string(rec.Outcome), rec.Duration())
	if c.onIteration != nil {
		c.onIteration(rec)
	}
}

// startIteration bumps the counters and records them in the task list.
func (c *Controller) startIteration(st *State, taskID string) (*IterationRecord, error) {
	st.Iteration++
	err := c.tasks.Update(func(d *taskstore.Document) error {
		if taskID != "" {
			if err := d.SetStatus(taskID, taskstore.StatusInProgress); err != nil {
				return err
			}
		}
		d.Header.Iteration = st.Iteration
		d.Header.Status = taskstore.RunStatusRunning
		return nil
	})
	if err != nil {
		return nil, err
	}

	rec := NewIterationRecord(st.Iteration, taskID)
	rec.LogPath = filepath.Join(c.paths.LogsDir, fmt.Sprintf("iteration-%04d.log", st.Iteration))
	return rec, nil
}

func (c *Controller) runIteration(ctx context.Context, st *State, doc *taskstore.Document) (*IterationRecord, *stopReason) {
	task := doc.Next()
	rec, err := c.startIteration(st, task.ID)
	if err != nil {
		return nil, &stopReason{RunOutcomeError, fmt.Sprintf("failed to start task %s: %v", task.ID, err)}
	}
	logger := c.logger.With(zap.Int("iteration", st.Iteration), zap.String("task", task.ID))
	logger.Info("iteration started")

	before, err := c.tasks.Load()
	if err != nil {
		return nil, &stopReason{RunOutcomeError, fmt.Sprintf("failed to load task list: %v", err)}
	}
	if c.git != nil {
		if commit, err := c.git.GetCurrentCommit(ctx); err == nil {
			rec.BaseCommit = commit
		}
	}

	promptText, err := c.buildPrompt(ctx, st, before, task)
	if err != nil {
		return nil, &stopReason{RunOutcomeError, fmt.Sprintf("failed to build prompt: %v", err)}
	}

	res, err := c.invoker.Invoke(ctx, agent.Request{Prompt: promptText, LogPath: rec.LogPath})
	if err != nil {
		return c.handleInvokeError(st, rec, err, logger)
	}
	st.ConsecutiveFailures = 0
	rec.Attempts = res.Attempts

	after, parseErr := c.tasks.Load()
	if parseErr != nil {
		logger.Warn("worker left an unparseable task list", zap.Error(parseErr))
		after = nil
	}
	if c.git != nil {
		if files, err := c.git.GetChangedFiles(ctx); err == nil {
			rec.FilesChanged = files
		}
	}

	gateDoc := before
	if after != nil {
		gateDoc = after
	}
	report := c.gates.Run(ctx, gate.FromDecls(gateDoc.GateDecls()))
	if report.Interrupted || ctx.Err() != nil {
		return c.interruptedGates(rec, before, after, logger)
	}
	if err := c.gates.Tracker().Save(c.paths.GateStatePath); err != nil {
		logger.Warn("failed to save gate state", zap.Error(err))
	}
	rec.Gates = report.Results
	rec.NoGates = report.NoGates
	rec.Warnings = report.Warnings
	gatesPassed := report.Passed() && !report.NoGates

	if url := c.previewURL(gateDoc); url != "" && c.prober != nil {
		rec.Probe = c.prober.Probe(ctx, url)
	}

	appendLog(rec.LogPath, memory.ResultFooter(gatesPassed && len(rec.Probe) == 0))

	entries := memory.Extract(res.Output)
	stored, rejected := c.memory.AppendAll(entries, st.Iteration)
	rec.Learnings = len(stored)
	rec.RejectedLearnings = len(rejected)
	for _, err := range rejected {
		logger.Warn("learning not stored", zap.Error(err))
	}
	failures := report.BlockingFailures()
	for _, f := range failures {
		if _, err := c.memory.Append(memory.Entry{
			Category:  memory.CategoryIterationFailure,
			Text:      fmt.Sprintf("`%s` failed: %s", f.Command, firstLine(f.Output)),
			TaskID:    task.ID,
			Iteration: st.Iteration,
		}); err != nil {
			logger.Warn("failed to record gate failure", zap.Error(err))
		}
	}

	final, notes := reconcile(before, after, gatesPassed, completedTaskIDs(entries))
	rec.TaskNotes = notes
	if err := c.tasks.Save(final); err != nil {
		return rec, &stopReason{RunOutcomeError, fmt.Sprintf("failed to save task list: %v", err)}
	}

	st.LastFailures = failures
	st.LastLogPath = rec.LogPath

	rec.CompletionClaimed = HasCompletionMarker(res.Output)
	switch {
	case rec.CompletionClaimed && len(failures) > 0:
		rec.CompletionRejected = true
		st.AddIssue(prompt.CompletionRejection(failures))
		logger.Warn("completion claim rejected: blocking gates failed", zap.Int("failures", len(failures)))
	case rec.CompletionClaimed && len(rec.Probe) > 0:
		rec.CompletionRejected = true
		st.AddIssue("Completion was REJECTED: the running application is broken.\n" + prompt.ProbeIssues(rec.Probe))
	case rec.CompletionClaimed && final.HasOpen():
		rec.CompletionRejected = true
		st.AddIssue(fmt.Sprintf("Completion was REJECTED: tasks are still open: %s. Finish them or move them to Completed once done.", openTaskIDs(final)))
	case rec.CompletionClaimed && report.NoGates:
		rec.CompletionRejected = true
		st.AddIssue(prompt.NoGatesWarning())
	case rec.CompletionClaimed:
		rec.Complete(OutcomeSuccess)
		if stop := c.verify(ctx, st, final, rec, logger); stop != nil {
			return rec, stop
		}
		return rec, nil
	default:
		if len(failures) > 0 {
			st.AddIssue(prompt.GateFailures(failures))
		}
		if len(rec.Probe) > 0 {
			st.AddIssue(prompt.ProbeIssues(rec.Probe))
		}
		if report.NoGates {
			st.AddIssue(prompt.NoGatesWarning())
		}
	}
	for _, n := range notes {
		st.AddIssue("Task list: " + n)
	}

	rec.Complete(OutcomeSuccess)

	if stop := c.checkRepeatAbort(task.ID, logger); stop != nil {
		return rec, stop
	}
	return rec, nil
}

// verifyOnly runs the completion verifier without invoking the worker.
func (c *Controller) verifyOnly(ctx context.Context, st *State, doc *taskstore.Document) (*IterationRecord, *stopReason) {
	rec, err := c.startIteration(st, "")
	if err != nil {
		return nil, &stopReason{RunOutcomeError, fmt.Sprintf("failed to start verification: %v", err)}
	}
	logger := c.logger.With(zap.Int("iteration", st.Iteration))
	logger.Info("all tasks completed; running completion verifier")

	rec.Complete(OutcomeSuccess)
	return rec, c.verify(ctx, st, doc, rec, logger)
}

// verify runs the completion verifier. On failure it appends a corrective
// task and queues the reasons for the next iteration.
func (c *Controller) verify(ctx context.Context, st *State, doc *taskstore.Document, rec *IterationRecord, logger *zap.Logger) *stopReason {
	plan := verifier.PlanFromDecl(doc.Header.Verification).Merge(c.cfg.Verification)
	res := c.verifier.Verify(ctx, plan)
	rec.Verification = &res
	rec.EndTime = time.Now()

	if ctx.Err() != nil {
		return nil
	}
	if res.Passed {
		logger.Info("completion verified")
		return &stopReason{RunOutcomeCompleted, "all tasks completed and verified"}
	}

	var added string
	err := c.tasks.Update(func(d *taskstore.Document) error {
		added = d.AddTask(prompt.CorrectiveTask(res.Reasons)).ID
		return nil
	})
	if err != nil {
		return &stopReason{RunOutcomeError, fmt.Sprintf("failed to add corrective task: %v", err)}
	}
	rec.TaskNotes = append(rec.TaskNotes, fmt.Sprintf("verification failed; corrective task %s added", added))
	st.AddIssue(prompt.VerificationFailed(res.Issues()))
	logger.Warn("completion verification failed",
		zap.Strings("reasons", res.Reasons),
		zap.String("corrective_task", added),
	)
	return nil
}

func (c *Controller) handleInvokeError(st *State, rec *IterationRecord, err error, logger *zap.Logger) (*IterationRecord, *stopReason) {
	rec.Error = err.Error()

	if errors.Is(err, agent.ErrShutdown) {
		rec.Complete(OutcomeTransientFailure)
		logger.Info("iteration interrupted by shutdown")
		return rec, &stopReason{RunOutcomeShutdown, "shutdown requested during iteration; run again to resume"}
	}

	rec.Complete(OutcomePermanentFailure)
	st.ConsecutiveFailures++
	st.LastLogPath = rec.LogPath
	logger.Error("worker failed permanently",
		zap.Error(err),
		zap.Int("consecutive_failures", st.ConsecutiveFailures),
	)

	if _, aerr := c.memory.Append(memory.Entry{
		Category:  memory.CategoryIterationFailure,
		Text:      "worker failed: " + firstLine(err.Error()),
		TaskID:    rec.TaskID,
		Iteration: rec.Iteration,
	}); aerr != nil {
		logger.Warn("failed to record worker failure", zap.Error(aerr))
	}

	if !errors.Is(err, agent.ErrPermanentFailure) {
		return rec, &stopReason{RunOutcomeError, fmt.Sprintf("worker invocation failed: %v", err)}
	}
	return rec, nil
}

// interruptedGates ends an iteration whose gates were cut short by shutdown.
// Nothing is learned from the partial run: the tracker, learnings and pending
// issues stay as they were, and worker completions are not accepted.
func (c *Controller) interruptedGates(rec *IterationRecord, before, after *taskstore.Document, logger *zap.Logger) (*IterationRecord, *stopReason) {
	rec.Gates = nil
	rec.Error = "shutdown requested while quality gates ran"
	final, notes := reconcile(before, after, false, nil)
	rec.TaskNotes = notes
	if err := c.tasks.Save(final); err != nil {
		logger.Warn("failed to save task list", zap.Error(err))
	}
	rec.Complete(OutcomeTransientFailure)
	logger.Info("iteration interrupted by shutdown during quality gates")
	return rec, &stopReason{RunOutcomeShutdown, "shutdown requested during quality gates; run again to resume"}
}

// checkRepeatAbort blocks the task and stops the run when a gate keeps
// failing with the same error.
func (c *Controller) checkRepeatAbort(taskID string, logger *zap.Logger) *stopReason {
	if c.cfg.AbortAfter <= 0 {
		return nil
	}
	stuck := c.gates.Tracker().AtLeast(c.cfg.AbortAfter)
	if len(stuck) == 0 {
		return nil
	}

	err := c.tasks.Update(func(d *taskstore.Document) error {
		if t := d.InProgress(); t != nil {
			return d.SetStatus(t.ID, taskstore.StatusBlocked)
		}
		return nil
	})
	if err != nil {
		logger.Error("failed to block task", zap.Error(err))
	}
	// The blocked task takes the streak with it; the next run starts counting anew.
	c.gates.Tracker().Reset()
	if err := c.gates.Tracker().Save(c.paths.GateStatePath); err != nil {
		logger.Warn("failed to save gate state", zap.Error(err))
	}
	msg := fmt.Sprintf("gate(s) %s failed %d+ times in a row with the same error; task %s blocked. Fix the failure by hand, move the task back to Pending and run again",
		strings.Join(stuck, ", "), c.cfg.AbortAfter, taskID)
	logger.Error("aborting on repeated gate failure", zap.Strings("gates", stuck))
	return &stopReason{RunOutcomeBlocked, msg}
}

func (c *Controller) buildPrompt(ctx context.Context, st *State, doc *taskstore.Document, task *taskstore.Task) (string, error) {
	summary, err := memory.Summarize(st.LastLogPath)
	if err != nil {
		c.logger.Warn("failed to summarize previous iteration", zap.Error(err))
	}

	learnings, err := c.memory.WriteContext(c.cfg.RenderLimit)
	if err != nil {
		c.logger.Warn("failed to render learnings", zap.Error(err))
	}

	var (
		similar  []memory.Entry
		warnings []string
		seen     = make(map[string]bool)
	)
	for _, f := range st.LastFailures {
		if f.Warning != "" {
			warnings = append(warnings, f.Warning)
		}
		if f.ConsecutiveFailures < 2 {
			continue
		}
		fixes, err := c.memory.FindSimilarFixes(f.Output, memory.DefaultSimilarLimit)
		if err != nil {
			c.logger.Warn("failed to look up similar fixes", zap.Error(err))
			continue
		}
		for _, fix := range fixes {
			if !seen[fix.ID] {
				seen[fix.ID] = true
				similar = append(similar, fix)
			}
		}
	}

	var changed []string
	if c.git != nil {
		changed, _ = c.git.GetChangedFiles(ctx)
	}

	var gates []string
	for _, cmd := range gate.FromDecls(doc.GateDecls()) {
		line := cmd.Line()
		if cmd.Informational {
			line += " (informational)"
		}
		gates = append(gates, line)
	}

	return c.prompt.Build(prompt.IterationContext{
		Iteration:       st.Iteration,
		MaxIterations:   st.MaxIterations,
		Task:            task,
		Document:        doc,
		TasksPath:       c.tasks.Path(),
		Gates:           gates,
		PreviousSummary: summary.String(),
		PendingIssues:   st.TakePendingIssues(),
		Learnings:       learnings,
		SimilarFixes:    similar,
		Warnings:        warnings,
		ChangedFiles:    changed,
	})
}

func (c *Controller) previewURL(doc *taskstore.Document) string {
	if doc.Header.PreviewURL != "" {
		return doc.Header.PreviewURL
	}
	return c.cfg.PreviewURL
}

func openTaskIDs(doc *taskstore.Document) string {
	var ids []string
	for _, t := range doc.Tasks {
		if t.Status == taskstore.StatusPending || t.Status == taskstore.StatusInProgress {
			ids = append(ids, t.ID)
		}
	}
	return strings.Join(ids, ", ")
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && line != gate.TruncationMarker {
			return line
		}
	}
	return ""
}

func appendLog(path, line string) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()
	_, _ = fmt.Fprintln(f, line)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
