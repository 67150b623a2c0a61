// Package runner wires configuration into a loop controller and runs it.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/yarlson/ralph-gates/internal/agent"
	"github.com/yarlson/ralph-gates/internal/config"
	"github.com/yarlson/ralph-gates/internal/gate"
	gitpkg "github.com/yarlson/ralph-gates/internal/git"
	"github.com/yarlson/ralph-gates/internal/logging"
	"github.com/yarlson/ralph-gates/internal/loop"
	"github.com/yarlson/ralph-gates/internal/memory"
	"github.com/yarlson/ralph-gates/internal/metrics"
	"github.com/yarlson/ralph-gates/internal/prompt"
	"github.com/yarlson/ralph-gates/internal/reporter"
	"github.com/yarlson/ralph-gates/internal/state"
	"github.com/yarlson/ralph-gates/internal/taskstore"
	"github.com/yarlson/ralph-gates/internal/verifier"
)

// ErrNoTaskList is returned when the task-list document does not exist.
var ErrNoTaskList = errors.New("task list not found")

// Options configures a run.
type Options struct {
	MaxIterations int
	Provider      string
	Stream        bool // Stream worker output to console
	MetricsAddr   string

	// Logger overrides the logger built from cfg.Logging.
	Logger *zap.Logger
}

// Run executes the main iteration loop and prints the run report.
func Run(ctx context.Context, workDir string, cfg *config.Config, opts Options, stdout, stderr io.Writer) (loop.RunResult, error) {
	cfg.Resolve(workDir)

	if err := state.EnsureRalphDir(workDir); err != nil {
		return loop.RunResult{}, fmt.Errorf("failed to create .ralph directory: %w", err)
	}

	release, err := state.AcquireRunLock(workDir)
	if err != nil {
		return loop.RunResult{}, err
	}
	defer func() { _ = release() }()

	// Running again resumes a paused loop.
	if paused, err := state.IsPaused(workDir); err == nil && paused {
		if err := state.SetPaused(workDir, false); err != nil {
			return loop.RunResult{}, fmt.Errorf("failed to auto-resume: %w", err)
		}
		_, _ = fmt.Fprintln(stdout, "Resuming paused loop")
	}

	logger := opts.Logger
	if logger == nil {
		logger, err = logging.NewWithWriter(cfg.Logging, stderr)
		if err != nil {
			return loop.RunResult{}, fmt.Errorf("failed to create logger: %w", err)
		}
	}
	defer func() { _ = logger.Sync() }()

	store := taskstore.NewFileStore(cfg.Tasks.Path)
	if !store.Exists() {
		return loop.RunResult{}, fmt.Errorf("%w: %s", ErrNoTaskList, cfg.Tasks.Path)
	}
	doc, err := store.Load()
	if err != nil {
		return loop.RunResult{}, fmt.Errorf("failed to load task list: %w", err)
	}

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			_, _ = fmt.Fprintf(stderr, "\nReceived interrupt signal, stopping the worker...\n")
			cancel()
		case <-ctx.Done():
		}
	}()

	m := metrics.New()
	addr := cfg.Metrics.Addr
	if opts.MetricsAddr != "" {
		addr = opts.MetricsAddr
	}
	if addr != "" {
		go func() {
			if err := m.Serve(ctx, addr, logger); err != nil {
				logger.Warn("metrics endpoint stopped", zap.Error(err))
			}
		}()
	}

	controller, err := build(ctx, workDir, cfg, opts, doc, store, m, logger, stdout)
	if err != nil {
		return loop.RunResult{}, err
	}

	_, _ = fmt.Fprintf(stdout, "Starting loop on %s\n\n", cfg.Tasks.Path)
	result := controller.Run(ctx)

	rep, err := reporter.NewReportGenerator(store, gitpkg.Open(context.WithoutCancel(ctx), workDir)).
		GenerateReport(context.WithoutCancel(ctx), result)
	if err != nil {
		logger.Warn("incomplete run report", zap.Error(err))
	}
	if rep != nil {
		_, _ = fmt.Fprintf(stdout, "\n%s", reporter.FormatReport(rep, reporter.ColorEnabled(stdout)))
	}

	return result, nil
}

func build(ctx context.Context, workDir string, cfg *config.Config, opts Options, doc *taskstore.Document,
	store taskstore.Store, m *metrics.Metrics, logger *zap.Logger, stdout io.Writer) (*loop.Controller, error) {
	provider, err := agent.Resolve(opts.Provider, cfg.Executor.Provider)
	if err != nil {
		return nil, err
	}
	custom := cfg.Executor.Command
	if opts.Provider != "" {
		custom = nil
	}
	argv, err := agent.CommandFor(provider, custom)
	if err != nil {
		return nil, err
	}
	executor, err := agent.NewSubprocessExecutor(argv, workDir, cfg.Executor.KillGrace)
	if err != nil {
		return nil, err
	}
	executor.WithEnv(cfg.Executor.Env...)

	shutdown := func() bool {
		paused, _ := state.IsPaused(workDir)
		return paused
	}

	var console io.Writer
	if opts.Stream {
		console = stdout
	}
	invoker := agent.NewInvoker(executor, agent.Options{
		Timeout:           cfg.Executor.Timeout,
		MaxRetries:        cfg.Executor.MaxRetries,
		RetryDelay:        cfg.Executor.RetryDelay,
		ShutdownRequested: shutdown,
		Console:           console,
		Logger:            logger,
		Metrics:           m,
	})

	gates := NewGateRunner(workDir, cfg, logger, m)
	learnings := NewLearningStore(cfg, doc.Header.Spec, logger, m)

	sizes := prompt.SizeOptions{
		MaxPromptBytes:    cfg.Prompt.MaxPromptBytes,
		MaxLearningsBytes: cfg.Prompt.MaxLearningsBytes,
		MaxIssueBytes:     cfg.Prompt.MaxIssueBytes,
	}
	if err := sizes.Validate(); err != nil {
		return nil, fmt.Errorf("invalid prompt sizes: %w", err)
	}

	limits := loop.Limits{
		MaxIterations:          cfg.Loop.MaxIterations,
		MaxConsecutiveFailures: cfg.Loop.MaxConsecutiveFailures,
	}
	if opts.MaxIterations > 0 {
		limits.MaxIterations = opts.MaxIterations
	}

	deps := loop.ControllerDeps{
		Tasks:    store,
		Invoker:  invoker,
		Gates:    gates,
		Verifier: verifier.New(gates, verifier.Options{WorkDir: workDir, Logger: logger}),
		Memory:   learnings,
		Prober: gate.NewProber(gate.ProbeOptions{
			Timeout:       cfg.Probe.Timeout,
			RenderCommand: cfg.Probe.RenderCommand,
			Logger:        logger,
		}),
		Prompt:  prompt.NewBuilder(&sizes),
		Metrics: m,
		Logger:  logger,
		Paths: loop.Paths{
			LogsDir:       state.LogsDirPath(workDir),
			RecordsPath:   state.RecordsFilePath(workDir),
			StatePath:     state.LoopStateFilePath(workDir),
			GateStatePath: state.GateStateFilePath(workDir),
		},
		Config: loop.Config{
			Limits:         limits,
			IterationDelay: cfg.Loop.IterationDelay,
			AbortAfter:     cfg.Gates.AbortAfter,
			RenderLimit:    cfg.Memory.RenderLimit,
			Verification:   VerificationPlan(cfg.Verification),
			PreviewURL:     cfg.Probe.URL,
		},
		Git:               gitpkg.Open(ctx, workDir),
		ShutdownRequested: shutdown,
		OnIteration: func(rec *loop.IterationRecord) {
			_, _ = fmt.Fprintln(stdout, FormatIteration(rec))
		},
	}

	return loop.NewController(deps), nil
}

// NewGateRunner builds the gate runner from cfg. cfg paths must be resolved.
func NewGateRunner(workDir string, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *gate.Runner {
	return gate.NewRunner(gate.Options{
		WorkDir:   workDir,
		Policy:    gate.NewPolicy(cfg.Safety.AllowedCommands, workDir),
		Tracker:   gate.NewTracker(cfg.Gates.HashLines),
		Timeout:   cfg.Gates.Timeout,
		Trim:      gate.TrimOptions{MaxLines: cfg.Gates.OutputLines, MaxBytes: cfg.Gates.OutputBytes},
		WarnAfter: cfg.Gates.WarnAfter,
		Logger:    logger,
		Metrics:   m,
	})
}

// NewLearningStore opens the learning store configured in cfg. Appended
// entries without a spec are tagged with spec.
func NewLearningStore(cfg *config.Config, spec string, logger *zap.Logger, m *metrics.Metrics) *memory.Store {
	return memory.NewStore(memory.StoreOptions{
		Path:        cfg.Memory.Path,
		ContextPath: cfg.Memory.ContextPath,
		ArchiveDir:  cfg.Memory.ArchiveDir,
		Spec:        spec,
		Logger:      logger,
		Metrics:     m,
	})
}

// VerificationPlan converts configured command lines into a verifier plan.
func VerificationPlan(vc config.VerificationConfig) verifier.Plan {
	conv := func(lines []string) []gate.Command {
		var out []gate.Command
		for _, l := range lines {
			if c := gate.ParseLine(l); c.Program != "" {
				out = append(out, c)
			}
		}
		return out
	}
	return verifier.Plan{
		Services:  conv(vc.Services),
		Bootstrap: conv(vc.Bootstrap),
		Test:      conv(vc.Test),
		E2E:       conv(vc.E2E),
		Build:     conv(vc.Build),
	}
}

// FormatIteration renders a one-line iteration summary for the console.
func FormatIteration(rec *loop.IterationRecord) string {
	task := rec.TaskID
	if task == "" {
		task = "verification"
	}
	line := fmt.Sprintf("[iter %d] %s: %s", rec.Iteration, task, rec.Outcome)
	switch {
	case rec.Verification != nil && rec.Verification.Passed:
		line += ", verified"
	case rec.Verification != nil:
		line += ", verification failed"
	case rec.CompletionRejected:
		line += ", completion rejected"
	case len(rec.Gates) > 0 && rec.GatesPassed():
		line += ", gates passed"
	case len(rec.Gates) > 0:
		line += ", gates failed"
	case rec.NoGates:
		line += ", no gates"
	}
	if rec.Learnings > 0 {
		line += fmt.Sprintf(", %d learning(s)", rec.Learnings)
	}
	return line
}

// IsTerminal checks if the writer is a terminal.
func IsTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}
