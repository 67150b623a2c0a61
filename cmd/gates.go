package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yarlson/ralph-gates/internal/gate"
	"github.com/yarlson/ralph-gates/internal/reporter"
	"github.com/yarlson/ralph-gates/internal/runner"
	"github.com/yarlson/ralph-gates/internal/taskstore"
)

func newGatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gates",
		Short: "Run the quality gates once",
		Long: `Run the quality gates declared in the task list once and print the results.
When no gates are declared they are discovered from the project files.
The loop's repeated-failure counters are not touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGates(cmd)
		},
	}
}

func runGates(cmd *cobra.Command) error {
	workDir, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var decls []taskstore.GateDecl
	store := taskstore.NewFileStore(cfg.Tasks.Path)
	if store.Exists() {
		doc, err := store.Load()
		if err != nil {
			return fmt.Errorf("failed to load task list: %w", err)
		}
		decls = doc.GateDecls()
	}

	gates := runner.NewGateRunner(workDir, cfg, zap.NewNop(), nil)
	report := gates.Run(cmd.Context(), gate.FromDecls(decls))

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprint(out, reporter.FormatGateReport(report, reporter.ColorEnabled(out)))

	switch {
	case report.NoGates:
		return &ExitError{Code: 1, Err: errors.New("no quality gates found")}
	case !report.Passed():
		return &ExitError{Code: 1, Err: fmt.Errorf("%d blocking gate(s) failed", len(report.BlockingFailures()))}
	}
	return nil
}
