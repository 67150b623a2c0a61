package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yarlson/ralph-gates/internal/reporter"
	"github.com/yarlson/ralph-gates/internal/runner"
	"github.com/yarlson/ralph-gates/internal/state"
	"github.com/yarlson/ralph-gates/internal/taskstore"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show current status",
		Long:  "Display the run state, task counts, next task, last iteration, repeated gate failures and stored learnings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd)
		},
	}
}

func runStatus(cmd *cobra.Command) error {
	workDir, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store := taskstore.NewFileStore(cfg.Tasks.Path)
	if !store.Exists() {
		return fmt.Errorf("task list %s not found. Run 'ralph init' first", cfg.Tasks.Path)
	}

	paused, err := state.IsPaused(workDir)
	if err != nil {
		return err
	}

	learnings := runner.NewLearningStore(cfg, "", zap.NewNop(), nil)
	generator := reporter.NewStatusGenerator(store, learnings, reporter.StatusOptions{
		RecordsPath:   state.RecordsFilePath(workDir),
		GateStatePath: state.GateStateFilePath(workDir),
		WarnAfter:     cfg.Gates.WarnAfter,
		Paused:        paused,
	})

	status, err := generator.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	_, _ = fmt.Fprint(cmd.OutOrStdout(), reporter.FormatStatus(status, reporter.ColorEnabled(cmd.OutOrStdout())))
	return nil
}
