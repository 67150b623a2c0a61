package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yarlson/ralph-gates/internal/state"
)

func newPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause the iteration loop",
		Long:  "Set a pause flag. A running loop stops at its next checkpoint without killing the agent mid-attempt.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPause(cmd)
		},
	}
}

func runPause(cmd *cobra.Command) error {
	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	paused, err := state.IsPaused(workDir)
	if err != nil {
		return err
	}
	if paused {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Ralph is already paused\n")
		return nil
	}

	if err := state.SetPaused(workDir, true); err != nil {
		return fmt.Errorf("failed to pause: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Ralph loop paused. Use 'ralph resume' or run 'ralph' again to continue.\n")
	return nil
}
