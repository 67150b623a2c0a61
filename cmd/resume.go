package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yarlson/ralph-gates/internal/state"
)

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Clear the pause flag",
		Long:  "Clear the pause flag so the next 'ralph' run continues where the loop stopped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResume(cmd)
		},
	}
}

func runResume(cmd *cobra.Command) error {
	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	paused, err := state.IsPaused(workDir)
	if err != nil {
		return err
	}
	if !paused {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Ralph is not paused\n")
		return nil
	}

	if err := state.SetPaused(workDir, false); err != nil {
		return fmt.Errorf("failed to resume: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Ralph loop resumed. Use 'ralph' to start.\n")
	return nil
}
