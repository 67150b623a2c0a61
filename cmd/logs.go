package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yarlson/ralph-gates/internal/loop"
	"github.com/yarlson/ralph-gates/internal/state"
)

func newLogsCmd() *cobra.Command {
	var iteration int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show iteration logs",
		Long:  "List recorded iterations, or print the full log of one iteration with --iteration.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(cmd, iteration)
		},
	}

	cmd.Flags().IntVarP(&iteration, "iteration", "i", 0, "print the log of this iteration number")

	return cmd
}

func runLogs(cmd *cobra.Command, iteration int) error {
	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	records, err := loop.LoadRecords(state.RecordsFilePath(workDir))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "No iterations recorded. Run 'ralph' to start the loop.\n")
		return nil
	}

	if iteration > 0 {
		return showIteration(cmd.OutOrStdout(), records, iteration)
	}
	return listIterations(cmd.OutOrStdout(), records)
}

func showIteration(w io.Writer, records []*loop.IterationRecord, iteration int) error {
	var rec *loop.IterationRecord
	for _, r := range records {
		if r.Iteration == iteration {
			rec = r
		}
	}
	if rec == nil {
		return fmt.Errorf("iteration %d not found", iteration)
	}

	data, err := os.ReadFile(rec.LogPath)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("log for iteration %d not found at %s", iteration, rec.LogPath)
	}
	if err != nil {
		return fmt.Errorf("failed to read log: %w", err)
	}
	_, _ = w.Write(data)
	return nil
}

func listIterations(w io.Writer, records []*loop.IterationRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ITER\tID\tTASK\tOUTCOME\tGATES\tDURATION")
	for _, r := range records {
		task := r.TaskID
		if task == "" {
			task = "-"
		}
		gates := "-"
		switch {
		case len(r.Gates) > 0 && r.GatesPassed():
			gates = "pass"
		case len(r.Gates) > 0:
			gates = "fail"
		case r.NoGates:
			gates = "none"
		}
		outcome := string(r.Outcome)
		if r.CompletionRejected {
			outcome += " (claim rejected)"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.Iteration, r.IterationID, task, outcome, gates, r.Duration().Round(time.Second))
	}
	return tw.Flush()
}
