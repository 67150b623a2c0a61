// Package cmd implements the ralph command-line interface.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yarlson/ralph-gates/internal/config"
	"github.com/yarlson/ralph-gates/internal/runner"
)

var cfgFile string

// GetConfigFile returns the config file path from the flag.
func GetConfigFile() string {
	return cfgFile
}

// Root command flags
var (
	rootMaxIterations int
	rootStream        bool
	rootProvider      string
	rootMetricsAddr   string
)

// NewRootCmd creates the root command for ralph CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ralph",
		Short: "Unattended feature delivery loop with quality gates",
		Long: `Ralph drives a coding agent through the task list in .ralph/tasks.md:
pick the next task → invoke the agent → run the quality gates → record
learnings → repeat, until every task is done and completion is verified.

Exit codes: 0 verified complete, 1 unverified or aborted, 130 shutdown.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ralph.yaml in the working directory)")
	rootCmd.PersistentFlags().StringVar(&rootProvider, "provider", "", "agent provider (claude, opencode, codex)")
	addRunFlags(rootCmd)

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newPauseCmd())
	rootCmd.AddCommand(newResumeCmd())
	rootCmd.AddCommand(newGatesCmd())
	rootCmd.AddCommand(newLearningsCmd())
	rootCmd.AddCommand(newLogsCmd())

	return rootCmd
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&rootMaxIterations, "max-iterations", "n", 0, "maximum iterations for this run (0 uses config)")
	cmd.Flags().BoolVar(&rootStream, "stream", false, "stream agent output to console")
	cmd.Flags().StringVar(&rootMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the iteration loop",
		Long:  "Execute the iteration loop until all tasks are verified complete or a stop condition is reached. Same as running ralph without a subcommand.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(cmd)
		},
	}
	addRunFlags(cmd)
	return cmd
}

// loadConfig loads and resolves the configuration for the working directory.
func loadConfig() (string, *config.Config, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return "", nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	cfg, err := config.LoadConfigWithFile(workDir, GetConfigFile())
	if err != nil {
		return "", nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Resolve(workDir)
	return workDir, cfg, nil
}

func runLoop(cmd *cobra.Command) error {
	workDir, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts := runner.Options{
		MaxIterations: rootMaxIterations,
		Provider:      rootProvider,
		Stream:        rootStream,
		MetricsAddr:   rootMetricsAddr,
	}

	result, err := runner.Run(cmd.Context(), workDir, cfg, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		if errors.Is(err, runner.ErrNoTaskList) {
			return fmt.Errorf("%w: create %s first (see 'ralph init')", err, cfg.Tasks.Path)
		}
		return err
	}
	if code := result.Outcome.ExitCode(); code != 0 {
		return &ExitError{Code: code, Err: fmt.Errorf("run ended %s: %s", result.Outcome, result.Message)}
	}
	return nil
}

// Execute runs the root command and exits with the outcome's exit code.
func Execute() {
	err := NewRootCmd().Execute()
	if err == nil {
		return
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	os.Exit(1)
}
