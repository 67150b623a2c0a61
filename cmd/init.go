package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yarlson/ralph-gates/internal/gate"
	"github.com/yarlson/ralph-gates/internal/state"
	"github.com/yarlson/ralph-gates/internal/taskstore"
)

func newInitCmd() *cobra.Command {
	var (
		title string
		spec  string
		tasks []string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a task list for a feature",
		Long: `Create the .ralph directory and a task-list skeleton. Quality gates are
discovered from the project files (go.mod, package.json, Makefile, ...) and
written to the Quality Gates section; edit them before the first run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, title, spec, tasks, force)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "feature title (required)")
	cmd.Flags().StringVar(&spec, "spec", "", "spec name recorded on learnings")
	cmd.Flags().StringArrayVarP(&tasks, "task", "t", nil, "task description (repeatable)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing task list")

	return cmd
}

func runInit(cmd *cobra.Command, title, spec string, tasks []string, force bool) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("--title is required")
	}

	workDir, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := state.EnsureRalphDir(workDir); err != nil {
		return fmt.Errorf("failed to create .ralph directory: %w", err)
	}

	store := taskstore.NewFileStore(cfg.Tasks.Path)
	if store.Exists() && !force {
		return fmt.Errorf("task list %s already exists (use --force to overwrite)", cfg.Tasks.Path)
	}

	doc := &taskstore.Document{
		Title: title,
		Header: taskstore.Header{
			Status:    taskstore.RunStatusIdle,
			Spec:      spec,
			Created:   time.Now().UTC().Truncate(time.Second),
			CreatedBy: "ralph init",
		},
	}
	for _, c := range gate.Discover(workDir) {
		doc.Gates = append(doc.Gates, taskstore.GateDecl{Line: c.Line(), Informational: c.Informational})
	}
	for _, t := range tasks {
		if strings.TrimSpace(t) != "" {
			doc.AddTask(t)
		}
	}

	if err := store.Save(doc); err != nil {
		return fmt.Errorf("failed to write task list: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Created %s with %d task(s)\n", cfg.Tasks.Path, len(doc.Tasks))
	if len(doc.Gates) == 0 {
		_, _ = fmt.Fprintf(out, "No quality gates discovered. Add them to the Quality Gates section before running.\n")
	} else {
		for _, g := range doc.Gates {
			_, _ = fmt.Fprintf(out, "  gate: %s\n", g.String())
		}
	}
	return nil
}
