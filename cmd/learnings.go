package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yarlson/ralph-gates/internal/memory"
	"github.com/yarlson/ralph-gates/internal/runner"
)

func newLearningsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learnings",
		Short: "Inspect or reset stored learnings",
	}
	cmd.AddCommand(newLearningsShowCmd())
	cmd.AddCommand(newLearningsResetCmd())
	cmd.AddCommand(newLearningsArchivesCmd())
	return cmd
}

func newLearningsShowCmd() *cobra.Command {
	var (
		category string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show stored learnings",
		Long:  "Show the most recent learnings per group, as they are rendered into the agent prompt.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLearningsShow(cmd, memory.Category(category), limit)
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "only show one category (discovery, pattern, fix, success, blocker, iteration_failure)")
	cmd.Flags().IntVar(&limit, "limit", memory.DefaultRenderLimit, "entries per group")

	return cmd
}

func runLearningsShow(cmd *cobra.Command, category memory.Category, limit int) error {
	if category != "" && !category.IsValid() {
		return fmt.Errorf("unknown category %q", category)
	}
	if limit <= 0 {
		limit = memory.DefaultRenderLimit
	}

	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store := runner.NewLearningStore(cfg, "", zap.NewNop(), nil)
	all, err := store.All()
	if err != nil {
		return fmt.Errorf("failed to read learnings: %w", err)
	}

	entries := all
	if category != "" {
		entries = nil
		for _, e := range all {
			if e.Category == category {
				entries = append(entries, e)
			}
		}
	}

	rendered := memory.RenderEntries(entries, limit)
	if rendered == "" {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No learnings stored.")
		return nil
	}
	_, _ = fmt.Fprint(cmd.OutOrStdout(), rendered)
	return nil
}

func newLearningsResetCmd() *cobra.Command {
	var spec string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Archive learnings and purge harmful entries",
		Long: `Copy the learnings file to the archive directory, then drop entries that
would teach the agent to bypass gates or dismiss failures. With --spec only
entries recorded for that spec are purged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLearningsReset(cmd, spec)
		},
	}

	cmd.Flags().StringVar(&spec, "spec", "", "only purge entries recorded for this spec")

	return cmd
}

func runLearningsReset(cmd *cobra.Command, spec string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store := runner.NewLearningStore(cfg, "", zap.NewNop(), nil)
	res, err := store.Reset(spec)
	if err != nil {
		return fmt.Errorf("failed to reset learnings: %w", err)
	}

	out := cmd.OutOrStdout()
	if res.ArchivePath != "" {
		_, _ = fmt.Fprintf(out, "Archived to %s\n", res.ArchivePath)
	}
	_, _ = fmt.Fprintf(out, "Purged %d harmful learning(s), kept %d\n", res.Purged, res.Kept)
	return nil
}

func newLearningsArchivesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archives",
		Short: "List archived learnings files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLearningsArchives(cmd)
		},
	}
}

func runLearningsArchives(cmd *cobra.Command) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store := runner.NewLearningStore(cfg, "", zap.NewNop(), nil)
	archives, err := store.Archives()
	if err != nil {
		return fmt.Errorf("failed to list archives: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(archives) == 0 {
		_, _ = fmt.Fprintf(out, "No archives in %s\n", store.ArchiveDir())
		return nil
	}
	for _, a := range archives {
		_, _ = fmt.Fprintln(out, a)
	}
	return nil
}
