package memory

import (
	"fmt"
	"slices"
	"strings"

	"github.com/yarlson/ralph-gates/internal/filelock"
)

type renderGroup struct {
	title      string
	categories []Category
}

var renderGroups = []renderGroup{
	{"Discoveries & successes", []Category{CategoryDiscovery, CategorySuccess}},
	{"Prior fixes (don't repeat these mistakes)", []Category{CategoryFix}},
	{"Codebase patterns", []Category{CategoryPattern}},
	{"Active blockers", []Category{CategoryBlocker}},
	{"Recent gate failures", []Category{CategoryIterationFailure}},
}

// Render formats the most recent learnings as markdown, at most limit per
// category. It returns an empty string when there is nothing to render.
func (s *Store) Render(limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultRenderLimit
	}

	all, err := s.All()
	if err != nil {
		return "", err
	}
	return RenderEntries(all, limit), nil
}

// RenderEntries formats entries, given oldest first, grouped by category.
// Each category contributes at most limit entries, newest first. Harmful
// entries are never rendered.
func RenderEntries(all []Entry, limit int) string {
	var sb strings.Builder
	for _, group := range renderGroups {
		var picked []Entry
		taken := make(map[Category]int, len(group.categories))
		for i := len(all) - 1; i >= 0; i-- {
			e := all[i]
			if !slices.Contains(group.categories, e.Category) || taken[e.Category] >= limit {
				continue
			}
			if e.Harmful() != nil {
				continue
			}
			taken[e.Category]++
			picked = append(picked, e)
		}
		if len(picked) == 0 {
			continue
		}

		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		_, _ = fmt.Fprintf(&sb, "### %s\n\n", group.title)
		for _, e := range picked {
			_, _ = fmt.Fprintf(&sb, "- %s\n", formatEntry(e))
		}
	}
	return sb.String()
}

func formatEntry(e Entry) string {
	var sb strings.Builder
	if e.Iteration > 0 {
		_, _ = fmt.Fprintf(&sb, "[iter %d] ", e.Iteration)
	}
	switch {
	case e.Category == CategoryFix && e.Error != "":
		_, _ = fmt.Fprintf(&sb, "%s → %s", e.Error, e.Fix)
	default:
		sb.WriteString(e.Text)
	}
	if len(e.Files) > 0 {
		_, _ = fmt.Fprintf(&sb, " (%s)", strings.Join(e.Files, ", "))
	}
	return strings.ReplaceAll(sb.String(), "\n", " ")
}

// WriteContext renders the learnings and writes them to the context file.
func (s *Store) WriteContext(limit int) (string, error) {
	rendered, err := s.Render(limit)
	if err != nil {
		return "", err
	}
	if s.contextPath == "" {
		return rendered, nil
	}

	content := "## Learnings\n\n" + rendered
	if rendered == "" {
		content = "## Learnings\n\n_No learnings recorded yet._\n"
	}
	if err := filelock.AtomicWrite(s.contextPath, []byte(content)); err != nil {
		return "", fmt.Errorf("writing context file: %w", err)
	}
	return rendered, nil
}
