package taskstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = "---\n" +
	"status: running\n" +
	"iteration: 4\n" +
	"spec: login\n" +
	"preview_url: http://localhost:3000\n" +
	"gates:\n" +
	"  - go vet ./...\n" +
	"  - program: golangci-lint\n" +
	"    args: [run]\n" +
	"    informational: true\n" +
	"verification:\n" +
	"  test:\n" +
	"    - go test ./...\n" +
	"owner: platform\n" +
	"---\n" +
	"# Feature: Login\n\n" +
	"Users sign in with email.\n\n" +
	"## Requirements\n\n" +
	"- [x] Sessions persist\n" +
	"- [ ] Lockout after 5 attempts\n\n" +
	"## Tasks\n\n" +
	"### In Progress\n\n" +
	"- [ ] T2: Build session store\n\n" +
	"### Pending\n\n" +
	"- [ ] T3: Add lockout counter\n" +
	"- [x] T4: Wire handler\n" +
	"- [ ] Write docs\n\n" +
	"### Completed\n\n" +
	"- [x] T1: Scaffold package\n\n" +
	"## Quality Gates\n\n" +
	"```gate\n" +
	"go build ./...\n" +
	"# comment\n" +
	"go test ./...\n" +
	"```\n\n" +
	"```gate informational\n" +
	"npm run lint\n" +
	"```\n\n" +
	"## Exit Criteria\n\n" +
	"- [ ] All gates pass\n\n" +
	"## Rollout\n\n" +
	"Behind a flag.\n\n" +
	"## Notes\n\n" +
	"Keep the API stable.\n\n" +
	"- bullet stays raw\n"

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)

	t.Run("header", func(t *testing.T) {
		assert.Equal(t, RunStatusRunning, doc.Header.Status)
		assert.Equal(t, 4, doc.Header.Iteration)
		assert.Equal(t, "login", doc.Header.Spec)
		assert.Equal(t, "http://localhost:3000", doc.Header.PreviewURL)
		require.Len(t, doc.Header.Gates, 2)
		assert.Equal(t, "go vet ./...", doc.Header.Gates[0].Line)
		assert.Equal(t, "golangci-lint", doc.Header.Gates[1].Program)
		assert.Equal(t, []string{"run"}, doc.Header.Gates[1].Args)
		assert.True(t, doc.Header.Gates[1].Informational)
		require.NotNil(t, doc.Header.Verification)
		require.Len(t, doc.Header.Verification.Test, 1)
		assert.Equal(t, "go test ./...", doc.Header.Verification.Test[0].Line)
		assert.Equal(t, "platform", doc.Header.Extra["owner"])
	})

	t.Run("title and intro", func(t *testing.T) {
		assert.Equal(t, "Feature: Login", doc.Title)
		assert.Equal(t, "Users sign in with email.", doc.Intro)
	})

	t.Run("requirements", func(t *testing.T) {
		require.Len(t, doc.Requirements, 2)
		assert.Equal(t, Item{Text: "Sessions persist", Done: true}, doc.Requirements[0])
		assert.Equal(t, Item{Text: "Lockout after 5 attempts", Done: false}, doc.Requirements[1])
	})

	t.Run("tasks", func(t *testing.T) {
		require.Len(t, doc.Tasks, 5)
		byID := map[string]*Task{}
		for _, task := range doc.Tasks {
			byID[task.ID] = task
		}
		assert.Equal(t, StatusInProgress, byID["T2"].Status)
		assert.Equal(t, StatusPending, byID["T3"].Status)
		assert.Equal(t, StatusCompleted, byID["T4"].Status, "ticked checkbox completes the task")
		assert.Equal(t, StatusCompleted, byID["T1"].Status)
		require.Contains(t, byID, "T5", "task without id gets the next free id")
		assert.Equal(t, "Write docs", byID["T5"].Description)
	})

	t.Run("gates", func(t *testing.T) {
		require.Len(t, doc.Gates, 3)
		assert.Equal(t, "go build ./...", doc.Gates[0].Line)
		assert.False(t, doc.Gates[0].Informational)
		assert.Equal(t, "go test ./...", doc.Gates[1].Line)
		assert.Equal(t, "npm run lint", doc.Gates[2].Line)
		assert.True(t, doc.Gates[2].Informational)
		assert.Len(t, doc.GateDecls(), 5)
	})

	t.Run("exit criteria extra and notes", func(t *testing.T) {
		require.Len(t, doc.ExitCriteria, 1)
		assert.Equal(t, "All gates pass", doc.ExitCriteria[0].Text)
		require.Len(t, doc.Extra, 1)
		assert.Equal(t, "Rollout", doc.Extra[0].Title)
		assert.Equal(t, "Behind a flag.", doc.Extra[0].Body)
		assert.Equal(t, "Keep the API stable.\n\n- bullet stays raw", doc.Notes)
	})
}

func TestParse_GateBullets(t *testing.T) {
	src := "# Feature: Login\n\n" +
		"## Quality Gates\n\n" +
		"- Run the unit tests\n" +
		"- `go vet ./...`\n" +
		"- Use `go test` with -race\n\n" +
		"```gate\n" +
		"go test ./...\n" +
		"```\n"

	doc, err := Parse([]byte(src))
	require.NoError(t, err)

	var lines []string
	for _, g := range doc.Gates {
		lines = append(lines, g.Line)
	}
	assert.Equal(t, []string{"go vet ./...", "go test ./..."}, lines)
	assert.Equal(t, []string{"Run the unit tests", "Use `go test` with -race"}, doc.GateNotes)

	out, err := doc.Render()
	require.NoError(t, err)
	again, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, doc.GateNotes, again.GateNotes)
	assert.Len(t, again.Gates, 2)
}

func TestParse_NoFrontmatter(t *testing.T) {
	doc, err := Parse([]byte("# Plan\n\n## Tasks\n\n- [ ] first\n- [x] second\n"))
	require.NoError(t, err)

	assert.Equal(t, RunStatusIdle, doc.Header.Status)
	require.Len(t, doc.Tasks, 2)
	assert.Equal(t, "T1", doc.Tasks[0].ID)
	assert.Equal(t, StatusPending, doc.Tasks[0].Status)
	assert.Equal(t, "T2", doc.Tasks[1].ID)
	assert.Equal(t, StatusCompleted, doc.Tasks[1].Status)
}

func TestParse_InvalidHeader(t *testing.T) {
	_, err := Parse([]byte("---\nstatus: [unterminated\n---\n# x\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRender_RoundTrip(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)

	data, err := doc.Render()
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, doc.Header.Status, again.Header.Status)
	assert.Equal(t, doc.Header.Iteration, again.Header.Iteration)
	assert.Equal(t, doc.Header.Gates, again.Header.Gates)
	assert.Equal(t, doc.Title, again.Title)
	assert.Equal(t, doc.Intro, again.Intro)
	assert.Equal(t, doc.Requirements, again.Requirements)
	assert.Equal(t, doc.Gates, again.Gates)
	assert.Equal(t, doc.ExitCriteria, again.ExitCriteria)
	assert.Equal(t, doc.Extra, again.Extra)
	assert.Equal(t, doc.Notes, again.Notes)

	require.Len(t, again.Tasks, len(doc.Tasks))
	want := map[string]TaskStatus{}
	for _, task := range doc.Tasks {
		want[task.ID] = task.Status
	}
	for _, task := range again.Tasks {
		assert.Equal(t, want[task.ID], task.Status, task.ID)
	}
}

func TestRender_Layout(t *testing.T) {
	doc := &Document{
		Header: Header{Status: RunStatusRunning, Iteration: 2},
		Title:  "Feature",
		Tasks: []*Task{
			{ID: "T1", Description: "done", Status: StatusCompleted, Order: 0},
			{ID: "T2", Description: "next", Status: StatusPending, Order: 1},
		},
		Gates: []GateDecl{{Line: "go test ./..."}},
	}

	data, err := doc.Render()
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "status: running\niteration: 2\n")
	assert.Contains(t, out, "### Pending\n\n- [ ] T2: next\n")
	assert.Contains(t, out, "### Completed\n\n- [x] T1: done\n")
	assert.Contains(t, out, "```gate\ngo test ./...\n```")
	assert.NotContains(t, out, "gate informational")
}

func TestDocument_Next(t *testing.T) {
	t.Run("prefers in-progress task", func(t *testing.T) {
		doc := &Document{Tasks: newTasks()}
		require.NotNil(t, doc.Next())
		assert.Equal(t, "T2", doc.Next().ID)
	})

	t.Run("first pending by document order", func(t *testing.T) {
		doc := &Document{Tasks: []*Task{
			{ID: "T7", Description: "late", Status: StatusPending, Order: 5},
			{ID: "T3", Description: "early", Status: StatusPending, Order: 1},
		}}
		assert.Equal(t, "T3", doc.Next().ID)
	})

	t.Run("nothing open", func(t *testing.T) {
		doc := &Document{Tasks: []*Task{{ID: "T1", Description: "x", Status: StatusCompleted}}}
		assert.Nil(t, doc.Next())
		assert.False(t, doc.HasOpen())
		assert.True(t, doc.AllCompleted())
	})
}

func TestDocument_AddTask(t *testing.T) {
	doc := &Document{Tasks: newTasks()}
	task := doc.AddTask("  Fix integration failure  ")

	assert.Equal(t, "T5", task.ID)
	assert.Equal(t, "Fix integration failure", task.Description)
	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, 4, task.Order)
	assert.Equal(t, 2, doc.Counts()[StatusPending])
}

func TestDocument_Clone(t *testing.T) {
	doc := &Document{Tasks: newTasks()}
	c := doc.Clone()
	c.Tasks[0].Status = StatusPending

	assert.Equal(t, StatusCompleted, doc.Tasks[0].Status)
}
