package reporter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yarlson/ralph-gates/internal/taskstore"
)

const statusDoc = "---\n" +
	"status: blocked\n" +
	"iteration: 7\n" +
	"---\n" +
	"# Feature: Login\n\n" +
	"## Tasks\n\n" +
	"### Pending\n\n" +
	"- [ ] T3: Add lockout counter\n\n" +
	"### Blocked\n\n" +
	"- [ ] T2: Build session store\n\n" +
	"### Completed\n\n" +
	"- [x] T1: Scaffold package\n" +
	"- [x] T4: Wire handler\n"

func newTaskStore(t *testing.T) *taskstore.FileStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.md")
	require.NoError(t, os.WriteFile(path, []byte(statusDoc), 0644))
	return taskstore.NewFileStore(path)
}
