package taskstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_LoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".ralph", "tasks.md")
	store := NewFileStore(path)
	assert.False(t, store.Exists())

	_, err := store.Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	doc, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)
	require.NoError(t, store.Save(doc))
	assert.True(t, store.Exists())

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, doc.Title, loaded.Title)
	assert.Len(t, loaded.Tasks, len(doc.Tasks))
}

func TestFileStore_Update(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.md")
	require.NoError(t, os.WriteFile(path, []byte(sampleDoc), 0644))
	store := NewFileStore(path)

	t.Run("applies changes", func(t *testing.T) {
		err := store.Update(func(doc *Document) error {
			doc.Header.Iteration++
			return doc.SetStatus("T2", StatusCompleted)
		})
		require.NoError(t, err)

		doc, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, 5, doc.Header.Iteration)
		task, err := doc.Task("T2")
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, task.Status)
	})

	t.Run("discards changes when fn fails", func(t *testing.T) {
		err := store.Update(func(doc *Document) error {
			doc.Header.Iteration = 99
			return doc.SetStatus("T404", StatusCompleted)
		})
		require.ErrorIs(t, err, ErrNotFound)

		doc, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, 5, doc.Header.Iteration)
	})
}
