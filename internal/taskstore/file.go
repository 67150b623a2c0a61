package taskstore

import (
	"fmt"
	"os"

	"github.com/yarlson/ralph-gates/internal/filelock"
)

// FileStore implements Store on a single Markdown file.
type FileStore struct {
	path string
}

// NewFileStore creates a store for the document at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the document path.
func (s *FileStore) Path() string {
	return s.path
}

// Exists reports whether the document file is present.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads and parses the document.
func (s *FileStore) Load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading task list: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing task list %s: %w", s.path, err)
	}
	return doc, nil
}

// Save renders the document and writes it atomically under the store lock.
func (s *FileStore) Save(doc *Document) error {
	data, err := doc.Render()
	if err != nil {
		return err
	}
	if err := filelock.LockAndWrite(s.path, data); err != nil {
		return fmt.Errorf("writing task list: %w", err)
	}
	return nil
}

// Update performs a locked read-modify-write of the document.
func (s *FileStore) Update(fn func(doc *Document) error) error {
	return filelock.With(s.path, func() error {
		doc, err := s.Load()
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
		data, err := doc.Render()
		if err != nil {
			return err
		}
		if err := filelock.AtomicWrite(s.path, data); err != nil {
			return fmt.Errorf("writing task list: %w", err)
		}
		return nil
	})
}

// Ensure FileStore implements Store interface.
var _ Store = (*FileStore)(nil)
