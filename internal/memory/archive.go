package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Archive keeps timestamped copies of the learnings file.
type Archive struct {
	dir string
}

// NewArchive creates an Archive rooted at dir.
func NewArchive(dir string) *Archive {
	return &Archive{dir: dir}
}

// Dir returns the archive directory.
func (a *Archive) Dir() string {
	return a.dir
}

// Save writes data as a new archive named after source and t, and returns
// its path. Existing archives are never overwritten.
func (a *Archive) Save(source string, data []byte, t time.Time) (string, error) {
	if err := os.MkdirAll(a.dir, 0755); err != nil {
		return "", fmt.Errorf("creating archive directory: %w", err)
	}

	archivedPath := a.uniquePath(source, t)
	if err := os.WriteFile(archivedPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing archived file: %w", err)
	}
	return archivedPath, nil
}

// uniquePath appends a counter suffix when the timestamped name is taken.
func (a *Archive) uniquePath(source string, t time.Time) string {
	baseFilename := archiveFilename(source, t)
	basePath := filepath.Join(a.dir, baseFilename)

	if _, err := os.Stat(basePath); os.IsNotExist(err) {
		return basePath
	}

	ext := filepath.Ext(baseFilename)
	nameWithoutExt := strings.TrimSuffix(baseFilename, ext)

	for i := 1; i < 1000; i++ {
		suffixedPath := filepath.Join(a.dir, fmt.Sprintf("%s-%d%s", nameWithoutExt, i, ext))
		if _, err := os.Stat(suffixedPath); os.IsNotExist(err) {
			return suffixedPath
		}
	}

	return basePath
}

// List returns archived files, newest first.
func (a *Archive) List() ([]string, error) {
	if _, err := os.Stat(a.dir); os.IsNotExist(err) {
		return []string{}, nil
	}

	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("reading archive directory: %w", err)
	}

	var archives []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		archives = append(archives, filepath.Join(a.dir, entry.Name()))
	}

	sort.Sort(sort.Reverse(sort.StringSlice(archives)))
	return archives, nil
}

// archiveFilename formats learnings.jsonl as learnings-YYYYMMDD-HHMMSS.jsonl.
func archiveFilename(source string, t time.Time) string {
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if name == "" {
		name = "learnings"
	}
	return fmt.Sprintf("%s-%s%s", name, t.Format("20060102-150405"), ext)
}
