package memory

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yarlson/ralph-gates/internal/filelock"
	"github.com/yarlson/ralph-gates/internal/metrics"
)

// DefaultRenderLimit caps each rendered group.
const DefaultRenderLimit = 10

// StoreOptions configures a Store.
type StoreOptions struct {
	// Path is the JSON-lines learnings file.
	Path string
	// ContextPath receives the rendered context. Empty disables it.
	ContextPath string
	// ArchiveDir receives copies of the learnings file on Reset.
	ArchiveDir string
	// Spec tags appended entries that carry no spec of their own.
	Spec    string
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Store is an append-only learnings file.
type Store struct {
	path        string
	contextPath string
	archive     *Archive
	spec        string
	logger      *zap.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewStore creates a Store. The file is created on first append.
func NewStore(opts StoreOptions) *Store {
	s := &Store{
		path:        opts.Path,
		contextPath: opts.ContextPath,
		spec:        opts.Spec,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		now:         time.Now,
	}
	if opts.ArchiveDir != "" {
		s.archive = NewArchive(opts.ArchiveDir)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Path returns the learnings file path.
func (s *Store) Path() string {
	return s.path
}

// ContextPath returns the rendered context file path.
func (s *Store) ContextPath() string {
	return s.contextPath
}

// Append validates and persists one entry. Harmful entries are rejected
// with a *HarmfulEntryError before anything is written.
func (s *Store) Append(e Entry) (Entry, error) {
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	if err := e.Harmful(); err != nil {
		s.metrics.LearningRejected()
		s.logger.Warn("rejected harmful learning",
			zap.String("category", string(e.Category)),
			zap.String("text", e.Text),
			zap.Error(err),
		)
		return Entry{}, err
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now().UTC()
	}
	if e.Spec == "" {
		e.Spec = s.spec
	}

	line, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("encoding learning: %w", err)
	}
	line = append(line, '\n')

	err = filelock.With(s.path, func() error {
		f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening learnings file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.Write(line); err != nil {
			return fmt.Errorf("appending learning: %w", err)
		}
		return f.Sync()
	})
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// AppendAll appends entries in order, stamping each with iteration. Harmful
// and invalid entries are skipped and reported in the returned errors.
func (s *Store) AppendAll(entries []Entry, iteration int) ([]Entry, []error) {
	var (
		stored []Entry
		errs   []error
	)
	for _, e := range entries {
		e.Iteration = iteration
		saved, err := s.Append(e)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		stored = append(stored, saved)
	}
	return stored, errs
}

// All returns every entry in file order. Malformed lines are skipped.
func (s *Store) All() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading learnings file: %w", err)
	}
	return s.decode(data), nil
}

func (s *Store) decode(data []byte) []Entry {
	var entries []Entry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			s.logger.Warn("skipping malformed learning", zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

// Query returns up to limit entries of category, most recent first. An
// empty category matches all entries; limit <= 0 means no limit.
func (s *Store) Query(category Category, limit int) ([]Entry, error) {
	all, err := s.All()
	if err != nil {
		return nil, err
	}

	var out []Entry
	for i := len(all) - 1; i >= 0; i-- {
		if category != "" && all[i].Category != category {
			continue
		}
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Counts returns the number of entries per category.
func (s *Store) Counts() (map[Category]int, error) {
	all, err := s.All()
	if err != nil {
		return nil, err
	}
	counts := make(map[Category]int)
	for _, e := range all {
		counts[e.Category]++
	}
	return counts, nil
}

// ResetResult describes what Reset did.
type ResetResult struct {
	ArchivePath string
	Purged      int
	Kept        int
}

// ArchiveDir returns the archive directory, or "" when archiving is off.
func (s *Store) ArchiveDir() string {
	if s.archive == nil {
		return ""
	}
	return s.archive.Dir()
}

// Archives lists archived learnings files, newest first.
func (s *Store) Archives() ([]string, error) {
	if s.archive == nil {
		return nil, nil
	}
	return s.archive.List()
}

// Reset archives the learnings file, drops harmful entries recorded for spec
// (any spec when empty), rewrites the file atomically and empties the
// context file.
func (s *Store) Reset(spec string) (ResetResult, error) {
	var result ResetResult

	err := filelock.With(s.path, func() error {
		data, err := os.ReadFile(s.path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading learnings file: %w", err)
		}

		if s.archive != nil {
			archived, err := s.archive.Save(s.path, data, s.now())
			if err != nil {
				return err
			}
			result.ArchivePath = archived
		}

		var buf bytes.Buffer
		for _, e := range s.decode(data) {
			if (spec == "" || e.Spec == spec) && e.Harmful() != nil {
				result.Purged++
				continue
			}
			line, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("encoding learning: %w", err)
			}
			buf.Write(line)
			buf.WriteByte('\n')
			result.Kept++
		}
		return filelock.AtomicWrite(s.path, buf.Bytes())
	})
	if err != nil {
		return ResetResult{}, err
	}

	if s.contextPath != "" {
		if err := filelock.AtomicWrite(s.contextPath, nil); err != nil {
			return result, fmt.Errorf("clearing context file: %w", err)
		}
	}

	s.logger.Info("learnings reset",
		zap.String("spec", spec),
		zap.Int("purged", result.Purged),
		zap.Int("kept", result.Kept),
		zap.String("archive", result.ArchivePath),
	)
	return result, nil
}
