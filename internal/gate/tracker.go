package gate

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/yarlson/ralph-gates/internal/filelock"
)

// Tracker defaults.
const (
	DefaultWarnAfter  = 5
	DefaultHashLines  = 5
	DefaultAbortAfter = 10
)

// FailureCounter is the repeat-failure state of one gate.
type FailureCounter struct {
	Hash  string `json:"hash"`
	Count int    `json:"count"`
}

// TrackerState is the persisted form of the tracker.
type TrackerState struct {
	Counters map[string]FailureCounter `json:"counters"`
}

// Tracker counts consecutive identical failures per gate. A failure whose
// error hash matches the previous one increments the counter, a different
// hash restarts it at 1, and a pass clears it.
type Tracker struct {
	mu        sync.Mutex
	counters  map[string]FailureCounter
	hashLines int
}

// NewTracker creates an empty tracker hashing the first hashLines lines.
func NewTracker(hashLines int) *Tracker {
	if hashLines <= 0 {
		hashLines = DefaultHashLines
	}
	return &Tracker{
		counters:  make(map[string]FailureCounter),
		hashLines: hashLines,
	}
}

// Record updates the counter for gate and returns the new count.
func (t *Tracker) Record(gate string, passed bool, hash string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if passed {
		delete(t.counters, gate)
		return 0
	}

	c := t.counters[gate]
	if c.Hash == hash && c.Count > 0 {
		c.Count++
	} else {
		c = FailureCounter{Hash: hash, Count: 1}
	}
	t.counters[gate] = c
	return c.Count
}

// Count returns the current count for gate.
func (t *Tracker) Count(gate string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counters[gate].Count
}

// AtLeast returns the gates whose counter is >= n, sorted.
func (t *Tracker) AtLeast(n int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var gates []string
	for g, c := range t.counters {
		if n > 0 && c.Count >= n {
			gates = append(gates, g)
		}
	}
	sort.Strings(gates)
	return gates
}

// Hash computes the error hash of output.
func (t *Tracker) Hash(output string) string {
	return ErrorHash(output, t.hashLines)
}

// Reset clears all counters.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counters = make(map[string]FailureCounter)
}

// GetState returns a copy of the tracker state for persistence.
func (t *Tracker) GetState() TrackerState {
	t.mu.Lock()
	defer t.mu.Unlock()

	counters := make(map[string]FailureCounter, len(t.counters))
	for k, v := range t.counters {
		counters[k] = v
	}
	return TrackerState{Counters: counters}
}

// SetState restores tracker state.
func (t *Tracker) SetState(state TrackerState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counters = make(map[string]FailureCounter, len(state.Counters))
	for k, v := range state.Counters {
		t.counters[k] = v
	}
}

// Load restores state from path. A missing file leaves the tracker empty.
func (t *Tracker) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading gate state: %w", err)
	}
	var state TrackerState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("parsing gate state: %w", err)
	}
	t.SetState(state)
	return nil
}

// Save writes state to path atomically.
func (t *Tracker) Save(path string) error {
	data, err := json.MarshalIndent(t.GetState(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling gate state: %w", err)
	}
	return filelock.AtomicWrite(path, data)
}

var (
	numberRe = regexp.MustCompile(`\d+(\.\d+)?`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// ErrorHash hashes the first n non-empty lines of output after normalizing
// numbers and whitespace, so timings and counters do not change the hash.
func ErrorHash(output string, n int) string {
	if n <= 0 {
		n = DefaultHashLines
	}
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == TruncationMarker {
			continue
		}
		line = numberRe.ReplaceAllString(line, "N")
		line = spaceRe.ReplaceAllString(line, " ")
		lines = append(lines, line)
		if len(lines) == n {
			break
		}
	}
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])[:16]
}
