package loop

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/yarlson/ralph-gates/internal/filelock"
	"github.com/yarlson/ralph-gates/internal/gate"
)

// State is the loop state threaded through every iteration and persisted
// between runs.
type State struct {
	// Iteration is the number of the last started iteration.
	Iteration int `json:"iteration"`

	// ConsecutiveFailures counts permanent worker failures since the last
	// successful iteration.
	ConsecutiveFailures int `json:"consecutive_failures"`

	// MaxIterations is the per-run iteration budget.
	MaxIterations int `json:"max_iterations"`

	// PendingIssues are injected into the next iteration only.
	PendingIssues []string `json:"pending_issues,omitempty"`

	// LastFailures are the blocking gate failures of the last iteration.
	LastFailures []gate.Result `json:"last_failures,omitempty"`

	// LastLogPath is the previous iteration's log.
	LastLogPath string `json:"last_log_path,omitempty"`

	// Shutdown is set once shutdown was observed.
	Shutdown bool `json:"shutdown"`

	UpdatedAt time.Time `json:"updated_at"`
}

// TakePendingIssues returns the pending issues and clears them.
func (s *State) TakePendingIssues() []string {
	issues := s.PendingIssues
	s.PendingIssues = nil
	return issues
}

// AddIssue queues an issue for the next iteration.
func (s *State) AddIssue(issue string) {
	if issue == "" {
		return
	}
	s.PendingIssues = append(s.PendingIssues, issue)
}

// SaveState writes the state atomically.
func SaveState(path string, state *State) error {
	if state == nil {
		return errors.New("state cannot be nil")
	}
	state.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal loop state: %w", err)
	}
	if err := filelock.AtomicWrite(path, data); err != nil {
		return fmt.Errorf("failed to write loop state: %w", err)
	}
	return nil
}

// LoadState loads the loop state from a file.
// If the file does not exist, returns an empty state (not an error).
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("failed to read loop state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal loop state: %w", err)
	}
	return &state, nil
}
