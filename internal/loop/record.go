// Package loop drives the iteration loop: select a task, invoke the worker,
// run the gates, record learnings and decide when the work is finished.
package loop

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/yarlson/ralph-gates/internal/filelock"
	"github.com/yarlson/ralph-gates/internal/gate"
	"github.com/yarlson/ralph-gates/internal/verifier"
)

// IterationOutcome represents the result of an iteration.
type IterationOutcome string

const (
	// OutcomeSuccess means the worker completed an attempt. Gate results are
	// recorded separately.
	OutcomeSuccess IterationOutcome = "success"
	// OutcomeTransientFailure means the iteration was interrupted before the
	// worker finished, e.g. by shutdown.
	OutcomeTransientFailure IterationOutcome = "transient_failure"
	// OutcomePermanentFailure means the worker exhausted its retries.
	OutcomePermanentFailure IterationOutcome = "permanent_failure"
)

// validOutcomes is a set of valid iteration outcomes for validation.
var validOutcomes = map[IterationOutcome]bool{
	OutcomeSuccess:          true,
	OutcomeTransientFailure: true,
	OutcomePermanentFailure: true,
}

// IsValid returns true if the outcome is a valid value.
func (o IterationOutcome) IsValid() bool {
	return validOutcomes[o]
}

// IterationRecord is the audit entry written once per loop pass.
type IterationRecord struct {
	Iteration   int       `json:"iteration"`
	IterationID string    `json:"iteration_id"`
	TaskID      string    `json:"task_id,omitempty"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	LogPath     string    `json:"log_path,omitempty"`

	Attempts int              `json:"attempts,omitempty"`
	Outcome  IterationOutcome `json:"outcome"`
	Error    string           `json:"error,omitempty"`

	Gates    []gate.Result `json:"gates,omitempty"`
	NoGates  bool          `json:"no_gates,omitempty"`
	Probe    []string      `json:"probe,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`

	Learnings         int `json:"learnings,omitempty"`
	RejectedLearnings int `json:"rejected_learnings,omitempty"`

	CompletionClaimed  bool             `json:"completion_claimed,omitempty"`
	CompletionRejected bool             `json:"completion_rejected,omitempty"`
	Verification       *verifier.Result `json:"verification,omitempty"`

	TaskNotes    []string `json:"task_notes,omitempty"`
	BaseCommit   string   `json:"base_commit,omitempty"`
	FilesChanged []string `json:"files_changed,omitempty"`
}

// NewIterationRecord creates a record for iteration n of task taskID.
func NewIterationRecord(n int, taskID string) *IterationRecord {
	return &IterationRecord{
		Iteration:   n,
		IterationID: GenerateIterationID(),
		TaskID:      taskID,
		StartTime:   time.Now(),
	}
}

// Duration returns the duration of the iteration.
func (r *IterationRecord) Duration() time.Duration {
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// Complete marks the iteration as complete with the given outcome.
func (r *IterationRecord) Complete(outcome IterationOutcome) {
	r.EndTime = time.Now()
	r.Outcome = outcome
}

// GatesPassed reports whether every blocking gate passed.
func (r *IterationRecord) GatesPassed() bool {
	return gate.Report{Results: r.Gates}.Passed()
}

// GenerateIterationID generates a short unique iteration ID.
func GenerateIterationID() string {
	return uuid.New().String()[:8]
}

// AppendRecord appends record as one JSON line to path.
func AppendRecord(path string, record *IterationRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	data = append(data, '\n')

	return filelock.With(path, func() error {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open records file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
		return f.Sync()
	})
}

// LoadRecords reads every record from path. A missing file yields no records.
func LoadRecords(path string) ([]*IterationRecord, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	var records []*IterationRecord
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var r IterationRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}
		records = append(records, &r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan records: %w", err)
	}
	return records, nil
}

// LastRecord returns the most recent record, or nil.
func LastRecord(path string) (*IterationRecord, error) {
	records, err := LoadRecords(path)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[len(records)-1], nil
}
