package taskstore

import (
	"errors"
	"fmt"
)

// Error types for task-list operations.
var (
	// ErrNotFound is returned when a task with the given ID does not exist.
	ErrNotFound = errors.New("task not found")

	// ErrValidation is returned when the document fails validation.
	ErrValidation = errors.New("task list validation failed")

	// ErrInvalidTransition is returned for a status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid task transition")

	// ErrAnotherInProgress is returned when a second task would become in progress.
	ErrAnotherInProgress = errors.New("another task is already in progress")
)

// NotFoundError wraps ErrNotFound with the task ID that was not found.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ValidationError wraps ErrValidation with details about the validation failure.
type ValidationError struct {
	ID     string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("task list validation failed for %s: %s", e.ID, e.Reason)
	}
	return fmt.Sprintf("task list validation failed: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// TransitionError describes a rejected status change.
type TransitionError struct {
	ID     string
	From   TaskStatus
	To     TaskStatus
	Holder string
	Err    error
}

func (e *TransitionError) Error() string {
	if e.Holder != "" {
		return fmt.Sprintf("cannot start %s: %s is already in progress", e.ID, e.Holder)
	}
	return fmt.Sprintf("cannot move %s from %q to %q", e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// Store defines the interface for task-list persistence.
type Store interface {
	// Path returns the location of the document.
	Path() string

	// Load reads and parses the document.
	Load() (*Document, error)

	// Save writes the document atomically.
	Save(doc *Document) error

	// Update runs fn on a freshly loaded document under the store lock and
	// saves the result when fn returns nil.
	Update(fn func(doc *Document) error) error
}
