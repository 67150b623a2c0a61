package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrTransient marks an attempt that failed in a retryable way.
	ErrTransient = errors.New("transient worker failure")

	// ErrPermanentFailure is returned when every retry was exhausted.
	ErrPermanentFailure = errors.New("worker failed permanently")

	// ErrShutdown is returned when shutdown was requested before or during
	// an invocation.
	ErrShutdown = errors.New("shutdown requested")
)

// AttemptError describes one failed attempt.
type AttemptError struct {
	Attempt int
	Reason  string
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("attempt %d: %s", e.Attempt, e.Reason)
}

func (e *AttemptError) Unwrap() error {
	return ErrTransient
}

// PermanentFailureError is returned after the last retry failed.
type PermanentFailureError struct {
	Attempts int
	LogPath  string
	Last     *AttemptError
}

func (e *PermanentFailureError) Error() string {
	reason := "unknown"
	if e.Last != nil {
		reason = e.Last.Reason
	}
	return fmt.Sprintf("worker failed after %d attempts: %s (log: %s)", e.Attempts, reason, e.LogPath)
}

func (e *PermanentFailureError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrPermanentFailure}
	}
	return []error{ErrPermanentFailure, e.Last}
}
