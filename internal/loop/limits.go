package loop

import "fmt"

// LimitReasonCode identifies why a limit check failed.
type LimitReasonCode string

const (
	LimitReasonNone                LimitReasonCode = "none"
	LimitReasonIterations          LimitReasonCode = "iterations"
	LimitReasonConsecutiveFailures LimitReasonCode = "consecutive_failures"
)

// Limits bounds a single run.
type Limits struct {
	// MaxIterations is the per-run iteration budget (0 = unlimited).
	MaxIterations int `json:"max_iterations"`

	// MaxConsecutiveFailures aborts the run after this many permanent worker
	// failures in a row (0 = unlimited).
	MaxConsecutiveFailures int `json:"max_consecutive_failures"`
}

// DefaultLimits returns the default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxIterations:          50,
		MaxConsecutiveFailures: 3,
	}
}

// LimitStatus represents the result of a limit check.
type LimitStatus struct {
	CanContinue bool
	Reason      string
	ReasonCode  LimitReasonCode
}

// Check compares the run against the limits. ran is the number of
// iterations started in the current run.
func (l Limits) Check(ran int, state *State) LimitStatus {
	if l.MaxConsecutiveFailures > 0 && state.ConsecutiveFailures >= l.MaxConsecutiveFailures {
		return LimitStatus{
			Reason:     fmt.Sprintf("worker failed permanently %d times in a row", state.ConsecutiveFailures),
			ReasonCode: LimitReasonConsecutiveFailures,
		}
	}
	if l.MaxIterations > 0 && ran >= l.MaxIterations {
		return LimitStatus{
			Reason:     fmt.Sprintf("max iteration limit reached (%d/%d)", ran, l.MaxIterations),
			ReasonCode: LimitReasonIterations,
		}
	}
	return LimitStatus{CanContinue: true, ReasonCode: LimitReasonNone}
}
