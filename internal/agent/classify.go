package agent

import (
	"fmt"
	"regexp"
	"strings"
)

// Classification is the verdict on a single worker attempt.
type Classification string

const (
	// ClassCompleted means the attempt produced usable output.
	ClassCompleted Classification = "completed"
	// ClassTransient means the attempt should be retried.
	ClassTransient Classification = "transient"
)

// ShortOutputThreshold is the length below which output is checked against
// transient error signatures.
const ShortOutputThreshold = 100

type signature struct {
	name string
	re   *regexp.Regexp
}

var transientSignatures = []signature{
	{"connection reset", regexp.MustCompile(`(?i)connection (reset|refused|closed)|econnreset|broken pipe`)},
	{"timeout", regexp.MustCompile(`(?i)time[d ]?out|deadline exceeded`)},
	{"rate limit", regexp.MustCompile(`(?i)rate.?limit|too many requests|\b429\b|quota exceeded`)},
	{"server error", regexp.MustCompile(`(?i)\b5\d\d\b|internal server error|bad gateway|service unavailable|overloaded`)},
	{"empty result", regexp.MustCompile(`(?i)empty (result|response)|no output`)},
}

// Attempt describes one finished worker attempt.
type Attempt struct {
	Output   string
	ExitCode int
	TimedOut bool
	Err      error
}

// Classify decides whether an attempt completed or failed transiently, and
// returns a short reason for transient verdicts.
func Classify(a Attempt) (Classification, string) {
	if a.TimedOut {
		return ClassTransient, "timed out"
	}
	if a.Err != nil {
		return ClassTransient, a.Err.Error()
	}
	if a.ExitCode != 0 {
		return ClassTransient, fmt.Sprintf("exit code %d", a.ExitCode)
	}

	trimmed := strings.TrimSpace(a.Output)
	if trimmed == "" {
		return ClassTransient, "empty output"
	}
	if len(trimmed) < ShortOutputThreshold {
		for _, sig := range transientSignatures {
			if sig.re.MatchString(trimmed) {
				return ClassTransient, "short output matching " + sig.name
			}
		}
	}
	return ClassCompleted, ""
}
