package memory

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	resultFooter = regexp.MustCompile(`^=== result: (pass|fail)\b`)
	attemptClass = regexp.MustCompile(`classification=(\w+)`)
)

// ResultFooter is the final line written to an iteration log once its gates
// have run.
func ResultFooter(passed bool) string {
	if passed {
		return "=== result: pass ==="
	}
	return "=== result: fail ==="
}

// Summary is the condensed outcome of the previous iteration.
type Summary struct {
	Found    bool
	Passed   bool
	Category Category
	Text     string
}

// String renders the summary for the iteration context.
func (s Summary) String() string {
	if !s.Found {
		return ""
	}
	verdict := "failed"
	if s.Passed {
		verdict = "passed"
	}
	if s.Text == "" {
		return fmt.Sprintf("Previous iteration %s.", verdict)
	}
	return fmt.Sprintf("Previous iteration %s. Last note (%s): %s", verdict, s.Category, s.Text)
}

// Summarize reads an iteration log and returns the most recent marker and
// the pass/fail flag. A missing log yields an empty Summary.
func Summarize(logPath string) (Summary, error) {
	if logPath == "" {
		return Summary{}, nil
	}
	f, err := os.Open(logPath)
	if errors.Is(err, os.ErrNotExist) {
		return Summary{}, nil
	}
	if err != nil {
		return Summary{}, fmt.Errorf("opening iteration log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var (
		summary     Summary
		sawFooter   bool
		lastAttempt string
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		summary.Found = true

		if m := resultFooter.FindStringSubmatch(line); m != nil {
			sawFooter = true
			summary.Passed = m[1] == "pass"
			continue
		}
		if strings.HasPrefix(line, "=== attempt ") {
			if m := attemptClass.FindStringSubmatch(line); m != nil {
				lastAttempt = m[1]
			}
			continue
		}
		if e, ok := parseJSONMarker(line); ok {
			summary.Category, summary.Text = e.Category, e.Text
			continue
		}
		if e, ok := parseLegacyMarker(line); ok {
			summary.Category, summary.Text = e.Category, e.Text
		}
	}
	if err := scanner.Err(); err != nil {
		return Summary{}, fmt.Errorf("reading iteration log: %w", err)
	}

	if !sawFooter {
		summary.Passed = lastAttempt == "completed"
	}
	return summary, nil
}
