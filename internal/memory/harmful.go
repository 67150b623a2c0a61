package memory

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrHarmfulEntry is returned when a learning would teach future iterations
// to bypass the quality gates.
var ErrHarmfulEntry = errors.New("harmful learning rejected")

// HarmfulEntryError names the pattern that matched.
type HarmfulEntryError struct {
	Pattern string
	Text    string
}

func (e *HarmfulEntryError) Error() string {
	return fmt.Sprintf("harmful learning rejected (%s): %q", e.Pattern, e.Text)
}

func (e *HarmfulEntryError) Unwrap() error {
	return ErrHarmfulEntry
}

type harmfulPattern struct {
	name string
	re   *regexp.Regexp
}

var harmfulPatterns = []harmfulPattern{
	{"skip gates", regexp.MustCompile(`(?i)\b(skip|bypass|ignore|disable|circumvent)\w*\s+(the\s+|all\s+|any\s+)?(quality\s+)?(gates?|checks?|hooks?|verification)\b`)},
	{"skip tests", regexp.MustCompile(`(?i)\b(skip|ignore|disable|delete|remove|comment\s+out)\w*\s+(the\s+|all\s+|any\s+)?(failing\s+|broken\s+)?(tests?|specs?|linters?|lint\s+rules?)\b`)},
	{"pre-existing", regexp.MustCompile(`(?i)\b(pre-?existing|not\s+(my|our)\s+(fault|problem|issue)|unrelated\s+to\s+(my|our|this)\s+change)`)},
	{"flaky excuse", regexp.MustCompile(`(?i)\b(failures?|errors?|tests?)\s+(are|is)\s+(just\s+)?(flaky|environmental|expected)\b`)},
	{"no-verify", regexp.MustCompile(`(?i)--no-verify|\bt\.Skip\(|\bxit\(|\bit\.skip\(|@pytest\.mark\.skip|#\[ignore\]`)},
	{"premature completion", regexp.MustCompile(`(?i)\b(mark|declare|claim)\w*\s+(it\s+|the\s+task\s+|as\s+)*(complete|completed|done)\s+(even\s+(if|though)|despite|regardless)`)},
}

// CheckHarmful returns a *HarmfulEntryError when text matches a harmful
// pattern, and nil otherwise.
func CheckHarmful(text string) error {
	for _, p := range harmfulPatterns {
		if p.re.MatchString(text) {
			return &HarmfulEntryError{Pattern: p.name, Text: text}
		}
	}
	return nil
}

// Harmful screens every field of e that can reach a prompt.
func (e Entry) Harmful() error {
	fields := append([]string{e.Text, e.Error, e.Fix}, e.Files...)
	for _, f := range fields {
		if f == "" {
			continue
		}
		if err := CheckHarmful(f); err != nil {
			return err
		}
	}
	return nil
}
