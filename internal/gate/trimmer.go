package gate

import (
	"errors"
	"strings"
)

// TruncationMarker is the marker added when output is truncated.
const TruncationMarker = "... [output truncated]"

// Default tail bounds for captured gate output.
const (
	DefaultTailLines = 80
	DefaultTailBytes = 8192
)

// TrimOptions configures output trimming behavior.
type TrimOptions struct {
	// MaxLines is the maximum number of lines to keep (0 = no limit).
	MaxLines int

	// MaxBytes is the maximum output size in bytes (0 = no limit).
	MaxBytes int
}

// Validate checks that the options are valid.
func (o TrimOptions) Validate() error {
	if o.MaxLines < 0 {
		return errors.New("MaxLines cannot be negative")
	}
	if o.MaxBytes < 0 {
		return errors.New("MaxBytes cannot be negative")
	}
	return nil
}

// DefaultTrimOptions returns the default tail bounds.
func DefaultTrimOptions() TrimOptions {
	return TrimOptions{
		MaxLines: DefaultTailLines,
		MaxBytes: DefaultTailBytes,
	}
}

// Tail keeps the end of output within the configured limits. Errors usually
// appear last, so the head is dropped and replaced by TruncationMarker.
func Tail(output string, opts TrimOptions) string {
	if output == "" {
		return ""
	}
	result := output
	if opts.MaxLines > 0 {
		result = tailLines(result, opts.MaxLines)
	}
	if opts.MaxBytes > 0 {
		result = tailBytes(result, opts.MaxBytes)
	}
	return result
}

func tailLines(output string, maxLines int) string {
	trimmed := strings.TrimRight(output, "\n")
	lines := strings.Split(trimmed, "\n")
	if len(lines) <= maxLines {
		return output
	}
	return TruncationMarker + "\n" + strings.Join(lines[len(lines)-maxLines:], "\n")
}

func tailBytes(output string, maxBytes int) string {
	if len(output) <= maxBytes {
		return output
	}
	body := strings.TrimPrefix(output, TruncationMarker+"\n")
	keep := maxBytes - len(TruncationMarker) - 1
	if keep <= 0 {
		return TruncationMarker
	}
	start := len(body) - keep
	if start < 0 {
		start = 0
	}
	// do not split a UTF-8 sequence
	for start < len(body) && body[start]&0xC0 == 0x80 {
		start++
	}
	return TruncationMarker + "\n" + body[start:]
}

// FormatFailures renders failing blocking results for inclusion in the next
// prompt, quoting the captured output verbatim.
func FormatFailures(results []Result) string {
	var b strings.Builder
	for _, r := range results {
		if r.Passed || r.Informational {
			continue
		}
		b.WriteString("Command: ")
		b.WriteString(r.Command)
		b.WriteString("\n")
		if r.Unsafe {
			b.WriteString("Rejected: ")
			b.WriteString(r.Output)
			b.WriteString("\n\n")
			continue
		}
		b.WriteString("Output:\n")
		b.WriteString(r.Output)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}
