package agent

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	long := strings.Repeat("implemented the handler and added tests. ", 5)

	tests := []struct {
		name    string
		attempt Attempt
		want    Classification
		reason  string
	}{
		{"timeout", Attempt{Output: long, TimedOut: true}, ClassTransient, "timed out"},
		{"non-zero exit", Attempt{Output: long, ExitCode: 2}, ClassTransient, "exit code 2"},
		{"start error", Attempt{Err: errors.New("failed to start claude")}, ClassTransient, "failed to start claude"},
		{"empty output", Attempt{Output: "  \n\t"}, ClassTransient, "empty output"},
		{"connection reset", Attempt{Output: "Error: connection reset by peer"}, ClassTransient, "short output matching connection reset"},
		{"rate limit", Attempt{Output: "429 Too Many Requests"}, ClassTransient, "short output matching rate limit"},
		{"server error", Attempt{Output: "API Error: 503"}, ClassTransient, "short output matching server error"},
		{"short timeout text", Attempt{Output: "request timed out"}, ClassTransient, "short output matching timeout"},
		{"short but fine", Attempt{Output: "Done. All gates pass."}, ClassCompleted, ""},
		{"long output mentioning errors", Attempt{Output: long + " fixed the 500 from the server"}, ClassCompleted, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := Classify(tt.attempt)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.reason, reason)
		})
	}
}
