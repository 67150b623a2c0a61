package verifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCounts(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   Counts
	}{
		{"playwright", "Running 14 tests using 4 workers\n  13 passed (21.3s)\n  1 failed", Counts{Passed: 13, Failed: 1}},
		{"jest", "Tests:       2 failed, 40 passed, 42 total", Counts{Passed: 40, Failed: 2}},
		{"pytest", "===== 7 passed, 1 warning in 0.12s =====", Counts{Passed: 7}},
		{"mocha", "  5 passing (2s)\n  0 failing", Counts{Passed: 5}},
		{"go test -v", "=== RUN   TestA\n--- PASS: TestA (0.00s)\n=== RUN   TestB\n--- FAIL: TestB (0.00s)", Counts{Passed: 1, Failed: 1}},
		{"nothing", "segmentation fault", Counts{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCounts(tt.output))
		})
	}
}
