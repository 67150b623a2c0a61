package loop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLimits(t *testing.T) {
	limits := DefaultLimits()
	assert.Equal(t, 50, limits.MaxIterations)
	assert.Equal(t, 3, limits.MaxConsecutiveFailures)
}

func TestLimits_Check(t *testing.T) {
	tests := []struct {
		name     string
		limits   Limits
		ran      int
		failures int
		want     LimitReasonCode
	}{
		{"within limits", Limits{MaxIterations: 5, MaxConsecutiveFailures: 3}, 4, 2, LimitReasonNone},
		{"iterations used up", Limits{MaxIterations: 5, MaxConsecutiveFailures: 3}, 5, 0, LimitReasonIterations},
		{"failures win over iterations", Limits{MaxIterations: 5, MaxConsecutiveFailures: 3}, 5, 3, LimitReasonConsecutiveFailures},
		{"unlimited", Limits{}, 1000, 1000, LimitReasonNone},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status := tc.limits.Check(tc.ran, &State{ConsecutiveFailures: tc.failures})
			assert.Equal(t, tc.want, status.ReasonCode)
			assert.Equal(t, tc.want == LimitReasonNone, status.CanContinue)
			if !status.CanContinue {
				assert.NotEmpty(t, status.Reason)
			}
		})
	}
}

func TestLimits_CheckMessage(t *testing.T) {
	status := Limits{MaxIterations: 2}.Check(2, &State{})
	assert.Equal(t, "max iteration limit reached (2/2)", status.Reason)
}
