package consistency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		travel float64
		gap    float64
		want   Verdict
	}{
		{name: "ample slack", travel: 30, gap: 60, want: VerdictOK},
		{name: "slack exactly at threshold", travel: 45, gap: 60, want: VerdictOK},
		{name: "slack just under threshold", travel: 46, gap: 60, want: VerdictWarning},
		{name: "tight transition", travel: 50, gap: 60, want: VerdictWarning},
		{name: "travel exactly consumes gap", travel: 60, gap: 60, want: VerdictWarning},
		{name: "travel barely exceeds gap", travel: 61, gap: 60, want: VerdictError},
		{name: "travel far exceeds gap", travel: 71, gap: 60, want: VerdictError},
		{name: "zero travel zero gap", travel: 0, gap: 0, want: VerdictWarning},
		{name: "zero travel wide gap", travel: 0, gap: 120, want: VerdictOK},
		{name: "fractional slack under threshold", travel: 45.5, gap: 60, want: VerdictWarning},
		{name: "negative gap means overlap", travel: 10, gap: -5, want: VerdictError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.travel, tt.gap))
		})
	}
}
