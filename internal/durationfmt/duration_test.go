package durationfmt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValid(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"0", 0},
		{"0s", 0},
		{"100ns", 100 * time.Nanosecond},
		{"3h15m10s500ms", 3*time.Hour + 15*time.Minute + 10*time.Second + 500*time.Millisecond},
		{"+5s", 5 * time.Second},
		{"1.5s", 1500 * time.Millisecond},
		{"10µs", 10 * time.Microsecond},
		{"10us", 10 * time.Microsecond},
		{"10μs", 10 * time.Microsecond},
	}

	for _, tt := range tests {
		got, err := Parse(tt.in)
		require.NoErrorf(t, err, "Parse(%q)", tt.in)
		assert.Equalf(t, tt.want, got, "Parse(%q)", tt.in)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []string{"", "10", "1h 30m", "-.5s", "-5s", "5x"}

	for _, in := range tests {
		_, err := Parse(in)
		assert.Errorf(t, err, "Parse(%q) should have failed", in)
	}
}
