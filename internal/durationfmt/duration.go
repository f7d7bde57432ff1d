// Package durationfmt parses the "Go syntax" duration strings the
// analytics service reports in its metrics object: a concatenation of
// <decimal><unit> segments, leading "+" allowed, "-" rejected, "0" alone
// meaning zero.
package durationfmt

import (
	"fmt"
	"strings"
	"time"
)

// Parse parses s into a time.Duration. It is a thin wrapper over
// time.ParseDuration: the standard library already implements exactly the
// "<number><unit>" segment grammar the service uses, with units
// ns|us|µs|μs|ms|s|m|h — the one divergence is that the service's grammar
// rejects a leading "-", which time.ParseDuration accepts. Parse adds that
// rejection and otherwise defers to the standard library.
func Parse(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("durationfmt: empty duration string")
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("durationfmt: negative duration %q is not permitted", s)
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("durationfmt: invalid duration %q: %w", s, err)
	}
	return d, nil
}
