// Package freshness decides whether a sensor reading is recent enough to use.
package freshness

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

var durationRe = regexp.MustCompile(`^(\d+)(d|h|m|s|ms)$`)

var durationUnits = map[string]time.Duration{
	"d":  24 * time.Hour,
	"h":  time.Hour,
	"m":  time.Minute,
	"s":  time.Second,
	"ms": time.Millisecond,
}

// FormatError reports a duration literal outside the accepted grammar.
type FormatError struct {
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid duration %q: %s", e.Input, e.Reason)
	}
	return fmt.Sprintf("invalid duration %q (expected <digits><d|h|m|s|ms>, e.g. 10m)", e.Input)
}

// ParseDuration parses literals such as "1d", "12h", "10m", "30s" and "100ms".
// Unlike time.ParseDuration it accepts days and rejects signs, fractions and
// compound values.
func ParseDuration(s string) (time.Duration, error) {
	m := durationRe.FindStringSubmatch(s)
	if m == nil {
		return 0, &FormatError{Input: s}
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, &FormatError{Input: s, Reason: "magnitude out of range"}
	}
	unit := durationUnits[m[2]]
	if n > math.MaxInt64/int64(unit) {
		return 0, &FormatError{Input: s, Reason: "magnitude out of range"}
	}
	return time.Duration(n) * unit, nil
}
