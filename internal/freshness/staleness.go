package freshness

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"haversine-sensor/internal/reading"
)

var errBadTimestamp = errors.New("unrecognized ISO-8601 timestamp")

var (
	offsetLayouts = []string{
		"2006-01-02T15:04:05.999999999Z07:00",
		"2006-01-02T15:04:05.999999999Z0700",
		"2006-01-02T15:04Z07:00",
		"2006-01-02T15Z07:00",
	}
	naiveLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02T15",
		"2006-01-02",
	}
)

// Policy is the freshness rule of one binding. The zero Policy accepts every
// reading.
type Policy struct {
	UpdatedPath reading.Path
	Expire      time.Duration
}

// Enabled reports whether both a timestamp path and a positive expiry are set.
func (p Policy) Enabled() bool {
	return len(p.UpdatedPath) > 0 && p.Expire > 0
}

// Valid reports whether r is fresh at now. Extraction and parse failures make
// the reading stale rather than returning an error.
func (p Policy) Valid(r any, now time.Time) bool {
	if !p.Enabled() {
		return true
	}
	ts, err := reading.String(r, p.UpdatedPath)
	if err != nil {
		return false
	}
	updated, _, err := ParseTimestamp(ts)
	if err != nil {
		return false
	}
	return now.Sub(updated) <= p.Expire
}

// IsValid applies a Policy built from the arguments at the current time.
func IsValid(r any, updatedPath reading.Path, expire time.Duration) bool {
	return Policy{UpdatedPath: updatedPath, Expire: expire}.Valid(r, time.Now())
}

// ParseTimestamp parses an ISO-8601 date or date-time. A trailing "Z" means
// UTC. aware is false when the input carries no offset; such values are
// interpreted in the local zone.
func ParseTimestamp(s string) (t time.Time, aware bool, err error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}
	if strings.HasSuffix(s, "z") {
		s = s[:len(s)-1] + "Z"
	}

	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true, nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("%w: %q", errBadTimestamp, s)
}
