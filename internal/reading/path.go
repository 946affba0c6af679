// Package reading navigates nested sensor readings with dot-delimited field
// paths such as "position.latitude".
package reading

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyPath is returned when a path has no segments or an empty segment.
var ErrEmptyPath = errors.New("empty field path")

// Path is a parsed field path. Treat it as immutable once parsed.
type Path []string

// ParsePath splits a dot-delimited path into segments.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, ErrEmptyPath
	}
	parts := strings.Split(s, ".")
	for i, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: segment %d of %q", ErrEmptyPath, i, s)
		}
	}
	return Path(parts), nil
}

// MustParsePath is ParsePath for literals; it panics on error.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string {
	return strings.Join(p, ".")
}

// Equal reports whether both paths have the same segments.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}
