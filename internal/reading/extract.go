package reading

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotTraversable = errors.New("parent is neither a mapping nor an object")
	ErrKeyNotFound    = errors.New("key not found")
	ErrNotNumeric     = errors.New("value is not a finite number")
)

// Mapping is implemented by keyed containers that are not plain Go maps.
type Mapping interface {
	Get(key string) (any, bool)
}

// Object is implemented by values that expose named fields.
type Object interface {
	Field(name string) (any, bool)
}

// Fields adapts an accessor table to Object.
type Fields map[string]func() any

// Field implements Object.
func (f Fields) Field(name string) (any, bool) {
	get, ok := f[name]
	if !ok {
		return nil, false
	}
	return get(), true
}

// PathError describes a failure to resolve a path against a reading.
type PathError struct {
	Path    Path
	Segment string
	Value   any
	Err     error
}

func (e *PathError) Error() string {
	switch {
	case errors.Is(e.Err, ErrNotTraversable):
		return fmt.Sprintf("cannot access %q in path %s, %v: %v", e.Segment, e.Path, e.Err, e.Value)
	case errors.Is(e.Err, ErrKeyNotFound):
		return fmt.Sprintf("key %q not found in path %s", e.Segment, e.Path)
	case errors.Is(e.Err, ErrNotNumeric):
		return fmt.Sprintf("could not convert value to float at path %s: %v", e.Path, e.Value)
	default:
		return fmt.Sprintf("path %s: %v", e.Path, e.Err)
	}
}

func (e *PathError) Unwrap() error { return e.Err }

// Lookup walks p through r and returns the terminal value. A terminal mapping
// holding a "value" key is replaced by that value.
func Lookup(r any, p Path) (any, error) {
	if len(p) == 0 {
		return nil, &PathError{Path: p, Err: ErrEmptyPath}
	}

	current := r
	for _, key := range p {
		if get, ok := asMapping(current); ok {
			next, found := get(key)
			if !found {
				return nil, &PathError{Path: p, Segment: key, Err: ErrKeyNotFound}
			}
			current = next
			continue
		}
		if obj, ok := current.(Object); ok {
			next, found := obj.Field(key)
			if !found {
				return nil, &PathError{Path: p, Segment: key, Err: ErrKeyNotFound}
			}
			current = next
			continue
		}
		return nil, &PathError{Path: p, Segment: key, Value: current, Err: ErrNotTraversable}
	}

	if get, ok := asMapping(current); ok {
		if inner, found := get("value"); found {
			current = inner
		}
	}
	return current, nil
}

// Float resolves p and converts the terminal value to a finite float64.
func Float(r any, p Path) (float64, error) {
	v, err := Lookup(r, p)
	if err != nil {
		return 0, err
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, &PathError{Path: p, Value: v, Err: ErrNotNumeric}
	}
	return f, nil
}

// String resolves p and stringifies the terminal value.
func String(r any, p Path) (string, error) {
	v, err := Lookup(r, p)
	if err != nil {
		return "", err
	}
	return toString(v), nil
}

// AsFloat converts a scalar the same way Float converts a terminal value.
func AsFloat(v any) (float64, bool) {
	return toFloat(v)
}

func asMapping(v any) (func(string) (any, bool), bool) {
	switch m := v.(type) {
	case map[string]any:
		return func(k string) (any, bool) {
			x, ok := m[k]
			return x, ok
		}, true
	case map[string]string:
		return func(k string) (any, bool) {
			x, ok := m[k]
			return x, ok
		}, true
	case map[string]float64:
		return func(k string) (any, bool) {
			x, ok := m[k]
			return x, ok
		}, true
	case Mapping:
		return m.Get, true
	default:
		return nil, false
	}
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return string(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case time.Time:
		return s.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return s.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}
