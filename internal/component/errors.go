package component

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingArgument is returned by DoCommand when a location or one of its
	// coordinates is absent.
	ErrMissingArgument = errors.New("both location_1 and location_2 must be provided in the format: {\"latitude\": float, \"longitude\": float}")
	// ErrInvalidArgument is returned by DoCommand for coordinates that are not numbers.
	ErrInvalidArgument = errors.New("invalid command argument")
	// ErrDependencyUnresolved marks a configured sensor missing from the
	// dependency set. It is logged, never returned from a query.
	ErrDependencyUnresolved = errors.New("configured sensor not found in dependencies")
)

// ConfigError rejects a whole attribute set.
type ConfigError struct {
	Slot string
	Msg  string
	Err  error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Slot != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Slot, e.Msg, e.Err)
	case e.Slot != "":
		return fmt.Sprintf("%s %s", e.Slot, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	default:
		return e.Msg
	}
}

func (e *ConfigError) Unwrap() error { return e.Err }

// UpstreamError wraps a failed reading fetch from one slot's dependency.
type UpstreamError struct {
	Slot       string
	Dependency string
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s (%s): get readings: %v", e.Slot, e.Dependency, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ExtractionError wraps a coordinate extraction failure for one slot.
type ExtractionError struct {
	Slot string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s: extract coordinates: %v", e.Slot, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
