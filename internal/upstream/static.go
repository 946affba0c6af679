package upstream

import (
	"context"
	"fmt"
	"maps"
)

// Static returns a fixed reading. It stands in for fixed positions such as a
// base station.
type Static struct {
	reading map[string]any
}

func NewStatic(reading map[string]any) *Static {
	return &Static{reading: reading}
}

func newStaticFromAttributes(attrs map[string]any) (*Static, error) {
	r, ok := attrs["reading"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("static: attributes.reading must be an object")
	}
	return NewStatic(r), nil
}

func (s *Static) Readings(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return maps.Clone(s.reading), nil
}
