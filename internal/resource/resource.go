// Package resource describes the upstream capabilities the distance component
// consumes and the registry it resolves them from.
package resource

import (
	"context"
	"fmt"
)

// API identifies a capability kind.
type API string

const (
	APISensor         API = "sensor"
	APIMovementSensor API = "movement_sensor"
)

// ParseAPI validates s as a known API.
func ParseAPI(s string) (API, error) {
	switch API(s) {
	case APISensor, APIMovementSensor:
		return API(s), nil
	default:
		return "", fmt.Errorf("unknown api %q (allowed: %s, %s)", s, APISensor, APIMovementSensor)
	}
}

// Name is the fully qualified name of a dependency.
type Name struct {
	API  API
	Name string
}

func (n Name) String() string {
	return string(n.API) + "/" + n.Name
}

// Sensor produces readings. The context deadline bounds the call.
type Sensor interface {
	Readings(ctx context.Context) (map[string]any, error)
}

// Dependencies holds the resolved dependencies of a component.
type Dependencies map[Name]Sensor

// Lookup returns the dependency registered under name for the given api.
func (d Dependencies) Lookup(api API, name string) (Sensor, bool) {
	s, ok := d[Name{API: api, Name: name}]
	return s, ok && s != nil
}

// Geometry is a shape attached to a component. The distance component reports none.
type Geometry struct {
	Label string         `json:"label"`
	Type  string         `json:"type"`
	Data  map[string]any `json:"data,omitempty"`
}
