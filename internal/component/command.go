package component

import (
	"errors"
	"fmt"

	"haversine-sensor/internal/geo"
	"haversine-sensor/internal/reading"
)

// commandPoints reads location_1 and location_2 from a direct command.
// Coordinates may be numbers or numeric strings.
func commandPoints(cmd map[string]any) (geo.Point, geo.Point, error) {
	if cmd == nil || cmd["location_1"] == nil || cmd["location_2"] == nil {
		return geo.Point{}, geo.Point{}, ErrMissingArgument
	}
	p1, err := commandPoint(cmd, "location_1")
	if err != nil {
		return geo.Point{}, geo.Point{}, err
	}
	p2, err := commandPoint(cmd, "location_2")
	if err != nil {
		return geo.Point{}, geo.Point{}, err
	}
	return p1, p2, nil
}

func commandPoint(cmd map[string]any, key string) (geo.Point, error) {
	lat, err := commandCoordinate(cmd, key, "latitude")
	if err != nil {
		return geo.Point{}, err
	}
	lng, err := commandCoordinate(cmd, key, "longitude")
	if err != nil {
		return geo.Point{}, err
	}
	return geo.Point{Latitude: lat, Longitude: lng}, nil
}

func commandCoordinate(cmd map[string]any, key, field string) (float64, error) {
	v, err := reading.Float(cmd, reading.Path{key, field})
	switch {
	case err == nil:
		return v, nil
	case errors.Is(err, reading.ErrNotNumeric):
		return 0, fmt.Errorf("%w: %s.%s is not a number", ErrInvalidArgument, key, field)
	default:
		return 0, fmt.Errorf("%w (%s.%s is missing)", ErrMissingArgument, key, field)
	}
}
