// Package geo computes great-circle distances between two points.
package geo

import "math"

// Mean Earth radius and unit conversions of the haversine reference tables.
const (
	earthRadiusKm     = 6371.0088
	kmToMiles         = 0.621371192
	kmToNauticalMiles = 0.539956803
	degreesToRadians  = math.Pi / 180
)

// Point is a position in decimal degrees. Values are used as given.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DistanceResult is the outcome of one distance computation.
type DistanceResult struct {
	DistanceKm            float64 `json:"distance_km"`
	DistanceMiles         float64 `json:"distance_miles"`
	DistanceNauticalMiles float64 `json:"distance_nautical_miles"`
	Location1             Point   `json:"location_1"`
	Location2             Point   `json:"location_2"`
}

// Distances returns the haversine distance between p1 and p2 in kilometers,
// statute miles and nautical miles.
func Distances(p1, p2 Point) DistanceResult {
	km := haversineKm(p1, p2)
	return DistanceResult{
		DistanceKm:            km,
		DistanceMiles:         km * kmToMiles,
		DistanceNauticalMiles: km * kmToNauticalMiles,
		Location1:             p1,
		Location2:             p2,
	}
}

// Map renders the result as a generic reading.
func (d DistanceResult) Map() map[string]any {
	return map[string]any{
		"distance_km":             d.DistanceKm,
		"distance_miles":          d.DistanceMiles,
		"distance_nautical_miles": d.DistanceNauticalMiles,
		"location_1":              d.Location1.Map(),
		"location_2":              d.Location2.Map(),
	}
}

// Map renders the point as {"latitude", "longitude"}.
func (p Point) Map() map[string]any {
	return map[string]any{"latitude": p.Latitude, "longitude": p.Longitude}
}

func haversineKm(p1, p2 Point) float64 {
	lat1 := p1.Latitude * degreesToRadians
	lat2 := p2.Latitude * degreesToRadians
	dlat := lat2 - lat1
	dlon := (p2.Longitude - p1.Longitude) * degreesToRadians

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dlon/2)*math.Sin(dlon/2)
	// rounding can push a marginally outside [0, 1] for antipodal points
	a = math.Min(1, math.Max(0, a))

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
