package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"haversine-sensor/internal/component"
	"haversine-sensor/internal/landmark"
	"haversine-sensor/internal/metrics"
	"haversine-sensor/internal/resource"
)

// DistanceSensor is the component surface served over HTTP.
type DistanceSensor interface {
	Readings(ctx context.Context) (map[string]any, error)
	DoCommand(ctx context.Context, cmd map[string]any) (map[string]any, error)
	Geometries(ctx context.Context) ([]resource.Geometry, error)
	Status() []component.SlotStatus
	Attributes() map[string]any
}

// LandmarkLister lists stored landmarks.
type LandmarkLister interface {
	List(ctx context.Context) ([]landmark.Landmark, error)
}

type Options struct {
	DB        *sql.DB
	Sensor    DistanceSensor
	Landmarks LandmarkLister
	Metrics   *metrics.Metrics

	// Reconfigure applies new component attributes. PUT /api/v1/config is
	// rejected when nil.
	Reconfigure func(attrs map[string]any) error

	ReadingsTimeout time.Duration
	StreamInterval  time.Duration
}

func NewMux(opts Options) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, opts.DB, opts.Metrics)
	registerSensor(mux, opts)
	registerStream(mux, opts)
	registerLandmarks(mux, opts.Landmarks, opts.Metrics)
	mux.Handle("GET /metrics", opts.Metrics.Handler())
	return mux
}

// handle registers h under pattern, counting requests under pattern as the
// route label.
func handle(mux *http.ServeMux, m *metrics.Metrics, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, m.WrapHandler(pattern, h))
}
