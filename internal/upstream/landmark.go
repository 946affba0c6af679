package upstream

import (
	"context"
	"time"

	"haversine-sensor/internal/landmark"
)

// LandmarkStore looks up stored landmarks.
type LandmarkStore interface {
	Get(ctx context.Context, name string) (landmark.Landmark, error)
}

// LandmarkSensor reports a stored landmark as a fixed position. The row is
// read on every call so edits take effect without a reload.
type LandmarkSensor struct {
	name  string
	store LandmarkStore
}

func NewLandmarkSensor(store LandmarkStore, name string) *LandmarkSensor {
	return &LandmarkSensor{name: name, store: store}
}

func (s *LandmarkSensor) Readings(ctx context.Context) (map[string]any, error) {
	lm, err := s.store.Get(ctx, s.name)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"name":       lm.Name,
		"latitude":   lm.Latitude,
		"longitude":  lm.Longitude,
		"updated_at": lm.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}
