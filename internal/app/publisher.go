package app

import (
	"context"
	"log/slog"
	"time"

	"haversine-sensor/internal/geo"
)

// Publisher sends a JSON document to a topic.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

type distanceSource interface {
	FetchDistance(ctx context.Context) (*geo.DistanceResult, error)
}

type publishedDistance struct {
	Time time.Time `json:"time"`
	*geo.DistanceResult
}

// publishLoop queries src every interval and publishes available distances
// until ctx is done. Failures are logged and the loop keeps going.
func publishLoop(ctx context.Context, src distanceSource, pub Publisher, topic string, interval, timeout time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("distance publisher started", "topic", topic, "interval", interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("distance publisher stopped")
			return
		case <-ticker.C:
		}

		qctx, cancel := context.WithTimeout(ctx, timeout)
		res, err := src.FetchDistance(qctx)
		cancel()
		if err != nil {
			logger.Warn("distance query failed", "error", err)
			continue
		}
		if res == nil {
			logger.Debug("no distance to publish")
			continue
		}
		if err := pub.PublishJSON(topic, publishedDistance{Time: time.Now().UTC(), DistanceResult: res}); err != nil {
			logger.Warn("distance publish failed", "topic", topic, "error", err)
		}
	}
}
