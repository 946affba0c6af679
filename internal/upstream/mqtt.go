package upstream

import (
	"context"
	"encoding/json"
	"log/slog"

	"haversine-sensor/internal/mqtt"
)

// Subscriber is the part of the MQTT client used by MQTTSensor.
type Subscriber interface {
	Subscribe(topic string, handler mqtt.MessageHandler) error
	Unsubscribe(topic string)
}

// MQTTSensor exposes the latest JSON object published on a topic.
type MQTTSensor struct {
	topic  string
	sub    Subscriber
	latest *latest
	logger *slog.Logger
}

func NewMQTTSensor(sub Subscriber, topic string, logger *slog.Logger) (*MQTTSensor, error) {
	s := &MQTTSensor{
		topic:  topic,
		sub:    sub,
		latest: newLatest(),
		logger: logger.With("topic", topic),
	}
	if err := sub.Subscribe(topic, s.handle); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MQTTSensor) handle(_ string, payload []byte) {
	var r map[string]any
	if err := json.Unmarshal(payload, &r); err != nil {
		s.logger.Warn("failed to parse sensor message",
			"error", err,
			"payload", string(payload),
		)
		return
	}
	if r == nil {
		s.logger.Warn("ignoring null sensor message")
		return
	}
	s.latest.set(r)
}

func (s *MQTTSensor) Readings(ctx context.Context) (map[string]any, error) {
	return s.latest.get(ctx)
}

func (s *MQTTSensor) Close() error {
	s.sub.Unsubscribe(s.topic)
	return nil
}
