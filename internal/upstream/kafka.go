package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaSensor exposes the latest JSON object consumed from a topic.
type KafkaSensor struct {
	topic  string
	reader messageReader
	latest *latest
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewKafkaSensor starts consuming topic from the newest offset.
func NewKafkaSensor(brokers []string, groupID, topic string, logger *slog.Logger) *KafkaSensor {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return newKafkaSensor(topic, reader, logger)
}

func newKafkaSensor(topic string, reader messageReader, logger *slog.Logger) *KafkaSensor {
	ctx, cancel := context.WithCancel(context.Background())
	s := &KafkaSensor{
		topic:  topic,
		reader: reader,
		latest: newLatest(),
		logger: logger.With("topic", topic),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

func (s *KafkaSensor) run(ctx context.Context) {
	defer close(s.done)
	s.logger.Info("consumer started")

	backoff := time.Second
	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				s.logger.Info("consumer stopped")
				s.latest.end(context.Canceled)
				return
			}
			s.logger.Error("kafka read failed", "error", err)
			select {
			case <-time.After(backoff):
				if backoff < 10*time.Second {
					backoff *= 2
				}
				continue
			case <-ctx.Done():
				s.latest.end(ctx.Err())
				return
			}
		}
		backoff = time.Second

		var r map[string]any
		if err := json.Unmarshal(msg.Value, &r); err != nil || r == nil {
			s.logger.Warn("failed to parse sensor message",
				"error", err,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
			continue
		}
		s.latest.set(r)
	}
}

func (s *KafkaSensor) Readings(ctx context.Context) (map[string]any, error) {
	return s.latest.get(ctx)
}

// Close stops the consumer and releases the reader.
func (s *KafkaSensor) Close() error {
	s.cancel()
	<-s.done
	return s.reader.Close()
}
