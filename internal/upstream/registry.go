package upstream

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"haversine-sensor/internal/config"
	"haversine-sensor/internal/resource"
)

// Dependency types accepted in the component file.
const (
	TypeMQTT     = "mqtt"
	TypeKafka    = "kafka"
	TypeNMEA     = "nmea"
	TypeLandmark = "landmark"
	TypeStatic   = "static"
)

// Env carries the shared clients dependencies are built on. Unused fields may
// be left empty.
type Env struct {
	MQTT         Subscriber
	KafkaBrokers []string
	KafkaGroupID string
	Landmarks    LandmarkStore
	Logger       *slog.Logger
}

// Registry owns the dependencies built from a component file.
type Registry struct {
	deps    resource.Dependencies
	closers []io.Closer
	logger  *slog.Logger
}

// Build constructs every dependency in specs. On error anything already
// built is closed.
func Build(specs []config.DependencySpec, env Env) (*Registry, error) {
	logger := env.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{deps: make(resource.Dependencies, len(specs)), logger: logger}

	for _, spec := range specs {
		n := resource.Name{API: spec.API, Name: spec.Name}
		if _, dup := r.deps[n]; dup {
			_ = r.Close()
			return nil, fmt.Errorf("dependency %s: duplicate name", n)
		}
		s, err := build(spec, env, logger.With("dependency", n.String()))
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("dependency %s: %w", n, err)
		}
		r.deps[n] = s
		if c, ok := s.(io.Closer); ok {
			r.closers = append(r.closers, c)
		}
		logger.Info("dependency built", "name", spec.Name, "api", spec.API, "type", spec.Type)
	}
	return r, nil
}

func build(spec config.DependencySpec, env Env, logger *slog.Logger) (resource.Sensor, error) {
	attrs := spec.Attributes
	switch spec.Type {
	case TypeMQTT:
		if err := requireAPI(spec, resource.APISensor); err != nil {
			return nil, err
		}
		if env.MQTT == nil {
			return nil, errors.New("mqtt is disabled")
		}
		topic, err := stringAttr(attrs, "topic")
		if err != nil {
			return nil, err
		}
		return NewMQTTSensor(env.MQTT, topic, logger)

	case TypeKafka:
		if err := requireAPI(spec, resource.APISensor); err != nil {
			return nil, err
		}
		if len(env.KafkaBrokers) == 0 {
			return nil, errors.New("no kafka brokers configured")
		}
		topic, err := stringAttr(attrs, "topic")
		if err != nil {
			return nil, err
		}
		return NewKafkaSensor(env.KafkaBrokers, env.KafkaGroupID, topic, logger), nil

	case TypeNMEA:
		if err := requireAPI(spec, resource.APIMovementSensor); err != nil {
			return nil, err
		}
		if file, ok := attrs["file"].(string); ok && file != "" {
			f, err := os.Open(file)
			if err != nil {
				return nil, err
			}
			return NewNMEASensor(f, logger), nil
		}
		port, err := stringAttr(attrs, "port")
		if err != nil {
			return nil, err
		}
		var baud uint
		if v, ok := attrs["baud_rate"].(float64); ok && v > 0 {
			baud = uint(v)
		}
		return OpenNMEASerial(port, baud, logger)

	case TypeLandmark:
		if err := requireAPI(spec, resource.APISensor); err != nil {
			return nil, err
		}
		if env.Landmarks == nil {
			return nil, errors.New("no landmark store available")
		}
		name := spec.Name
		if v, ok := attrs["landmark"].(string); ok && strings.TrimSpace(v) != "" {
			name = strings.TrimSpace(v)
		}
		return NewLandmarkSensor(env.Landmarks, name), nil

	case TypeStatic:
		return newStaticFromAttributes(attrs)

	default:
		return nil, fmt.Errorf("unknown type %q", spec.Type)
	}
}

func requireAPI(spec config.DependencySpec, api resource.API) error {
	if spec.API != api {
		return fmt.Errorf("type %s provides %s, not %s", spec.Type, api, spec.API)
	}
	return nil
}

func stringAttr(attrs map[string]any, key string) (string, error) {
	v, ok := attrs[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("attributes.%s must be a non-empty string", key)
	}
	return v, nil
}

// Dependencies returns the built dependencies keyed by name.
func (r *Registry) Dependencies() resource.Dependencies {
	return r.deps
}

// Close stops consumers and drops subscriptions.
func (r *Registry) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	if err := errors.Join(errs...); err != nil {
		r.logger.Warn("closing dependencies", "error", err)
		return err
	}
	return nil
}
