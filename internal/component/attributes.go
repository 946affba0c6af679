package component

import (
	"fmt"
	"time"

	"haversine-sensor/internal/freshness"
	"haversine-sensor/internal/reading"
)

const (
	Slot1 = "sensor_1"
	Slot2 = "sensor_2"
)

var slotNames = [2]string{Slot1, Slot2}

// SensorConfig is one parsed sensor_N attribute block.
type SensorConfig struct {
	Name      string
	Latitude  reading.Path
	Longitude reading.Path
	Freshness freshness.Policy
}

// Config is the parsed attribute set. A nil slot is not configured.
type Config struct {
	Sensors [2]*SensorConfig
}

// ParseAttributes validates attrs and converts every present slot. Any invalid
// slot rejects the whole set.
func ParseAttributes(attrs map[string]any) (Config, error) {
	var cfg Config
	for i, slot := range slotNames {
		raw, ok := attrs[slot]
		if !ok || raw == nil {
			continue
		}
		sc, err := parseSensor(slot, raw)
		if err != nil {
			return Config{}, err
		}
		cfg.Sensors[i] = sc
	}
	return cfg, nil
}

// Validate checks attrs and returns the names of the optional dependencies
// they reference, in slot order.
func Validate(attrs map[string]any) ([]string, error) {
	cfg, err := ParseAttributes(attrs)
	if err != nil {
		return nil, err
	}
	deps := []string{}
	for _, sc := range cfg.Sensors {
		if sc != nil {
			deps = append(deps, sc.Name)
		}
	}
	return deps, nil
}

func parseSensor(slot string, raw any) (*SensorConfig, error) {
	block, ok := raw.(map[string]any)
	if !ok {
		return nil, &ConfigError{Slot: slot, Msg: fmt.Sprintf("must be an object, got %T", raw)}
	}

	required := func(key string) (string, bool) {
		v, ok := block[key].(string)
		return v, ok && v != ""
	}
	name, okName := required("name")
	lat, okLat := required("latitude")
	lng, okLng := required("longitude")
	if !okName || !okLat || !okLng {
		return nil, &ConfigError{Slot: slot, Msg: "if configured must have name, latitude, and longitude fields"}
	}

	sc := &SensorConfig{Name: name}
	var err error
	if sc.Latitude, err = reading.ParsePath(lat); err != nil {
		return nil, &ConfigError{Slot: slot, Msg: "latitude", Err: err}
	}
	if sc.Longitude, err = reading.ParsePath(lng); err != nil {
		return nil, &ConfigError{Slot: slot, Msg: "longitude", Err: err}
	}

	if v, ok := block["updated"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, &ConfigError{Slot: slot, Msg: fmt.Sprintf("updated must be a string, got %T", v)}
		}
		if s != "" {
			if sc.Freshness.UpdatedPath, err = reading.ParsePath(s); err != nil {
				return nil, &ConfigError{Slot: slot, Msg: "updated", Err: err}
			}
		}
	}
	if v, ok := block["expire"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, &ConfigError{Slot: slot, Msg: fmt.Sprintf("expire must be a string, got %T", v)}
		}
		if s != "" {
			if sc.Freshness.Expire, err = freshness.ParseDuration(s); err != nil {
				return nil, &ConfigError{Slot: slot, Msg: "expire", Err: err}
			}
		}
	}
	return sc, nil
}

// formatExpire prints d in the largest unit of the duration grammar that
// divides it exactly.
func formatExpire(d time.Duration) string {
	units := []struct {
		suffix string
		unit   time.Duration
	}{
		{"d", 24 * time.Hour},
		{"h", time.Hour},
		{"m", time.Minute},
		{"s", time.Second},
	}
	for _, u := range units {
		if d%u.unit == 0 {
			return fmt.Sprintf("%d%s", d/u.unit, u.suffix)
		}
	}
	return fmt.Sprintf("%dms", d/time.Millisecond)
}
