// Package component implements the distance sensor: two optional upstream
// sensors whose positions are extracted from their readings and compared with
// the haversine formula.
package component

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"haversine-sensor/internal/geo"
	"haversine-sensor/internal/metrics"
	"haversine-sensor/internal/reading"
	"haversine-sensor/internal/resource"
)

// State is the binding state of one slot.
type State string

const (
	StateUnconfigured State = "unconfigured"
	StateBound        State = "bound"
	StateUnresolved   State = "unresolved"
)

// resolutionOrder is the order in which a configured name is looked up.
var resolutionOrder = []resource.API{resource.APISensor, resource.APIMovementSensor}

type binding struct {
	cfg    *SensorConfig
	state  State
	api    resource.API
	sensor resource.Sensor
}

// SlotStatus describes one slot for diagnostics.
type SlotStatus struct {
	Slot       string `json:"slot"`
	State      State  `json:"state"`
	Dependency string `json:"dependency,omitempty"`
	API        string `json:"api,omitempty"`
	Latitude   string `json:"latitude,omitempty"`
	Longitude  string `json:"longitude,omitempty"`
	Updated    string `json:"updated,omitempty"`
	Expire     string `json:"expire,omitempty"`
}

type Component struct {
	name    string
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu    sync.RWMutex
	attrs map[string]any
	slots [2]binding
}

// Option customizes a Component.
type Option func(*Component)

// WithMetrics records query and command outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Component) { c.metrics = m }
}

// WithClock replaces the wall clock used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(c *Component) { c.now = now }
}

// New builds a component and applies the initial configuration.
func New(name string, attrs map[string]any, deps resource.Dependencies, logger *slog.Logger, opts ...Option) (*Component, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Component{
		name:   name,
		logger: logger.With("component", name),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	for i := range c.slots {
		c.slots[i].state = StateUnconfigured
	}
	if err := c.Reconfigure(attrs, deps); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Component) Name() string { return c.name }

// Reconfigure discards both bindings and rebuilds them from attrs and deps.
// Invalid attributes leave the current bindings untouched.
func (c *Component) Reconfigure(attrs map[string]any, deps resource.Dependencies) error {
	cfg, err := ParseAttributes(attrs)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.attrs = maps.Clone(attrs)
	for i, slot := range slotNames {
		c.slots[i] = binding{state: StateUnconfigured}

		sc := cfg.Sensors[i]
		if sc == nil {
			continue
		}
		c.slots[i].cfg = sc
		c.slots[i].state = StateUnresolved

		api, sensor, ok := resolve(deps, sc.Name)
		if !ok {
			c.logger.Warn("dependency unresolved",
				"slot", slot,
				"sensor", sc.Name,
				"error", ErrDependencyUnresolved,
			)
			continue
		}
		c.slots[i].state = StateBound
		c.slots[i].api = api
		c.slots[i].sensor = sensor
		c.logger.Debug("sensor bound",
			"slot", slot,
			"sensor", sc.Name,
			"api", api,
			"latitude", sc.Latitude.String(),
			"longitude", sc.Longitude.String(),
			"freshness", sc.Freshness.Enabled(),
		)
	}

	if !c.ready() {
		c.logger.Warn("one or both sensors not configured; readings will be empty and only commands are fully functional")
	}
	c.metrics.Reconfigured()
	return nil
}

func resolve(deps resource.Dependencies, name string) (resource.API, resource.Sensor, bool) {
	for _, api := range resolutionOrder {
		if s, ok := deps.Lookup(api, name); ok {
			return api, s, true
		}
	}
	return "", nil, false
}

// ready reports whether both slots are bound. Caller holds c.mu.
func (c *Component) ready() bool {
	return c.slots[0].state == StateBound && c.slots[1].state == StateBound
}

// FetchDistance queries both bound sensors and computes the distance between
// them. It returns nil without an error when a slot is not bound or a reading
// is stale. The context deadline bounds both upstream calls.
func (c *Component) FetchDistance(ctx context.Context) (*geo.DistanceResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.ready() {
		c.metrics.Query(metrics.OutcomeEmpty)
		return nil, nil
	}

	var readings [2]map[string]any
	g, gctx := errgroup.WithContext(ctx)
	for i := range c.slots {
		b := &c.slots[i]
		slot := slotNames[i]
		g.Go(func() error {
			start := time.Now()
			r, err := b.sensor.Readings(gctx)
			c.metrics.UpstreamFetch(slot, time.Since(start))
			if err != nil {
				return &UpstreamError{Slot: slot, Dependency: b.cfg.Name, Err: err}
			}
			readings[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.metrics.Query(metrics.OutcomeUpstreamError)
		return nil, err
	}

	for i, b := range c.slots {
		c.logger.Debug("sensor readings", "slot", slotNames[i], "readings", readings[i])
		c.logger.Debug("sensor paths",
			"slot", slotNames[i],
			"latitude", b.cfg.Latitude.String(),
			"longitude", b.cfg.Longitude.String(),
		)
	}

	now := c.now()
	for i, b := range c.slots {
		if !b.cfg.Freshness.Valid(readings[i], now) {
			c.logger.Debug("stale reading", "slot", slotNames[i], "expire", b.cfg.Freshness.Expire)
			c.metrics.Query(metrics.OutcomeStale)
			return nil, nil
		}
	}

	var points [2]geo.Point
	for i, b := range c.slots {
		p, err := extractPoint(readings[i], b.cfg)
		if err != nil {
			err = &ExtractionError{Slot: slotNames[i], Err: err}
			c.logger.Error("error extracting coordinates", "slot", slotNames[i], "error", err)
			c.metrics.Query(metrics.OutcomeExtractionError)
			return nil, err
		}
		points[i] = p
	}
	c.logger.Debug("extracted coordinates", "point_1", points[0], "point_2", points[1])

	res := geo.Distances(points[0], points[1])
	c.metrics.Query(metrics.OutcomeOK)
	return &res, nil
}

func extractPoint(r map[string]any, sc *SensorConfig) (geo.Point, error) {
	lat, err := reading.Float(r, sc.Latitude)
	if err != nil {
		return geo.Point{}, err
	}
	lng, err := reading.Float(r, sc.Longitude)
	if err != nil {
		return geo.Point{}, err
	}
	return geo.Point{Latitude: lat, Longitude: lng}, nil
}

// Readings returns the distance result as a reading, or an empty reading when
// no distance is available.
func (c *Component) Readings(ctx context.Context) (map[string]any, error) {
	res, err := c.FetchDistance(ctx)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return map[string]any{}, nil
	}
	return res.Map(), nil
}

// DoCommand computes the distance between the command's location_1 and
// location_2 without consulting the bound sensors.
func (c *Component) DoCommand(_ context.Context, cmd map[string]any) (map[string]any, error) {
	p1, p2, err := commandPoints(cmd)
	if err != nil {
		if errors.Is(err, ErrMissingArgument) {
			c.metrics.Command(metrics.OutcomeMissingArgument)
		} else {
			c.metrics.Command(metrics.OutcomeInvalidArgument)
		}
		return nil, err
	}
	c.metrics.Command(metrics.OutcomeOK)
	return geo.Distances(p1, p2).Map(), nil
}

// Geometries is always empty.
func (c *Component) Geometries(context.Context) ([]resource.Geometry, error) {
	return []resource.Geometry{}, nil
}

// Status reports the current binding of both slots.
func (c *Component) Status() []SlotStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]SlotStatus, 0, len(c.slots))
	for i, b := range c.slots {
		st := SlotStatus{Slot: slotNames[i], State: b.state, API: string(b.api)}
		if b.cfg != nil {
			st.Dependency = b.cfg.Name
			st.Latitude = b.cfg.Latitude.String()
			st.Longitude = b.cfg.Longitude.String()
			st.Updated = b.cfg.Freshness.UpdatedPath.String()
			if b.cfg.Freshness.Expire > 0 {
				st.Expire = formatExpire(b.cfg.Freshness.Expire)
			}
		}
		out = append(out, st)
	}
	return out
}

// Attributes returns a copy of the attributes last applied.
func (c *Component) Attributes() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.attrs == nil {
		return map[string]any{}
	}
	return maps.Clone(c.attrs)
}
