package component

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"haversine-sensor/internal/freshness"
	"haversine-sensor/internal/reading"
	"haversine-sensor/internal/resource"
)

// captureHandler records log records for assertion in tests.
type captureHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *captureHandler) WithGroup(string) slog.Handler { return h }

func (h *captureHandler) count(level slog.Level, msg string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Level == level && r.Message == msg {
			n++
		}
	}
	return n
}

type fakeSensor struct {
	reading map[string]any
	err     error
	block   bool
	calls   atomic.Int32
}

func (f *fakeSensor) Readings(ctx context.Context) (map[string]any, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.reading, nil
}

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func londonReading() map[string]any {
	return map[string]any{
		"position": map[string]any{"lat": "51.5074", "lng": -0.1278},
		"updated":  testNow.Add(-5 * time.Second).Format(time.RFC3339),
	}
}

func newYorkReading() map[string]any {
	return map[string]any{
		"location": map[string]any{
			"latitude":  map[string]any{"value": 40.7128},
			"longitude": map[string]any{"value": -74.0060},
		},
		"updated": testNow.Add(-5 * time.Second).Format(time.RFC3339),
	}
}

func bothAttrs() map[string]any {
	return map[string]any{
		"sensor_1": map[string]any{"name": "gps-a", "latitude": "position.lat", "longitude": "position.lng"},
		"sensor_2": map[string]any{"name": "gps-b", "latitude": "location.latitude", "longitude": "location.longitude"},
	}
}

func newTestComponent(t *testing.T, attrs map[string]any, deps resource.Dependencies) (*Component, *captureHandler) {
	t.Helper()
	h := &captureHandler{}
	c, err := New("distance", attrs, deps, slog.New(h), WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, h
}

func TestValidate(t *testing.T) {
	deps, err := Validate(bothAttrs())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if want := []string{"gps-a", "gps-b"}; !reflect.DeepEqual(deps, want) {
		t.Errorf("Validate() = %v, want %v", deps, want)
	}

	deps, err = Validate(map[string]any{})
	if err != nil || len(deps) != 0 {
		t.Errorf("Validate(empty) = %v, %v, want no deps", deps, err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		attrs   map[string]any
		wantMsg string
		wantErr error
	}{
		{
			name:    "missing longitude",
			attrs:   map[string]any{"sensor_1": map[string]any{"name": "a", "latitude": "lat"}},
			wantMsg: "sensor_1 if configured must have name, latitude, and longitude fields",
		},
		{
			name:    "missing name in second slot",
			attrs:   map[string]any{"sensor_2": map[string]any{"latitude": "lat", "longitude": "lng"}},
			wantMsg: "sensor_2 if configured must have name, latitude, and longitude fields",
		},
		{
			name:  "not an object",
			attrs: map[string]any{"sensor_1": "gps"},
		},
		{
			name:    "empty path segment",
			attrs:   map[string]any{"sensor_1": map[string]any{"name": "a", "latitude": "pos..lat", "longitude": "lng"}},
			wantErr: reading.ErrEmptyPath,
		},
		{
			name: "bad expire",
			attrs: map[string]any{"sensor_1": map[string]any{
				"name": "a", "latitude": "lat", "longitude": "lng", "updated": "ts", "expire": "1w",
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.attrs)
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Validate() error = %v, want *ConfigError", err)
			}
			if tt.wantMsg != "" && err.Error() != tt.wantMsg {
				t.Errorf("message = %q, want %q", err.Error(), tt.wantMsg)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want wrapping %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_BadExpireWrapsFormatError(t *testing.T) {
	_, err := Validate(map[string]any{"sensor_1": map[string]any{
		"name": "a", "latitude": "lat", "longitude": "lng", "expire": "10M",
	}})
	var fe *freshness.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *freshness.FormatError", err)
	}
}

func TestReadings_BothBound(t *testing.T) {
	deps := resource.Dependencies{
		{API: resource.APISensor, Name: "gps-a"}: &fakeSensor{reading: londonReading()},
		{API: resource.APISensor, Name: "gps-b"}: &fakeSensor{reading: newYorkReading()},
	}
	c, _ := newTestComponent(t, bothAttrs(), deps)

	got, err := c.Readings(context.Background())
	if err != nil {
		t.Fatalf("Readings() error = %v", err)
	}
	km, ok := got["distance_km"].(float64)
	if !ok {
		t.Fatalf("distance_km type = %T", got["distance_km"])
	}
	if math.Abs(km-5570)/5570 > 0.005 {
		t.Errorf("distance_km = %v, want ~5570", km)
	}
	loc1 := got["location_1"].(map[string]any)
	if loc1["latitude"] != 51.5074 || loc1["longitude"] != -0.1278 {
		t.Errorf("location_1 = %v", loc1)
	}
	loc2 := got["location_2"].(map[string]any)
	if loc2["latitude"] != 40.7128 {
		t.Errorf("location_2 = %v", loc2)
	}
}

func TestReadings_OnlyOneSlotBound(t *testing.T) {
	s1 := &fakeSensor{reading: londonReading()}
	attrs := map[string]any{"sensor_1": bothAttrs()["sensor_1"]}
	c, h := newTestComponent(t, attrs, resource.Dependencies{
		{API: resource.APISensor, Name: "gps-a"}: s1,
	})

	got, err := c.Readings(context.Background())
	if err != nil {
		t.Fatalf("Readings() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Readings() = %v, want empty non-nil map", got)
	}
	if s1.calls.Load() != 0 {
		t.Errorf("upstream called %d times, want 0", s1.calls.Load())
	}
	if h.count(slog.LevelWarn, "one or both sensors not configured; readings will be empty and only commands are fully functional") != 1 {
		t.Error("expected a not-configured warning")
	}
}

func TestReconfigure_UnresolvedDependency(t *testing.T) {
	c, h := newTestComponent(t, bothAttrs(), resource.Dependencies{
		{API: resource.APISensor, Name: "gps-a"}: &fakeSensor{reading: londonReading()},
	})

	if h.count(slog.LevelWarn, "dependency unresolved") != 1 {
		t.Errorf("expected one unresolved warning")
	}
	st := c.Status()
	if st[0].State != StateBound || st[1].State != StateUnresolved {
		t.Errorf("states = %s, %s, want bound, unresolved", st[0].State, st[1].State)
	}
	got, err := c.Readings(context.Background())
	if err != nil || len(got) != 0 {
		t.Errorf("Readings() = %v, %v, want empty", got, err)
	}
}

func TestReconfigure_ResolutionOrder(t *testing.T) {
	asSensor := &fakeSensor{reading: londonReading()}
	asMovement := &fakeSensor{reading: londonReading()}
	movementOnly := &fakeSensor{reading: newYorkReading()}

	c, _ := newTestComponent(t, bothAttrs(), resource.Dependencies{
		{API: resource.APISensor, Name: "gps-a"}:         asSensor,
		{API: resource.APIMovementSensor, Name: "gps-a"}: asMovement,
		{API: resource.APIMovementSensor, Name: "gps-b"}: movementOnly,
	})

	st := c.Status()
	if st[0].API != string(resource.APISensor) {
		t.Errorf("sensor_1 api = %q, want sensor", st[0].API)
	}
	if st[1].API != string(resource.APIMovementSensor) {
		t.Errorf("sensor_2 api = %q, want movement_sensor", st[1].API)
	}

	if _, err := c.Readings(context.Background()); err != nil {
		t.Fatalf("Readings() error = %v", err)
	}
	if asSensor.calls.Load() != 1 || asMovement.calls.Load() != 0 || movementOnly.calls.Load() != 1 {
		t.Errorf("calls = %d/%d/%d, want 1/0/1", asSensor.calls.Load(), asMovement.calls.Load(), movementOnly.calls.Load())
	}
}

func TestReadings_Freshness(t *testing.T) {
	withExpiry := func(expire string) map[string]any {
		attrs := bothAttrs()
		for _, slot := range []string{"sensor_1", "sensor_2"} {
			block := attrs[slot].(map[string]any)
			block["updated"] = "updated"
			block["expire"] = expire
		}
		return attrs
	}

	tests := []struct {
		name      string
		expire    string
		reading2  map[string]any
		wantEmpty bool
	}{
		{name: "fresh", expire: "10s", reading2: newYorkReading(), wantEmpty: false},
		{name: "stale", expire: "3s", reading2: newYorkReading(), wantEmpty: true},
		{name: "missing timestamp", expire: "10s", reading2: map[string]any{
			"location": map[string]any{"latitude": 1.0, "longitude": 2.0},
		}, wantEmpty: true},
		{name: "zero expiry disables check", expire: "0s", reading2: map[string]any{
			"location": map[string]any{"latitude": 1.0, "longitude": 2.0},
		}, wantEmpty: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestComponent(t, withExpiry(tt.expire), resource.Dependencies{
				{API: resource.APISensor, Name: "gps-a"}: &fakeSensor{reading: londonReading()},
				{API: resource.APISensor, Name: "gps-b"}: &fakeSensor{reading: tt.reading2},
			})
			got, err := c.Readings(context.Background())
			if err != nil {
				t.Fatalf("Readings() error = %v", err)
			}
			if (len(got) == 0) != tt.wantEmpty {
				t.Errorf("Readings() = %v, wantEmpty %v", got, tt.wantEmpty)
			}
		})
	}
}

func TestReadings_UpstreamError(t *testing.T) {
	boom := errors.New("boom")
	c, _ := newTestComponent(t, bothAttrs(), resource.Dependencies{
		{API: resource.APISensor, Name: "gps-a"}: &fakeSensor{reading: londonReading()},
		{API: resource.APISensor, Name: "gps-b"}: &fakeSensor{err: boom},
	})

	_, err := c.Readings(context.Background())
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("error = %v, want *UpstreamError", err)
	}
	if ue.Slot != Slot2 || ue.Dependency != "gps-b" {
		t.Errorf("UpstreamError = %+v", ue)
	}
	if !errors.Is(err, boom) {
		t.Errorf("error does not wrap cause: %v", err)
	}
}

func TestReadings_Timeout(t *testing.T) {
	c, _ := newTestComponent(t, bothAttrs(), resource.Dependencies{
		{API: resource.APISensor, Name: "gps-a"}: &fakeSensor{reading: londonReading()},
		{API: resource.APISensor, Name: "gps-b"}: &fakeSensor{block: true},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Readings(ctx)
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("error = %v, want *UpstreamError", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
}

func TestReadings_ExtractionError(t *testing.T) {
	c, h := newTestComponent(t, bothAttrs(), resource.Dependencies{
		{API: resource.APISensor, Name: "gps-a"}: &fakeSensor{reading: londonReading()},
		{API: resource.APISensor, Name: "gps-b"}: &fakeSensor{reading: map[string]any{"location": map[string]any{"latitude": 1.0}}},
	})

	_, err := c.Readings(context.Background())
	var ee *ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("error = %v, want *ExtractionError", err)
	}
	if ee.Slot != Slot2 {
		t.Errorf("Slot = %q, want %q", ee.Slot, Slot2)
	}
	if !errors.Is(err, reading.ErrKeyNotFound) {
		t.Errorf("error = %v, want wrapping ErrKeyNotFound", err)
	}
	if h.count(slog.LevelError, "error extracting coordinates") != 1 {
		t.Error("expected extraction failure to be logged")
	}
}

func TestReadings_NonNumericCoordinate(t *testing.T) {
	c, _ := newTestComponent(t, bothAttrs(), resource.Dependencies{
		{API: resource.APISensor, Name: "gps-a"}: &fakeSensor{reading: map[string]any{
			"position": map[string]any{"lat": "north", "lng": 0.0},
		}},
		{API: resource.APISensor, Name: "gps-b"}: &fakeSensor{reading: newYorkReading()},
	})

	_, err := c.Readings(context.Background())
	if !errors.Is(err, reading.ErrNotNumeric) {
		t.Fatalf("error = %v, want ErrNotNumeric", err)
	}
}

func TestDoCommand(t *testing.T) {
	c, _ := newTestComponent(t, nil, nil)

	tests := []struct {
		name    string
		cmd     map[string]any
		wantKm  float64
		wantErr error
	}{
		{
			name: "same point",
			cmd: map[string]any{
				"location_1": map[string]any{"latitude": 0.0, "longitude": 0.0},
				"location_2": map[string]any{"latitude": 0.0, "longitude": 0.0},
			},
			wantKm: 0,
		},
		{
			name: "numeric strings",
			cmd: map[string]any{
				"location_1": map[string]any{"latitude": "51.5074", "longitude": "-0.1278"},
				"location_2": map[string]any{"latitude": 40.7128, "longitude": -74.006},
			},
			wantKm: 5570,
		},
		{
			name:    "missing location_2",
			cmd:     map[string]any{"location_1": map[string]any{"latitude": 0.0, "longitude": 0.0}},
			wantErr: ErrMissingArgument,
		},
		{
			name: "missing longitude",
			cmd: map[string]any{
				"location_1": map[string]any{"latitude": 0.0},
				"location_2": map[string]any{"latitude": 0.0, "longitude": 0.0},
			},
			wantErr: ErrMissingArgument,
		},
		{
			name: "location is not an object",
			cmd: map[string]any{
				"location_1": "here",
				"location_2": map[string]any{"latitude": 0.0, "longitude": 0.0},
			},
			wantErr: ErrMissingArgument,
		},
		{
			name: "non-numeric latitude",
			cmd: map[string]any{
				"location_1": map[string]any{"latitude": "north", "longitude": 0.0},
				"location_2": map[string]any{"latitude": 0.0, "longitude": 0.0},
			},
			wantErr: ErrInvalidArgument,
		},
		{name: "empty command", cmd: map[string]any{}, wantErr: ErrMissingArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.DoCommand(context.Background(), tt.cmd)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DoCommand() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DoCommand() error = %v", err)
			}
			km := got["distance_km"].(float64)
			if tt.wantKm == 0 {
				if km != 0 {
					t.Errorf("distance_km = %v, want 0", km)
				}
				return
			}
			if math.Abs(km-tt.wantKm)/tt.wantKm > 0.005 {
				t.Errorf("distance_km = %v, want ~%v", km, tt.wantKm)
			}
		})
	}
}

func TestDoCommand_IgnoresBindings(t *testing.T) {
	s := &fakeSensor{err: errors.New("offline")}
	c, _ := newTestComponent(t, bothAttrs(), resource.Dependencies{
		{API: resource.APISensor, Name: "gps-a"}: s,
		{API: resource.APISensor, Name: "gps-b"}: s,
	})

	_, err := c.DoCommand(context.Background(), map[string]any{
		"location_1": map[string]any{"latitude": 1.0, "longitude": 1.0},
		"location_2": map[string]any{"latitude": 2.0, "longitude": 2.0},
	})
	if err != nil {
		t.Fatalf("DoCommand() error = %v", err)
	}
	if s.calls.Load() != 0 {
		t.Errorf("upstream called %d times, want 0", s.calls.Load())
	}
}

func TestGeometries(t *testing.T) {
	c, _ := newTestComponent(t, nil, nil)
	got, err := c.Geometries(context.Background())
	if err != nil {
		t.Fatalf("Geometries() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Geometries() = %#v, want empty non-nil slice", got)
	}
}

func TestReconfigure_Idempotent(t *testing.T) {
	deps := resource.Dependencies{
		{API: resource.APISensor, Name: "gps-a"}: &fakeSensor{reading: londonReading()},
	}
	c, _ := newTestComponent(t, bothAttrs(), deps)
	first := c.Status()

	if err := c.Reconfigure(bothAttrs(), deps); err != nil {
		t.Fatalf("Reconfigure() error = %v", err)
	}
	if second := c.Status(); !reflect.DeepEqual(first, second) {
		t.Errorf("status after second reconfigure = %+v, want %+v", second, first)
	}
}

func TestReconfigure_ResetsRemovedSlots(t *testing.T) {
	deps := resource.Dependencies{
		{API: resource.APISensor, Name: "gps-a"}: &fakeSensor{reading: londonReading()},
		{API: resource.APISensor, Name: "gps-b"}: &fakeSensor{reading: newYorkReading()},
	}
	c, _ := newTestComponent(t, bothAttrs(), deps)

	if err := c.Reconfigure(map[string]any{"sensor_2": bothAttrs()["sensor_2"]}, deps); err != nil {
		t.Fatalf("Reconfigure() error = %v", err)
	}
	st := c.Status()
	if st[0].State != StateUnconfigured || st[0].Dependency != "" {
		t.Errorf("sensor_1 = %+v, want unconfigured", st[0])
	}
	if st[1].State != StateBound {
		t.Errorf("sensor_2 = %+v, want bound", st[1])
	}
}

func TestReconfigure_InvalidKeepsBindings(t *testing.T) {
	deps := resource.Dependencies{
		{API: resource.APISensor, Name: "gps-a"}: &fakeSensor{reading: londonReading()},
		{API: resource.APISensor, Name: "gps-b"}: &fakeSensor{reading: newYorkReading()},
	}
	c, _ := newTestComponent(t, bothAttrs(), deps)

	err := c.Reconfigure(map[string]any{"sensor_1": map[string]any{"name": "x"}}, deps)
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("Reconfigure() error = %v, want *ConfigError", err)
	}
	if got, err := c.Readings(context.Background()); err != nil || len(got) == 0 {
		t.Errorf("Readings() after rejected reconfigure = %v, %v", got, err)
	}
}

func TestStatus_ReportsConfig(t *testing.T) {
	attrs := bothAttrs()
	attrs["sensor_1"].(map[string]any)["updated"] = "updated"
	attrs["sensor_1"].(map[string]any)["expire"] = "90s"
	c, _ := newTestComponent(t, attrs, nil)

	st := c.Status()
	if st[0].Latitude != "position.lat" || st[0].Updated != "updated" || st[0].Expire != "90s" {
		t.Errorf("sensor_1 status = %+v", st[0])
	}
	if st[0].State != StateUnresolved {
		t.Errorf("sensor_1 state = %s, want unresolved", st[0].State)
	}
}

func TestConcurrentReadingsAndReconfigure(t *testing.T) {
	deps := resource.Dependencies{
		{API: resource.APISensor, Name: "gps-a"}: &fakeSensor{reading: londonReading()},
		{API: resource.APISensor, Name: "gps-b"}: &fakeSensor{reading: newYorkReading()},
	}
	c, _ := newTestComponent(t, bothAttrs(), deps)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			got, err := c.Readings(context.Background())
			if err != nil {
				t.Errorf("Readings() error = %v", err)
				return
			}
			if len(got) != 0 && len(got) != 5 {
				t.Errorf("Readings() returned a partial result: %v", got)
			}
		}()
		go func() {
			defer wg.Done()
			if err := c.Reconfigure(bothAttrs(), deps); err != nil {
				t.Errorf("Reconfigure() error = %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestFormatExpire(t *testing.T) {
	tests := map[time.Duration]string{
		24 * time.Hour:          "1d",
		36 * time.Hour:          "36h",
		90 * time.Second:        "90s",
		10 * time.Minute:        "10m",
		1500 * time.Millisecond: "1500ms",
	}
	for d, want := range tests {
		if got := formatExpire(d); got != want {
			t.Errorf("formatExpire(%v) = %q, want %q", d, got, want)
		}
		back, err := freshness.ParseDuration(want)
		if err != nil || back != d {
			t.Errorf("ParseDuration(%q) = %v, %v, want %v", want, back, err, d)
		}
	}
}
