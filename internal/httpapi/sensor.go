package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"haversine-sensor/internal/component"
	"haversine-sensor/internal/utils"
)

type sensorHandlers struct {
	sensor      DistanceSensor
	reconfigure func(map[string]any) error
	timeout     time.Duration
}

func registerSensor(mux *http.ServeMux, opts Options) {
	h := &sensorHandlers{
		sensor:      opts.Sensor,
		reconfigure: opts.Reconfigure,
		timeout:     opts.ReadingsTimeout,
	}
	if h.timeout <= 0 {
		h.timeout = 5 * time.Second
	}
	handle(mux, opts.Metrics, "GET /api/v1/readings", h.handleReadings)
	handle(mux, opts.Metrics, "POST /api/v1/command", h.handleCommand)
	handle(mux, opts.Metrics, "GET /api/v1/geometries", h.handleGeometries)
	handle(mux, opts.Metrics, "GET /api/v1/status", h.handleStatus)
	handle(mux, opts.Metrics, "GET /api/v1/config", h.handleGetConfig)
	handle(mux, opts.Metrics, "PUT /api/v1/config", h.handlePutConfig)
}

func (h *sensorHandlers) handleReadings(w http.ResponseWriter, r *http.Request) {
	timeout, err := durationParam(r, "timeout", h.timeout)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	readings, err := h.sensor.Readings(ctx)
	if err != nil {
		writeSensorError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, readings)
}

func (h *sensorHandlers) handleCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := utils.DecodeJSONObject(w, r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.sensor.DoCommand(r.Context(), cmd)
	if err != nil {
		writeSensorError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, res)
}

func (h *sensorHandlers) handleGeometries(w http.ResponseWriter, r *http.Request) {
	geoms, err := h.sensor.Geometries(r.Context())
	if err != nil {
		writeSensorError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, geoms)
}

func (h *sensorHandlers) handleStatus(w http.ResponseWriter, _ *http.Request) {
	utils.WriteJSON(w, http.StatusOK, h.sensor.Status())
}

func (h *sensorHandlers) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	utils.WriteJSON(w, http.StatusOK, h.sensor.Attributes())
}

func (h *sensorHandlers) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	if h.reconfigure == nil {
		utils.WriteError(w, http.StatusMethodNotAllowed, "reconfiguration is disabled")
		return
	}
	attrs, err := utils.DecodeJSONObject(w, r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.reconfigure(attrs); err != nil {
		writeSensorError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, h.sensor.Status())
}

func durationParam(r *http.Request, name string, def time.Duration) (time.Duration, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, errors.New("invalid '" + name + "' (expected positive duration such as 2s)")
	}
	return d, nil
}

// statusFor maps component errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		cfgErr  *component.ConfigError
		upErr   *component.UpstreamError
		extrErr *component.ExtractionError
	)
	switch {
	case errors.Is(err, component.ErrMissingArgument),
		errors.Is(err, component.ErrInvalidArgument),
		errors.As(err, &cfgErr):
		return http.StatusBadRequest
	case errors.As(err, &extrErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &upErr):
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeSensorError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("sensor request failed", "status", status, "error", err)
	}
	utils.WriteError(w, status, err.Error())
}
