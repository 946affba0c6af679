package httpapi

import (
	"log/slog"
	"net/http"

	"haversine-sensor/internal/landmark"
	"haversine-sensor/internal/metrics"
	"haversine-sensor/internal/utils"
)

func registerLandmarks(mux *http.ServeMux, store LandmarkLister, m *metrics.Metrics) {
	handle(mux, m, "GET /api/v1/landmarks", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			utils.WriteJSON(w, http.StatusOK, []landmark.Landmark{})
			return
		}
		items, err := store.List(r.Context())
		if err != nil {
			slog.Error("failed to list landmarks", "error", err)
			utils.WriteError(w, http.StatusInternalServerError, "failed to list landmarks")
			return
		}
		utils.WriteJSON(w, http.StatusOK, items)
	})
}
