package httpapi

import (
	"net/http"
	"time"

	"haversine-sensor/internal/config"
)

func NewServer(cfg config.Config, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           Middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
