// Package metrics exposes Prometheus collectors for the distance service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcomes.
const (
	OutcomeOK              = "ok"
	OutcomeEmpty           = "empty"
	OutcomeStale           = "stale"
	OutcomeUpstreamError   = "upstream_error"
	OutcomeExtractionError = "extraction_error"
	OutcomeMissingArgument = "missing_argument"
	OutcomeInvalidArgument = "invalid_argument"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	queries           *prometheus.CounterVec
	upstreamFetch     *prometheus.HistogramVec
	commands          *prometheus.CounterVec
	reconfigurations  prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "haversine_queries_total",
			Help: "Distance queries by outcome.",
		}, []string{"outcome"}),
		upstreamFetch: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "haversine_upstream_fetch_seconds",
			Help:    "Latency of upstream reading fetches by slot.",
			Buckets: prometheus.DefBuckets,
		}, []string{"slot"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "haversine_commands_total",
			Help: "Direct distance commands by outcome.",
		}, []string{"outcome"}),
		reconfigurations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "haversine_reconfigurations_total",
			Help: "Completed component reconfigurations.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.queries,
		m.upstreamFetch,
		m.commands,
		m.reconfigurations,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// WrapHandler records request count and latency under route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Query(outcome string) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) UpstreamFetch(slot string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamFetch.WithLabelValues(slot).Observe(d.Seconds())
}

func (m *Metrics) Command(outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Reconfigured() {
	if m == nil {
		return
	}
	m.reconfigurations.Inc()
}
