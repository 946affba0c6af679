package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Query(OutcomeOK)
	m.Command(OutcomeOK)
	m.UpstreamFetch("sensor_1", time.Second)
	m.Reconfigured()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	if got := m.WrapHandler("x", next); got == nil {
		t.Fatal("WrapHandler returned nil")
	}
	if m.Registry() != nil {
		t.Fatal("Registry() on nil Metrics should be nil")
	}
}

func TestCounters(t *testing.T) {
	m := New()
	m.Query(OutcomeOK)
	m.Query(OutcomeOK)
	m.Query(OutcomeStale)
	m.Command(OutcomeMissingArgument)
	m.Reconfigured()

	if got := testutil.ToFloat64(m.queries.WithLabelValues(OutcomeOK)); got != 2 {
		t.Errorf("queries{ok} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.queries.WithLabelValues(OutcomeStale)); got != 1 {
		t.Errorf("queries{stale} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.commands.WithLabelValues(OutcomeMissingArgument)); got != 1 {
		t.Errorf("commands{missing_argument} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.reconfigurations); got != 1 {
		t.Errorf("reconfigurations = %v, want 1", got)
	}
}

func TestWrapHandlerAndExposition(t *testing.T) {
	m := New()
	h := m.WrapHandler("/api/v1/readings", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/readings", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status=%d want=%d", rec.Code, http.StatusTeapot)
	}
	if got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/api/v1/readings", "418")); got != 1 {
		t.Errorf("http_requests_total = %v, want 1", got)
	}

	srv := httptest.NewServer(m.Handler())
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), `http_requests_total{route="/api/v1/readings",status="418"} 1`) {
		t.Errorf("exposition missing request counter:\n%s", body)
	}
}
