package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectMetric returns the metric in c whose labels include all of labels.
func collectMetric(t *testing.T, c prometheus.Collector, labels map[string]string) *dto.Metric {
	t.Helper()
	ch := make(chan prometheus.Metric, 100)
	c.Collect(ch)
	close(ch)

	for m := range ch {
		d := &dto.Metric{}
		if err := m.Write(d); err != nil {
			continue
		}
		got := make(map[string]string, len(d.GetLabel()))
		for _, lp := range d.GetLabel() {
			got[lp.GetName()] = lp.GetValue()
		}
		match := true
		for k, v := range labels {
			if got[k] != v {
				match = false
				break
			}
		}
		if match {
			return d
		}
	}
	return nil
}

func TestPrometheusMetrics_CountsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics("metrics-route"))
	r.Get("/api/v1/checkout/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for i := 0; i < 2; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/checkout/abc", nil))
	}

	m := collectMetric(t, httpRequestsTotal, map[string]string{
		"service": "metrics-route",
		"path":    "/api/v1/checkout/{id}",
		"status":  "404",
	})
	require.NotNil(t, m)
	assert.Equal(t, float64(2), m.GetCounter().GetValue())

	h := collectMetric(t, httpRequestDuration, map[string]string{"service": "metrics-route"})
	require.NotNil(t, h)
	assert.Equal(t, uint64(2), h.GetHistogram().GetSampleCount())
}

func TestPrometheusMetrics_DefaultStatusIs200(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics("metrics-default"))
	r.Get("/api/v1/cart/badge", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/cart/badge", nil))

	m := collectMetric(t, httpRequestsTotal, map[string]string{"service": "metrics-default", "status": "200"})
	require.NotNil(t, m)
}

func TestPrometheusMetrics_InFlightReturnsToZero(t *testing.T) {
	var during float64
	r := chi.NewRouter()
	r.Use(PrometheusMetrics("metrics-inflight"))
	r.Get("/x", func(w http.ResponseWriter, r *http.Request) {
		during = collectMetric(t, httpRequestsInFlight, map[string]string{"service": "metrics-inflight"}).GetGauge().GetValue()
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, float64(1), during)
	after := collectMetric(t, httpRequestsInFlight, map[string]string{"service": "metrics-inflight"})
	assert.Equal(t, float64(0), after.GetGauge().GetValue())
}

func TestStatusWriter_FirstStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := newStatusWriter(rec)
	sw.WriteHeader(http.StatusSeeOther)
	sw.WriteHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusSeeOther, sw.statusCode)
	assert.Same(t, rec, sw.Unwrap())
}

func TestStatusWriter_HijackUnsupported(t *testing.T) {
	sw := newStatusWriter(httptest.NewRecorder())
	_, _, err := sw.Hijack()
	assert.Error(t, err)
	sw.Flush()
}
