package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the API.
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	providerRequestsTotal *prometheus.CounterVec
	streamFragmentsTotal  prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates a metrics instance backed by its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbiter_http_requests_total",
				Help: "Total number of HTTP requests by endpoint and status code",
			},
			[]string{"endpoint", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arbiter_http_request_duration_seconds",
				Help:    "HTTP request duration by endpoint",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		providerRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbiter_provider_requests_total",
				Help: "Total number of upstream provider calls by model and outcome",
			},
			[]string{"model", "outcome"},
		),
		streamFragmentsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "arbiter_stream_fragments_total",
				Help: "Total number of streamed text fragments written to clients",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.providerRequestsTotal,
		m.streamFragmentsTotal,
	)

	return m
}

// Handler returns the Prometheus exposition handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records a completed HTTP request.
func (m *Metrics) RecordRequest(endpoint string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordProviderCall records the outcome of one upstream call.
func (m *Metrics) RecordProviderCall(model string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.providerRequestsTotal.WithLabelValues(model, outcome).Inc()
}

// RecordStreamFragment counts a single streamed fragment.
func (m *Metrics) RecordStreamFragment() {
	m.streamFragmentsTotal.Inc()
}
