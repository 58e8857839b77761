package frontdoor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the front door
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rewritesTotal   *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics instance on its own registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frontdoor_requests_total",
				Help: "Total number of requests dispatched by route, method and status",
			},
			[]string{"route", "method", "status_code"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "frontdoor_request_duration_seconds",
				Help:    "Request duration in seconds, including the delegate",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),

		rewritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frontdoor_rewrites_total",
				Help: "Total number of delegate-bound requests by prefix rewrite outcome",
			},
			[]string{"outcome"},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.rewritesTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// RecordRequest records a dispatched request
func (m *Metrics) RecordRequest(route, method, statusCode string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(route, normalizeMethod(method), statusCode).Inc()
	m.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordRewrite records the outcome of a prefix rewrite
func (m *Metrics) RecordRewrite(outcome string) {
	m.rewritesTotal.WithLabelValues(outcome).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// normalizeMethod bounds the method label to the standard verbs.
func normalizeMethod(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodConnect, http.MethodOptions, http.MethodTrace:
		return method
	default:
		return "OTHER"
	}
}
