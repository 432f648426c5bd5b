package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	clientCalls     *prometheus.CounterVec
	clientDuration  *prometheus.HistogramVec
}

// NewMetrics registers collectors under the given namespace.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "HTTP requests that ended in a domain error, by code.",
		}, []string{"path", "method", "code"}),
		clientCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_calls_total",
			Help:      "Resource client calls, by kind, operation and outcome.",
		}, []string{"kind", "op", "outcome"}),
		clientDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "client_call_duration_seconds",
			Help:      "Resource client call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "op"}),
	}
	m.registry.MustRegister(m.requests, m.requestDuration, m.errors, m.clientCalls, m.clientDuration)
	return m
}

// RecordRequest counts a served request.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError counts a request that failed with a domain error code.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordClientCall counts a resource client call. Outcome is "ok", "network" or "server".
func (m *Metrics) RecordClientCall(kind, op, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.clientCalls.WithLabelValues(kind, op, outcome).Inc()
	m.clientDuration.WithLabelValues(kind, op).Observe(duration.Seconds())
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
