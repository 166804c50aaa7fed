// Package metrics exposes the platform's Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	rateLimitRejections *prometheus.CounterVec
	executionsTotal     *prometheus.CounterVec
}

// New builds a metrics set on its own registry so tests can create
// independent instances.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_platform_http_requests_total",
			Help: "HTTP requests handled, by method, route and status code.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agent_platform_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route"}),
		rateLimitRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_platform_rate_limit_rejections_total",
			Help: "Run requests rejected by the per-tenant rate limiter.",
		}, []string{"tenant"}),
		executionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_platform_executions_total",
			Help: "Agent executions recorded, by model.",
		}, []string{"model"}),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.rateLimitRejections,
		m.executionsTotal,
	)
	return m
}

func (m *Metrics) ObserveRequest(method, route, status string, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(method, route, status).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) RateLimitRejected(tenant string) {
	m.rateLimitRejections.WithLabelValues(tenant).Inc()
}

func (m *Metrics) ExecutionRecorded(model string) {
	m.executionsTotal.WithLabelValues(model).Inc()
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
