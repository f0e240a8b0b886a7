// Package metrics exposes Prometheus collectors for the gateway.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for gateway operations.
const (
	OutcomeSuccess     = "success"
	OutcomeFallback    = "fallback"
	OutcomeUnavailable = "unavailable"
)

// Metrics holds the gateway collectors on a private registry.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	available  prometheus.Gauge
	persisted  *prometheus.CounterVec
}

// New creates and registers the gateway collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aigateway",
			Name:      "operations_total",
			Help:      "Gateway operations by outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aigateway",
			Name:      "upstream_duration_seconds",
			Help:      "Time spent waiting for the AI engine.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"operation"}),
		available: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aigateway",
			Name:      "engine_available",
			Help:      "1 when the last health probe succeeded.",
		}),
		persisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aigateway",
			Name:      "chat_messages_persisted_total",
			Help:      "Chat messages appended to history by role.",
		}, []string{"role"}),
	}
	reg.MustRegister(
		m.operations,
		m.duration,
		m.available,
		m.persisted,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveOperation records the outcome and upstream latency of an operation.
func (m *Metrics) ObserveOperation(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// SetEngineAvailable updates the availability gauge.
func (m *Metrics) SetEngineAvailable(available bool) {
	if m == nil {
		return
	}
	if available {
		m.available.Set(1)
		return
	}
	m.available.Set(0)
}

// MessagesPersisted counts appended chat messages.
func (m *Metrics) MessagesPersisted(role string, n int) {
	if m == nil {
		return
	}
	m.persisted.WithLabelValues(role).Add(float64(n))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
