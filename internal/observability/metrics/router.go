package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// RouterMetrics contains all Prometheus metrics related to audio routing.
type RouterMetrics struct {
	Messages *prometheus.CounterVec
	Errors   *prometheus.CounterVec
	registry *prometheus.Registry
}

// NewRouterMetrics creates a new instance of RouterMetrics registered
// against the given registry.
func NewRouterMetrics(registry *prometheus.Registry) (*RouterMetrics, error) {
	m := &RouterMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register router metrics: %w", err)
	}
	return m, nil
}

func (m *RouterMetrics) initMetrics() {
	m.Messages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "router_messages_total",
		Help: "Total messages routed, by backend and message type",
	}, []string{"backend", "message"})

	m.Errors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "router_errors_total",
		Help: "Total backend send failures, by backend and message type",
	}, []string{"backend", "message"})
}

// RecordMessage records a message delivered to a backend.
func (m *RouterMetrics) RecordMessage(backend, message string) {
	m.Messages.WithLabelValues(backend, message).Inc()
}

// RecordError records a failed send to a backend.
func (m *RouterMetrics) RecordError(backend, message string) {
	m.Errors.WithLabelValues(backend, message).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *RouterMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Messages.Describe(ch)
	m.Errors.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *RouterMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Messages.Collect(ch)
	m.Errors.Collect(ch)
}
