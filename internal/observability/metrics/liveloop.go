package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// LiveLoopMetrics contains all Prometheus metrics related to loop scheduling.
type LiveLoopMetrics struct {
	Triggers    prometheus.Counter
	ActiveLoops prometheus.Gauge
	registry    *prometheus.Registry
}

// NewLiveLoopMetrics creates a new instance of LiveLoopMetrics registered
// against the given registry.
func NewLiveLoopMetrics(registry *prometheus.Registry) (*LiveLoopMetrics, error) {
	m := &LiveLoopMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register liveloop metrics: %w", err)
	}
	return m, nil
}

func (m *LiveLoopMetrics) initMetrics() {
	m.Triggers = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "liveloop_triggers_total",
		Help: "Total number of loop boundary triggers fired",
	})

	m.ActiveLoops = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "liveloop_active_loops",
		Help: "Number of registered loops",
	})
}

// RecordTrigger records one boundary crossing delivered to a loop.
func (m *LiveLoopMetrics) RecordTrigger() {
	m.Triggers.Inc()
}

// UpdateActiveLoops sets the registered loop gauge.
func (m *LiveLoopMetrics) UpdateActiveLoops(n int) {
	m.ActiveLoops.Set(float64(n))
}

// Describe implements the prometheus.Collector interface.
func (m *LiveLoopMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Triggers.Describe(ch)
	m.ActiveLoops.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *LiveLoopMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Triggers.Collect(ch)
	m.ActiveLoops.Collect(ch)
}
