// Package metrics provides custom Prometheus metrics for the livecore
// runtime components.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// EventsMetrics contains all Prometheus metrics related to the event queue.
type EventsMetrics struct {
	Pushed     *prometheus.CounterVec
	Dropped    prometheus.Counter
	Dispatched prometheus.Counter
	Depth      prometheus.Gauge
	registry   *prometheus.Registry
}

// NewEventsMetrics creates a new instance of EventsMetrics registered
// against the given registry.
func NewEventsMetrics(registry *prometheus.Registry) (*EventsMetrics, error) {
	m := &EventsMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register events metrics: %w", err)
	}
	return m, nil
}

func (m *EventsMetrics) initMetrics() {
	m.Pushed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "events_pushed_total",
		Help: "Total number of events pushed onto the queue, by kind",
	}, []string{"kind"})

	m.Dropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "events_dropped_total",
		Help: "Total number of events rejected because the queue was full",
	})

	m.Dispatched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "events_dispatched_total",
		Help: "Total number of events handed to a dispatch handler",
	})

	m.Depth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "events_queue_depth",
		Help: "Number of events currently queued",
	})
}

// RecordPush records a successful push of the given event kind.
func (m *EventsMetrics) RecordPush(kind string) {
	m.Pushed.WithLabelValues(kind).Inc()
}

// RecordDrop records a push rejected by a full queue.
func (m *EventsMetrics) RecordDrop() {
	m.Dropped.Inc()
}

// RecordDispatch records n events processed in one dispatch sweep.
func (m *EventsMetrics) RecordDispatch(n int) {
	m.Dispatched.Add(float64(n))
}

// UpdateDepth sets the current queue depth gauge.
func (m *EventsMetrics) UpdateDepth(depth int) {
	m.Depth.Set(float64(depth))
}

// Describe implements the prometheus.Collector interface.
func (m *EventsMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Pushed.Describe(ch)
	m.Dropped.Describe(ch)
	m.Dispatched.Describe(ch)
	m.Depth.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *EventsMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Pushed.Collect(ch)
	m.Dropped.Collect(ch)
	m.Dispatched.Collect(ch)
	m.Depth.Collect(ch)
}
