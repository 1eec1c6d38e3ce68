package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PlaybackMetrics contains all Prometheus metrics related to playback slots.
type PlaybackMetrics struct {
	Started      prometheus.Counter
	Completed    *prometheus.CounterVec
	Rejected     prometheus.Counter
	ActiveSlots  prometheus.Gauge
	ScheduleSize prometheus.Histogram
	registry     *prometheus.Registry
}

// NewPlaybackMetrics creates a new instance of PlaybackMetrics registered
// against the given registry.
func NewPlaybackMetrics(registry *prometheus.Registry) (*PlaybackMetrics, error) {
	m := &PlaybackMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register playback metrics: %w", err)
	}
	return m, nil
}

func (m *PlaybackMetrics) initMetrics() {
	m.Started = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "playback_started_total",
		Help: "Total number of schedules started",
	})

	m.Completed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "playback_completed_total",
		Help: "Total number of schedules finished, by final status",
	}, []string{"status"})

	m.Rejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "playback_rejected_total",
		Help: "Total number of starts rejected because no slot was free",
	})

	m.ActiveSlots = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "playback_active_slots",
		Help: "Number of slots currently playing",
	})

	m.ScheduleSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "playback_schedule_events",
		Help:    "Number of events per started schedule",
		Buckets: prometheus.ExponentialBuckets(4, 2, 10),
	})
}

// RecordStart records a schedule successfully claiming a slot.
func (m *PlaybackMetrics) RecordStart(scheduleEvents int) {
	m.Started.Inc()
	m.ScheduleSize.Observe(float64(scheduleEvents))
}

// RecordCompletion records a schedule reaching a terminal status.
func (m *PlaybackMetrics) RecordCompletion(status string) {
	m.Completed.WithLabelValues(status).Inc()
}

// RecordRejection records a start refused for lack of a free slot.
func (m *PlaybackMetrics) RecordRejection() {
	m.Rejected.Inc()
}

// UpdateActiveSlots sets the active slot gauge.
func (m *PlaybackMetrics) UpdateActiveSlots(n int) {
	m.ActiveSlots.Set(float64(n))
}

// Describe implements the prometheus.Collector interface.
func (m *PlaybackMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Started.Describe(ch)
	m.Completed.Describe(ch)
	m.Rejected.Describe(ch)
	m.ActiveSlots.Describe(ch)
	m.ScheduleSize.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *PlaybackMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Started.Collect(ch)
	m.Completed.Collect(ch)
	m.Rejected.Collect(ch)
	m.ActiveSlots.Collect(ch)
	m.ScheduleSize.Collect(ch)
}
