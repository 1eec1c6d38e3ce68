package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// TempoMetrics contains all Prometheus metrics related to tempo sync.
type TempoMetrics struct {
	CurrentBPM   prometheus.Gauge
	Peers        prometheus.Gauge
	TempoChanges prometheus.Counter
	registry     *prometheus.Registry
}

// NewTempoMetrics creates a new instance of TempoMetrics registered against
// the given registry.
func NewTempoMetrics(registry *prometheus.Registry) (*TempoMetrics, error) {
	m := &TempoMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register tempo metrics: %w", err)
	}
	return m, nil
}

func (m *TempoMetrics) initMetrics() {
	m.CurrentBPM = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tempo_bpm",
		Help: "Current session tempo in beats per minute",
	})

	m.Peers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tempo_peers",
		Help: "Number of tempo sync peers on the network",
	})

	m.TempoChanges = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tempo_changes_total",
		Help: "Total number of tempo changes observed from the session",
	})
}

// UpdateTempo records a tempo change.
func (m *TempoMetrics) UpdateTempo(bpm float64) {
	m.CurrentBPM.Set(bpm)
	m.TempoChanges.Inc()
}

// UpdatePeers sets the peer count gauge.
func (m *TempoMetrics) UpdatePeers(n uint64) {
	m.Peers.Set(float64(n))
}

// Describe implements the prometheus.Collector interface.
func (m *TempoMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.CurrentBPM.Describe(ch)
	m.Peers.Describe(ch)
	m.TempoChanges.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *TempoMetrics) Collect(ch chan<- prometheus.Metric) {
	m.CurrentBPM.Collect(ch)
	m.Peers.Collect(ch)
	m.TempoChanges.Collect(ch)
}
