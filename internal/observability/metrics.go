// Package observability provides Prometheus metrics and the telemetry
// endpoint for the livecore runtime.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/livecore-audio/livecore/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Events   *metrics.EventsMetrics
	Router   *metrics.RouterMetrics
	Playback *metrics.PlaybackMetrics
	LiveLoop *metrics.LiveLoopMetrics
	Tempo    *metrics.TempoMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric
// collectors against a private registry.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	eventsMetrics, err := metrics.NewEventsMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create events metrics: %w", err)
	}

	routerMetrics, err := metrics.NewRouterMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create router metrics: %w", err)
	}

	playbackMetrics, err := metrics.NewPlaybackMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create playback metrics: %w", err)
	}

	liveLoopMetrics, err := metrics.NewLiveLoopMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create liveloop metrics: %w", err)
	}

	tempoMetrics, err := metrics.NewTempoMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create tempo metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		Events:   eventsMetrics,
		Router:   routerMetrics,
		Playback: playbackMetrics,
		LiveLoop: liveLoopMetrics,
		Tempo:    tempoMetrics,
	}, nil
}

// RegisterHandlers mounts the metrics endpoint on the given mux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
