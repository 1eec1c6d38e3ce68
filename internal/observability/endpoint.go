package observability

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/livecore-audio/livecore/internal/conf"
	"github.com/livecore-audio/livecore/internal/logging"
)

// Endpoint serves the Prometheus-compatible telemetry surface over HTTP.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
	logger        *slog.Logger
}

// NewEndpoint creates a telemetry endpoint from the settings. Returns an
// error if telemetry is not enabled.
func NewEndpoint(settings *conf.Settings, metrics *Metrics) (*Endpoint, error) {
	if !settings.Telemetry.Enabled {
		return nil, errors.New("telemetry not enabled in settings")
	}

	return &Endpoint{
		listenAddress: settings.Telemetry.Listen,
		metrics:       metrics,
		logger:        logging.ForService("telemetry"),
	}, nil
}

// Start runs the HTTP server in its own goroutine. Use Stop to shut it
// down.
func (e *Endpoint) Start() {
	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)

	e.server = &http.Server{
		Addr:        e.listenAddress,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	go func() {
		e.logger.Info("telemetry endpoint listening", "address", e.listenAddress)
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("telemetry endpoint failed", "error", err)
		}
	}()
}

// Stop shuts the server down gracefully.
func (e *Endpoint) Stop(ctx context.Context) error {
	if e.server == nil {
		return nil
	}
	return e.server.Shutdown(ctx)
}
