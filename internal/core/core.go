// Package core assembles the livecore runtime: the event queue, tempo sync,
// audio routing, loop scheduling, playback slots and telemetry, wired
// together and driven by a single consumer loop. Everything the script
// layer touches hangs off the Core object; there is no package-level state.
package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/livecore-audio/livecore/internal/conf"
	"github.com/livecore-audio/livecore/internal/errors"
	"github.com/livecore-audio/livecore/internal/events"
	"github.com/livecore-audio/livecore/internal/export"
	"github.com/livecore-audio/livecore/internal/liveloop"
	"github.com/livecore-audio/livecore/internal/logging"
	"github.com/livecore-audio/livecore/internal/observability"
	"github.com/livecore-audio/livecore/internal/playback"
	"github.com/livecore-audio/livecore/internal/router"
	"github.com/livecore-audio/livecore/internal/tempo"
)

// tickInterval paces the consumer loop when no event wakes it sooner. Loop
// boundary detection and tempo callback delivery both ride on this.
const tickInterval = 5 * time.Millisecond

// Core is the assembled runtime. Construct with New, drive with Run or
// manual Tick calls, release with Close.
type Core struct {
	settings *conf.Settings

	Queue    *events.Queue
	Tempo    *tempo.Sync
	Router   *router.Router
	Recorder *export.Recorder
	Loops    *liveloop.Scheduler
	Playback *playback.Manager

	metrics   *observability.Metrics
	telemetry *observability.Endpoint
	engine    *router.EngineBackend
	logger    *slog.Logger

	onPlaybackFinished func(slot int, status playback.SlotStatus)
}

// Option adjusts construction, mainly for tests.
type Option func(*options)

type options struct {
	session  tempo.Session
	backends []router.Backend
}

// WithSession substitutes the tempo session implementation.
func WithSession(s tempo.Session) Option {
	return func(o *options) { o.session = s }
}

// WithBackends substitutes the routing backends, in priority order.
func WithBackends(backends ...router.Backend) Option {
	return func(o *options) { o.backends = backends }
}

// New builds the runtime from settings. Backends that fail to open are
// logged and skipped, not fatal: a live set must come up even when the
// engine is down or the host has no MIDI ports.
func New(settings *conf.Settings, opts ...Option) (*Core, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := logging.ForService("core")

	queue, err := events.NewQueue(settings.Queue.Capacity)
	if err != nil {
		return nil, err
	}

	c := &Core{
		settings: settings,
		Queue:    queue,
		logger:   logger,
	}

	if o.session != nil {
		c.Tempo = tempo.NewWithSession(o.session)
	} else {
		c.Tempo = tempo.New(settings.Tempo.BPM)
	}

	backends := o.backends
	if backends == nil {
		backends = c.openBackends()
	}
	c.Router = router.New(backends...)
	c.Recorder = export.New(c.Router)
	c.Loops = liveloop.New(c.Tempo, func(resource int, beat, interval float64) {
		(*queueNotifier)(c).pushed(queue.PushBeat(beat, interval, resource), "beat")
	})
	c.Playback = playback.NewManager(settings.Playback.Slots, c.Recorder)

	c.Tempo.SetNotifier((*queueNotifier)(c))
	c.Playback.SetNotifier((*queueNotifier)(c))
	c.Queue.SetHandler(events.KindCallback, c.handleCallback)

	if settings.Telemetry.Enabled {
		if err := c.startTelemetry(); err != nil {
			logger.Warn("telemetry disabled", "error", err)
		}
	}

	if settings.Tempo.Enabled {
		c.Tempo.Enable(true)
		if settings.Tempo.StartStopSync {
			c.Tempo.StartStopSync(true)
		}
	}

	return c, nil
}

// openBackends opens the configured destinations in priority order.
func (c *Core) openBackends() []router.Backend {
	var backends []router.Backend

	if c.settings.Audio.Engine.Enabled {
		c.engine = router.NewEngineBackend(c.settings.Audio.Engine.Host, c.settings.Audio.Engine.Port)
		backends = append(backends, c.engine)
	}

	if c.settings.Audio.Synth.Enabled {
		synth, err := router.NewSynthBackend(c.settings.Audio.Synth.SampleRate, nil)
		if err != nil {
			c.logger.Warn("built-in synth unavailable", "error", err)
		} else {
			backends = append(backends, synth)
		}
	}

	if c.settings.Audio.MIDI.Enabled {
		midi, err := router.NewMIDIBackend(c.settings.Audio.MIDI.Port)
		if err != nil {
			c.logger.Warn("MIDI output unavailable", "error", err)
		} else {
			backends = append(backends, midi)
		}
	}

	return backends
}

func (c *Core) startTelemetry() error {
	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}
	endpoint, err := observability.NewEndpoint(c.settings, m)
	if err != nil {
		return err
	}

	c.metrics = m
	c.telemetry = endpoint
	c.Queue.SetMetrics(m.Events)
	c.Router.SetMetrics(m.Router)
	c.Playback.SetMetrics(m.Playback)
	c.Loops.SetMetrics(m.LiveLoop)
	c.Tempo.SetTempoCallback(func(bpm float64) { m.Tempo.UpdateTempo(bpm) })
	c.Tempo.SetPeersCallback(func(n uint64) { m.Tempo.UpdatePeers(n) })

	endpoint.Start()
	return nil
}

// OnPlaybackFinished registers the completion callback delivered on the
// consumer loop.
func (c *Core) OnPlaybackFinished(fn func(slot int, status playback.SlotStatus)) {
	c.onPlaybackFinished = fn
}

// handleCallback delivers a playback completion and returns the slot to
// the pool afterwards.
func (c *Core) handleCallback(ev *events.Event, _ any) {
	if c.onPlaybackFinished != nil {
		c.onPlaybackFinished(ev.Slot, playback.SlotStatus(ev.Status))
	}
	c.Playback.Acknowledge(ev.Slot)
}

// SetHandler registers a consumer-loop handler for an event kind. The
// callback kind is managed internally; use OnPlaybackFinished for it.
func (c *Core) SetHandler(kind events.Kind, h events.Handler) {
	if kind == events.KindCallback {
		return
	}
	c.Queue.SetHandler(kind, h)
}

// Tick runs one consumer iteration: deliver pending tempo callbacks, fire
// crossed loop boundaries, then dispatch queued events. Returns the number
// of events dispatched.
func (c *Core) Tick() int {
	c.Tempo.CheckCallbacks()
	c.Loops.Tick()
	if c.engine != nil {
		c.engine.KeepAlive()
	}

	n := c.Queue.DispatchAll(nil)

	if c.metrics != nil {
		c.metrics.Events.RecordDispatch(n)
		c.metrics.Events.UpdateDepth(c.Queue.Count())
	}
	return n
}

// Run drives the consumer loop until the context is canceled. Blocks.
func (c *Core) Run(ctx context.Context) error {
	c.logger.Info("runtime started",
		"queue_capacity", c.Queue.Capacity(),
		"playback_slots", c.Playback.NumSlots(),
		"tempo_sync", c.Tempo.IsEnabled(),
		"backend", c.Router.Active(),
	)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.Queue.Wake():
		case <-ticker.C:
		}
		c.Tick()
	}
}

// Close tears the runtime down: stop playback, silence the router, drain
// the queue and release the session. Safe to call once.
func (c *Core) Close() error {
	c.Playback.Close()
	c.Router.Panic()
	c.Queue.Drain()

	var errs []error
	if err := c.Router.Close(); err != nil {
		errs = append(errs, err)
	}
	if c.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := c.telemetry.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}
	c.Tempo.Close()

	c.logger.Info("runtime stopped")
	return errors.Join(errs...)
}

// queueNotifier adapts session-thread and worker notifications into queue
// pushes. Methods must stay non-blocking.
type queueNotifier Core

func (n *queueNotifier) TempoChanged(bpm float64) {
	n.pushed(n.Queue.PushTempo(bpm), "tempo")
}

func (n *queueNotifier) PeersChanged(peers uint64) {
	n.pushed(n.Queue.PushPeers(peers), "peers")
}

func (n *queueNotifier) TransportChanged(playing bool) {
	n.pushed(n.Queue.PushTransport(playing), "transport")
}

func (n *queueNotifier) PlaybackFinished(slot int, status playback.SlotStatus) {
	if err := n.Queue.PushCallback(slot, int(status)); err != nil {
		n.pushed(err, "callback")
		// The notification is lost but the slot must not be: recycle it
		// here, or the pool shrinks for the rest of the session.
		n.Playback.Acknowledge(slot)
	}
}

// pushed logs a drop; a full queue loses the notification, never blocks
// the producer.
func (n *queueNotifier) pushed(err error, kind string) {
	if err == nil {
		return
	}
	n.logger.Warn("event dropped", "kind", kind, "error", err)
}
