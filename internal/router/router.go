package router

import (
	"log/slog"
	"sync"

	"github.com/livecore-audio/livecore/internal/logging"
	"github.com/livecore-audio/livecore/internal/observability/metrics"
)

// DefaultChannel is used when callers pass a channel of 0 through the
// script-facing API, which numbers channels 1-16.
const DefaultChannel = 0

// Router fans note messages out to the highest-priority available backend.
// The priority order is fixed: engine, then built-in synth, then raw MIDI.
// When no backend is available every send is a silent no-op, so a live set
// keeps running while a destination reconnects.
type Router struct {
	mu       sync.Mutex
	backends []Backend // priority order, nil entries skipped
	panicked bool

	logger  *slog.Logger
	metrics *metrics.RouterMetrics
}

// New creates a router over the given backends in priority order. Nil
// entries are allowed and skipped.
func New(backends ...Backend) *Router {
	return &Router{
		backends: backends,
		logger:   logging.ForService("router"),
	}
}

// SetMetrics attaches routing metrics. Optional.
func (r *Router) SetMetrics(m *metrics.RouterMetrics) {
	r.mu.Lock()
	r.metrics = m
	r.mu.Unlock()
}

// active returns the first available backend, or nil.
func (r *Router) active() Backend {
	for _, b := range r.backends {
		if b != nil && b.Available() {
			return b
		}
	}
	return nil
}

// Active returns the name of the backend that would receive the next
// message, or an empty string when none is available.
func (r *Router) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b := r.active(); b != nil {
		return b.Name()
	}
	return ""
}

func (r *Router) record(b Backend, kind string, err error) {
	if r.metrics != nil {
		if err != nil {
			r.metrics.RecordError(b.Name(), kind)
		} else {
			r.metrics.RecordMessage(b.Name(), kind)
		}
	}
	if err != nil && r.logger != nil {
		r.logger.Warn("backend send failed",
			"backend", b.Name(),
			"message", kind,
			"error", err,
		)
	}
}

// NoteOn routes a note-on. Velocity 0 is forwarded as a note-off, matching
// MIDI running-status convention.
func (r *Router) NoteOn(channel, note, velocity uint8) {
	if velocity == 0 {
		r.NoteOff(channel, note)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.active()
	if b == nil {
		return
	}
	r.panicked = false
	r.record(b, "note_on", b.NoteOn(channel, note, velocity))
}

// NoteOnFreq routes a note-on at an exact frequency. Backends that cannot
// play arbitrary frequencies get the nearest equal tempered pitch.
func (r *Router) NoteOnFreq(channel uint8, freq float64, velocity uint8) {
	if velocity == 0 || freq <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.active()
	if b == nil {
		return
	}
	r.panicked = false

	if fb, ok := b.(FrequencyBackend); ok {
		r.record(b, "note_on_freq", fb.NoteOnFreq(channel, freq, velocity))
		return
	}
	r.record(b, "note_on", b.NoteOn(channel, FreqToNote(freq), velocity))
}

// NoteOff routes a note-off.
func (r *Router) NoteOff(channel, note uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.active()
	if b == nil {
		return
	}
	r.record(b, "note_off", b.NoteOff(channel, note))
}

// ControlChange routes a controller value change.
func (r *Router) ControlChange(channel, controller, value uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.active()
	if b == nil {
		return
	}
	r.record(b, "control_change", b.ControlChange(channel, controller, value))
}

// ProgramChange routes a program select.
func (r *Router) ProgramChange(channel, program uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.active()
	if b == nil {
		return
	}
	r.record(b, "program_change", b.ProgramChange(channel, program))
}

// Panic silences all notes on all channels of the active backend. Repeat
// calls are no-ops until a new note sounds, so a mashed panic key does not
// flood the destination.
func (r *Router) Panic() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.panicked {
		return
	}

	b := r.active()
	if b == nil {
		return
	}

	for ch := uint8(0); ch < NumChannels; ch++ {
		r.record(b, "all_notes_off", b.AllNotesOff(ch))
	}
	r.panicked = true
}

// Close closes every backend, keeping the first error.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, b := range r.backends {
		if b == nil {
			continue
		}
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
