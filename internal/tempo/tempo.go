// Package tempo wraps the Ableton Link session for network tempo
// synchronization. The Link library runs its own network thread; change
// notifications land there, get recorded under a mutex, and are delivered
// on the consumer loop via CheckCallbacks. Callbacks never run while the
// lock is held.
package tempo

import (
	"log/slog"
	"sync"

	"github.com/livecore-audio/livecore/internal/conf"
	"github.com/livecore-audio/livecore/internal/logging"
)

// DefaultQuantum is the beat quantum used when the caller passes zero or a
// negative value.
const DefaultQuantum = 4.0

// Session abstracts the underlying Link binding so the sync layer can be
// tested against a fake clock. The one real implementation performs the
// protocol's capture/modify/commit sequence internally.
type Session interface {
	Enable(enabled bool)
	IsEnabled() bool
	NumPeers() uint64
	Tempo() float64
	SetTempo(bpm float64)
	Beat(quantum float64) float64
	Phase(quantum float64) float64
	IsPlaying() bool
	SetPlaying(playing bool)
	EnableStartStopSync(enabled bool)
	IsStartStopSyncEnabled() bool
	SetCallbacks(onPeers func(uint64), onTempo func(float64), onTransport func(bool))
	Close()
}

// Notifier receives change notifications on the session's network thread.
// Implementations must not block; the runtime wires this to event queue
// pushes so the consumer loop wakes promptly.
type Notifier interface {
	TempoChanged(bpm float64)
	PeersChanged(peers uint64)
	TransportChanged(playing bool)
}

// PeersCallback, TempoCallback and TransportCallback are delivered on the
// consumer loop by CheckCallbacks.
type (
	PeersCallback     func(peers uint64)
	TempoCallback     func(bpm float64)
	TransportCallback func(playing bool)
)

// Sync owns the Link session and the pending-notification state.
type Sync struct {
	session Session

	mu sync.Mutex
	// A changed flag and its pending value are always set together under
	// mu; CheckCallbacks clears the flag only when it delivers.
	peersChanged   bool
	pendingPeers   uint64
	tempoChanged   bool
	pendingTempo   float64
	playingChanged bool
	pendingPlaying bool

	lastPeers   uint64
	lastTempo   float64
	lastPlaying bool

	onPeers     PeersCallback
	onTempo     TempoCallback
	onTransport TransportCallback

	notifier Notifier
	logger   *slog.Logger
}

// New creates a Sync joined to a new Link session at the given tempo.
// The session does not participate in the network until Enable(true).
func New(initialBPM float64) *Sync {
	return NewWithSession(newLinkSession(clampTempo(initialBPM)))
}

// NewWithSession creates a Sync over an existing session. Used by tests
// and by callers that manage the session lifecycle themselves.
func NewWithSession(session Session) *Sync {
	s := &Sync{
		session:   session,
		lastTempo: session.Tempo(),
		logger:    logging.ForService("tempo"),
	}
	session.SetCallbacks(s.peersChangedLocked, s.tempoChangedLocked, s.transportChangedLocked)
	return s
}

func clampTempo(bpm float64) float64 {
	if bpm < conf.MinTempo {
		return conf.MinTempo
	}
	if bpm > conf.MaxTempo {
		return conf.MaxTempo
	}
	return bpm
}

// The three session-thread observers. Each records the pending value and
// flag together under the lock, then notifies outside it.

func (s *Sync) peersChangedLocked(peers uint64) {
	s.mu.Lock()
	s.pendingPeers = peers
	s.peersChanged = true
	n := s.notifier
	s.mu.Unlock()

	if n != nil {
		n.PeersChanged(peers)
	}
}

func (s *Sync) tempoChangedLocked(bpm float64) {
	s.mu.Lock()
	s.pendingTempo = bpm
	s.tempoChanged = true
	n := s.notifier
	s.mu.Unlock()

	if n != nil {
		n.TempoChanged(bpm)
	}
}

func (s *Sync) transportChangedLocked(playing bool) {
	s.mu.Lock()
	s.pendingPlaying = playing
	s.playingChanged = true
	n := s.notifier
	s.mu.Unlock()

	if n != nil {
		n.TransportChanged(playing)
	}
}

// SetNotifier wires the session-thread notification sink.
func (s *Sync) SetNotifier(n Notifier) {
	s.mu.Lock()
	s.notifier = n
	s.mu.Unlock()
}

// Enable toggles network participation without destroying session state.
func (s *Sync) Enable(enabled bool) {
	s.session.Enable(enabled)
}

// IsEnabled reports whether the session participates in the network.
func (s *Sync) IsEnabled() bool {
	return s.session.IsEnabled()
}

// Tempo returns the session tempo in BPM.
func (s *Sync) Tempo() float64 {
	return s.session.Tempo()
}

// SetTempo commits a new tempo, clamped to the valid range. The session
// implementation captures, mutates and commits atomically; concurrent peer
// commits are last-write-wins at session-state granularity.
func (s *Sync) SetTempo(bpm float64) {
	s.session.SetTempo(clampTempo(bpm))
}

// EffectiveTempo returns the session tempo when sync is enabled, otherwise
// the caller's fallback.
func (s *Sync) EffectiveTempo(fallback float64) float64 {
	if !s.session.IsEnabled() {
		return fallback
	}
	return s.session.Tempo()
}

// Beat returns the beat position relative to the given quantum.
func (s *Sync) Beat(quantum float64) float64 {
	if quantum <= 0 {
		quantum = DefaultQuantum
	}
	return s.session.Beat(quantum)
}

// Phase returns the phase within the given quantum.
func (s *Sync) Phase(quantum float64) float64 {
	if quantum <= 0 {
		quantum = DefaultQuantum
	}
	return s.session.Phase(quantum)
}

// NumPeers returns the number of other session participants.
func (s *Sync) NumPeers() uint64 {
	return s.session.NumPeers()
}

// IsPlaying reports the shared transport state.
func (s *Sync) IsPlaying() bool {
	return s.session.IsPlaying()
}

// SetPlaying commits a transport start or stop.
func (s *Sync) SetPlaying(playing bool) {
	s.session.SetPlaying(playing)
}

// StartStopSync toggles honoring transport start/stop from peers.
func (s *Sync) StartStopSync(enabled bool) {
	s.session.EnableStartStopSync(enabled)
}

// IsStartStopSyncEnabled reports whether transport sync is on.
func (s *Sync) IsStartStopSyncEnabled() bool {
	return s.session.IsStartStopSyncEnabled()
}

// SetPeersCallback registers the peers-changed callback.
func (s *Sync) SetPeersCallback(cb PeersCallback) {
	s.mu.Lock()
	s.onPeers = cb
	s.mu.Unlock()
}

// SetTempoCallback registers the tempo-changed callback.
func (s *Sync) SetTempoCallback(cb TempoCallback) {
	s.mu.Lock()
	s.onTempo = cb
	s.mu.Unlock()
}

// SetTransportCallback registers the transport-changed callback.
func (s *Sync) SetTransportCallback(cb TransportCallback) {
	s.mu.Lock()
	s.onTransport = cb
	s.mu.Unlock()
}

// CheckCallbacks delivers at most one pending notification of each kind.
// Called once per consumer tick. The lock is released before each callback
// runs, because a callback may legitimately call back into this package,
// and re-acquired afterwards to check for further changes. A panicking
// callback is logged and treated as delivered. Returns the number of
// notifications delivered.
func (s *Sync) CheckCallbacks() int {
	delivered := 0

	s.mu.Lock()

	if s.peersChanged && s.onPeers != nil {
		peers := s.pendingPeers
		cb := s.onPeers
		s.peersChanged = false
		s.lastPeers = peers

		s.mu.Unlock()
		s.deliver("peers", func() { cb(peers) })
		delivered++
		s.mu.Lock()
	}

	if s.tempoChanged && s.onTempo != nil {
		bpm := s.pendingTempo
		cb := s.onTempo
		s.tempoChanged = false
		s.lastTempo = bpm

		s.mu.Unlock()
		s.deliver("tempo", func() { cb(bpm) })
		delivered++
		s.mu.Lock()
	}

	if s.playingChanged && s.onTransport != nil {
		playing := s.pendingPlaying
		cb := s.onTransport
		s.playingChanged = false
		s.lastPlaying = playing

		s.mu.Unlock()
		s.deliver("transport", func() { cb(playing) })
		delivered++
		s.mu.Lock()
	}

	s.mu.Unlock()
	return delivered
}

func (s *Sync) deliver(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if s.logger != nil {
				s.logger.Error("tempo callback panicked", "callback", kind, "panic", r)
			}
		}
	}()
	fn()
}

// Close disables the session and releases its resources.
func (s *Sync) Close() {
	s.session.Enable(false)
	s.session.Close()
}
