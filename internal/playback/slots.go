package playback

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/livecore-audio/livecore/internal/errors"
	"github.com/livecore-audio/livecore/internal/logging"
	"github.com/livecore-audio/livecore/internal/observability/metrics"
)

// DefaultSlots is the pool size used when the config does not override it.
const DefaultSlots = 8

// SlotStatus is the lifecycle state of a playback slot.
type SlotStatus int

const (
	StatusIdle SlotStatus = iota
	StatusPlaying
	StatusStopped
	StatusError
	StatusComplete
)

// String returns the status name for logging and callbacks.
func (s SlotStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPlaying:
		return "playing"
	case StatusStopped:
		return "stopped"
	case StatusError:
		return "error"
	case StatusComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Sink receives routed events from playback workers. The audio router
// satisfies it.
type Sink interface {
	NoteOn(channel, note, velocity uint8)
	NoteOnFreq(channel uint8, freq float64, velocity uint8)
	NoteOff(channel, note uint8)
	ControlChange(channel, controller, value uint8)
	ProgramChange(channel, program uint8)
}

// Notifier is told when a slot reaches a terminal status. The runtime
// wires it to a callback event push, so delivery happens on the consumer
// loop.
type Notifier interface {
	PlaybackFinished(slot int, status SlotStatus)
}

type slot struct {
	id       int
	status   SlotStatus
	token    string // correlates log lines across a playback
	schedule *Schedule
	stop     chan struct{}
	done     chan struct{}
}

// Manager owns the slot pool. Starting a schedule claims the first free
// slot; when none is free the start is refused rather than queued, keeping
// the pool size the only backpressure mechanism.
type Manager struct {
	mu    sync.Mutex
	slots []slot

	sink     Sink
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.PlaybackMetrics
}

// NewManager creates a manager with the given pool size (0 for default)
// routing into sink.
func NewManager(numSlots int, sink Sink) *Manager {
	if numSlots <= 0 {
		numSlots = DefaultSlots
	}

	m := &Manager{
		slots:  make([]slot, numSlots),
		sink:   sink,
		logger: logging.ForService("playback"),
	}
	for i := range m.slots {
		m.slots[i].id = i
	}
	return m
}

// SetNotifier wires the completion sink. Optional.
func (m *Manager) SetNotifier(n Notifier) {
	m.mu.Lock()
	m.notifier = n
	m.mu.Unlock()
}

// SetMetrics attaches playback metrics. Optional.
func (m *Manager) SetMetrics(pm *metrics.PlaybackMetrics) {
	m.mu.Lock()
	m.metrics = pm
	m.mu.Unlock()
}

// NumSlots returns the pool size.
func (m *Manager) NumSlots() int {
	return len(m.slots)
}

// Start claims the first free slot and begins playing the schedule on its
// own worker goroutine. The schedule must be finalized. Returns the slot
// id, or ErrNoFreeSlots when the pool is exhausted.
func (m *Manager) Start(sched *Schedule) (int, error) {
	if sched == nil || !sched.finalized {
		return -1, errors.Newf("schedule not finalized").
			Category(errors.CategoryPlayback).
			Build()
	}

	m.mu.Lock()

	var s *slot
	for i := range m.slots {
		if m.slots[i].status == StatusIdle {
			s = &m.slots[i]
			break
		}
	}
	if s == nil {
		if m.metrics != nil {
			m.metrics.RecordRejection()
		}
		m.mu.Unlock()
		return -1, errors.ErrNoFreeSlots
	}

	s.status = StatusPlaying
	s.token = uuid.New().String()
	s.schedule = sched
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	if m.metrics != nil {
		m.metrics.RecordStart(sched.Len())
		m.metrics.UpdateActiveSlots(m.activeLocked())
	}

	id := s.id
	token := s.token
	stop := s.stop
	done := s.done
	m.mu.Unlock()

	m.logger.Info("playback started",
		"slot", id,
		"playback_id", token,
		"events", sched.Len(),
		"duration_ms", sched.Duration(),
	)

	go m.play(id, token, sched, stop, done)
	return id, nil
}

// Stop requests that a slot stop. The worker winds down asynchronously,
// silencing any sounding notes; the slot stays claimed until its terminal
// callback is acknowledged. Stopping a non-playing slot is a no-op.
func (m *Manager) Stop(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id < 0 || id >= len(m.slots) {
		return
	}
	s := &m.slots[id]
	if s.status != StatusPlaying {
		return
	}

	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

// StopAll stops every playing slot and returns the whole pool to idle.
// Unlike Stop, it does not wait for the completion callbacks to be
// acknowledged: the workers are waited out and their slots reclaimed
// directly, so the pool is fully usable when StopAll returns even when
// the notification queue is under pressure. Slots already holding an
// unacknowledged terminal status are reclaimed too.
func (m *Manager) StopAll() {
	m.mu.Lock()
	var dones []chan struct{}
	var ids []int
	for i := range m.slots {
		s := &m.slots[i]
		switch s.status {
		case StatusPlaying:
			select {
			case <-s.stop:
			default:
				close(s.stop)
			}
			dones = append(dones, s.done)
			ids = append(ids, s.id)
		case StatusStopped, StatusError, StatusComplete:
			ids = append(ids, s.id)
		}
	}
	m.mu.Unlock()

	// Workers exit promptly once their stop channel closes; waiting here
	// must happen outside the lock so finish can record their status.
	for _, done := range dones {
		<-done
	}
	for _, id := range ids {
		m.Acknowledge(id)
	}
}

// Status returns the slot's current status. Unknown ids report idle.
func (m *Manager) Status(id int) SlotStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id < 0 || id >= len(m.slots) {
		return StatusIdle
	}
	return m.slots[id].status
}

func (m *Manager) activeLocked() int {
	n := 0
	for i := range m.slots {
		if m.slots[i].status == StatusPlaying {
			n++
		}
	}
	return n
}

// ActiveCount returns the number of slots currently playing.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeLocked()
}

// Acknowledge returns a finished slot to the pool. Called by the consumer
// loop after delivering the completion callback. Acknowledging a playing
// or idle slot is a no-op.
func (m *Manager) Acknowledge(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id < 0 || id >= len(m.slots) {
		return
	}
	s := &m.slots[id]
	switch s.status {
	case StatusStopped, StatusError, StatusComplete:
		*s = slot{id: s.id}
	}
}

// finish records a worker's terminal status and notifies.
func (m *Manager) finish(id int, status SlotStatus) {
	m.mu.Lock()
	s := &m.slots[id]
	s.status = status
	token := s.token
	notifier := m.notifier
	if m.metrics != nil {
		m.metrics.RecordCompletion(status.String())
		m.metrics.UpdateActiveSlots(m.activeLocked())
	}
	m.mu.Unlock()

	m.logger.Info("playback finished",
		"slot", id,
		"playback_id", token,
		"status", status.String(),
	)

	if notifier != nil {
		notifier.PlaybackFinished(id, status)
	}
}

// Wait blocks until the slot leaves the playing state or the timeout
// passes. Returns the status observed.
func (m *Manager) Wait(id int, timeout time.Duration) SlotStatus {
	m.mu.Lock()
	if id < 0 || id >= len(m.slots) {
		m.mu.Unlock()
		return StatusIdle
	}
	done := m.slots[id].done
	m.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-time.After(timeout):
		}
	}
	return m.Status(id)
}

// WaitAll blocks until no slot is playing or the timeout passes. Returns
// true if everything finished.
func (m *Manager) WaitAll(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if m.ActiveCount() == 0 {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Close stops all playback and reclaims the pool. Workers have exited by
// the time it returns.
func (m *Manager) Close() {
	m.StopAll()
}
