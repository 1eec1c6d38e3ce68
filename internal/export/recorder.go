// Package export captures routed note events so a take can be replayed or
// saved after the fact. The recorder sits between the script layer and the
// audio router as a pass-through tee; arming it costs one timestamp per
// event, disarming it costs nothing.
package export

import (
	"sync"
	"time"

	"github.com/livecore-audio/livecore/internal/playback"
)

// Recorder tees routed events into an in-memory take while forwarding them
// to the wrapped sink. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	sink    playback.Sink
	armed   bool
	started time.Time
	events  []playback.Event
}

// New creates a recorder forwarding into sink. It starts disarmed.
func New(sink playback.Sink) *Recorder {
	return &Recorder{sink: sink}
}

// Arm starts a new take, discarding any previous one.
func (r *Recorder) Arm() {
	r.mu.Lock()
	r.armed = true
	r.started = time.Now()
	r.events = r.events[:0]
	r.mu.Unlock()
}

// Disarm stops capturing. The take so far stays available to Take.
func (r *Recorder) Disarm() {
	r.mu.Lock()
	r.armed = false
	r.mu.Unlock()
}

// IsArmed reports whether events are being captured.
func (r *Recorder) IsArmed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.armed
}

// Len returns the number of captured events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *Recorder) capture(ev playback.Event) {
	r.mu.Lock()
	if r.armed {
		ev.TimeMS = time.Since(r.started).Milliseconds()
		r.events = append(r.events, ev)
	}
	r.mu.Unlock()
}

// Take returns the captured events as a finalized schedule, ready to hand
// to the playback manager. Returns nil when nothing was captured.
func (r *Recorder) Take() *playback.Schedule {
	r.mu.Lock()
	events := make([]playback.Event, len(r.events))
	copy(events, r.events)
	r.mu.Unlock()

	if len(events) == 0 {
		return nil
	}

	s := playback.NewSchedule()
	for _, ev := range events {
		s.AddEvent(ev)
	}
	if err := s.Finalize(); err != nil {
		return nil
	}
	return s
}

// The Sink methods forward unconditionally and capture while armed.

func (r *Recorder) NoteOn(channel, note, velocity uint8) {
	r.capture(playback.Event{Type: playback.EventNoteOn, Channel: channel, Data1: note, Data2: velocity})
	r.sink.NoteOn(channel, note, velocity)
}

func (r *Recorder) NoteOnFreq(channel uint8, freq float64, velocity uint8) {
	r.capture(playback.Event{Type: playback.EventNoteOn, Channel: channel, Freq: freq, Data2: velocity})
	r.sink.NoteOnFreq(channel, freq, velocity)
}

func (r *Recorder) NoteOff(channel, note uint8) {
	r.capture(playback.Event{Type: playback.EventNoteOff, Channel: channel, Data1: note})
	r.sink.NoteOff(channel, note)
}

func (r *Recorder) ControlChange(channel, controller, value uint8) {
	r.capture(playback.Event{Type: playback.EventControlChange, Channel: channel, Data1: controller, Data2: value})
	r.sink.ControlChange(channel, controller, value)
}

func (r *Recorder) ProgramChange(channel, program uint8) {
	r.capture(playback.Event{Type: playback.EventProgramChange, Channel: channel, Data1: program})
	r.sink.ProgramChange(channel, program)
}
