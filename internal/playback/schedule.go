// Package playback plays note schedules through a fixed pool of slots.
// A schedule is a time-ordered list of note and controller events; starting
// one claims a slot and spawns a worker that walks the list in real time,
// routing each event as its moment arrives. Completion is reported back to
// the consumer loop as a callback event.
package playback

import (
	"sort"

	"github.com/livecore-audio/livecore/internal/errors"
)

// DefaultTicksPerQuarter is the tick resolution assumed when a schedule is
// built in tick time without an explicit resolution.
const DefaultTicksPerQuarter = 480

// EventType discriminates schedule entries.
type EventType uint8

const (
	EventNoteOn EventType = iota
	EventNoteOff
	EventControlChange
	EventProgramChange
)

// Event is one timed entry in a schedule. TimeMS is the offset from the
// start of playback. For note-ons with Freq > 0 the exact frequency is
// routed when the destination supports it.
type Event struct {
	TimeMS  int64
	Type    EventType
	Channel uint8
	Data1   uint8 // note or controller or program
	Data2   uint8 // velocity or controller value
	Freq    float64
}

// TicksToMS converts a tick offset to milliseconds at the given tempo and
// resolution. Non-positive tempo or resolution fall back to 120 BPM and the
// default resolution.
func TicksToMS(ticks int64, bpm float64, ticksPerQuarter int) int64 {
	if bpm <= 0 {
		bpm = 120
	}
	if ticksPerQuarter <= 0 {
		ticksPerQuarter = DefaultTicksPerQuarter
	}
	return int64(float64(ticks) * 60000 / (bpm * float64(ticksPerQuarter)))
}

// Schedule is an ordered list of events. Build one with the Add methods,
// then Finalize before handing it to the manager.
type Schedule struct {
	events    []Event
	finalized bool
}

// NewSchedule creates an empty schedule.
func NewSchedule() *Schedule {
	return &Schedule{}
}

// AddNote appends a note-on at onMS and its note-off at offMS.
func (s *Schedule) AddNote(onMS, offMS int64, channel, note, velocity uint8) *Schedule {
	s.events = append(s.events,
		Event{TimeMS: onMS, Type: EventNoteOn, Channel: channel, Data1: note, Data2: velocity},
		Event{TimeMS: offMS, Type: EventNoteOff, Channel: channel, Data1: note},
	)
	s.finalized = false
	return s
}

// AddNoteFreq appends an exact-frequency note. The note-off carries the
// nearest pitch so pitch-only destinations still silence it.
func (s *Schedule) AddNoteFreq(onMS, offMS int64, channel uint8, freq float64, velocity, offNote uint8) *Schedule {
	s.events = append(s.events,
		Event{TimeMS: onMS, Type: EventNoteOn, Channel: channel, Data1: offNote, Data2: velocity, Freq: freq},
		Event{TimeMS: offMS, Type: EventNoteOff, Channel: channel, Data1: offNote},
	)
	s.finalized = false
	return s
}

// AddNoteTicks appends a note with tick timing.
func (s *Schedule) AddNoteTicks(onTicks, offTicks int64, bpm float64, tpq int, channel, note, velocity uint8) *Schedule {
	return s.AddNote(
		TicksToMS(onTicks, bpm, tpq),
		TicksToMS(offTicks, bpm, tpq),
		channel, note, velocity,
	)
}

// AddEvent appends a prebuilt event. Used by the export recorder when
// converting a take back into a schedule.
func (s *Schedule) AddEvent(ev Event) *Schedule {
	s.events = append(s.events, ev)
	s.finalized = false
	return s
}

// AddControlChange appends a controller change.
func (s *Schedule) AddControlChange(atMS int64, channel, controller, value uint8) *Schedule {
	s.events = append(s.events, Event{
		TimeMS: atMS, Type: EventControlChange,
		Channel: channel, Data1: controller, Data2: value,
	})
	s.finalized = false
	return s
}

// AddProgramChange appends a program select.
func (s *Schedule) AddProgramChange(atMS int64, channel, program uint8) *Schedule {
	s.events = append(s.events, Event{
		TimeMS: atMS, Type: EventProgramChange,
		Channel: channel, Data1: program,
	})
	s.finalized = false
	return s
}

// Len returns the number of events.
func (s *Schedule) Len() int {
	return len(s.events)
}

// Duration returns the offset of the last event, or zero when empty.
// Valid after Finalize.
func (s *Schedule) Duration() int64 {
	if len(s.events) == 0 {
		return 0
	}
	return s.events[len(s.events)-1].TimeMS
}

// Finalize sorts the schedule into playback order. The sort is stable and
// orders note-offs before note-ons at the same instant, so retriggered
// notes do not get cut by their own predecessor's release. Returns an
// error for an empty schedule.
func (s *Schedule) Finalize() error {
	if len(s.events) == 0 {
		return errors.Newf("empty schedule").
			Category(errors.CategoryPlayback).
			Build()
	}

	sort.SliceStable(s.events, func(i, j int) bool {
		a, b := &s.events[i], &s.events[j]
		if a.TimeMS != b.TimeMS {
			return a.TimeMS < b.TimeMS
		}
		return eventRank(a.Type) < eventRank(b.Type)
	})
	s.finalized = true
	return nil
}

// eventRank orders same-instant events: offs first, then controllers, then
// ons.
func eventRank(t EventType) int {
	switch t {
	case EventNoteOff:
		return 0
	case EventControlChange, EventProgramChange:
		return 1
	default:
		return 2
	}
}

// Events returns the sorted event list. Valid after Finalize; the caller
// must not mutate it once playback starts.
func (s *Schedule) Events() []Event {
	return s.events
}
