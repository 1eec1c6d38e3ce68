package playback

import (
	"time"
)

// maxActiveNotes bounds the per-playback sounding-note tracker. A note-on
// past the limit forces the oldest tracked note off first, so a runaway
// schedule cannot leak stuck notes.
const maxActiveNotes = 64

type activeNote struct {
	channel uint8
	note    uint8
}

// play is the worker body for one slot. It walks the schedule in real time
// and reports a terminal status through finish. Runs on its own goroutine.
func (m *Manager) play(id int, token string, sched *Schedule, stop, done chan struct{}) {
	defer close(done)

	status := m.runSchedule(sched, stop)
	m.finish(id, status)
}

// runSchedule walks the events, returning StatusComplete when the whole
// schedule played or StatusStopped when the stop request won.
func (m *Manager) runSchedule(sched *Schedule, stop <-chan struct{}) SlotStatus {
	start := time.Now()
	active := make([]activeNote, 0, 16)

	timer := time.NewTimer(0)
	defer timer.Stop()
	if !timer.Stop() {
		<-timer.C
	}

	for i := range sched.events {
		ev := &sched.events[i]

		wait := time.Duration(ev.TimeMS)*time.Millisecond - time.Since(start)
		if wait > 0 {
			timer.Reset(wait)
			select {
			case <-stop:
				if !timer.Stop() {
					<-timer.C
				}
				m.silence(active)
				return StatusStopped
			case <-timer.C:
			}
		} else {
			// Behind schedule or at time zero; still honor a pending stop.
			select {
			case <-stop:
				m.silence(active)
				return StatusStopped
			default:
			}
		}

		active = m.emit(ev, active)
	}

	// A well-formed schedule pairs every on with an off; silence covers
	// the ones that were not.
	m.silence(active)
	return StatusComplete
}

// emit routes one event and maintains the active-note list.
func (m *Manager) emit(ev *Event, active []activeNote) []activeNote {
	switch ev.Type {
	case EventNoteOn:
		if len(active) >= maxActiveNotes {
			oldest := active[0]
			m.sink.NoteOff(oldest.channel, oldest.note)
			active = active[1:]
		}
		if ev.Freq > 0 {
			m.sink.NoteOnFreq(ev.Channel, ev.Freq, ev.Data2)
		} else {
			m.sink.NoteOn(ev.Channel, ev.Data1, ev.Data2)
		}
		active = append(active, activeNote{channel: ev.Channel, note: ev.Data1})

	case EventNoteOff:
		m.sink.NoteOff(ev.Channel, ev.Data1)
		for i := range active {
			if active[i].channel == ev.Channel && active[i].note == ev.Data1 {
				active = append(active[:i], active[i+1:]...)
				break
			}
		}

	case EventControlChange:
		m.sink.ControlChange(ev.Channel, ev.Data1, ev.Data2)

	case EventProgramChange:
		m.sink.ProgramChange(ev.Channel, ev.Data1)
	}
	return active
}

// silence sends note-offs for every tracked note.
func (m *Manager) silence(active []activeNote) {
	for _, n := range active {
		m.sink.NoteOff(n.channel, n.note)
	}
}
