// Package router routes note and controller messages to the best available
// audio destination. Three backends are known, in strict priority order: an
// external synthesis engine spoken to over OSC, the built-in synthesizer,
// and a raw MIDI output port. Every message goes to exactly one backend,
// chosen at send time, so a destination appearing or disappearing mid-set
// takes effect on the next note.
package router

import "math"

// Backend is a single audio destination. Implementations must be safe for
// concurrent use; the router calls them from the consumer loop and from
// playback workers.
type Backend interface {
	// Name identifies the backend in logs and status output.
	Name() string

	// Available reports whether the backend can currently accept
	// messages. Routing consults this on every send.
	Available() bool

	NoteOn(channel, note, velocity uint8) error
	NoteOff(channel, note uint8) error
	ControlChange(channel, controller, value uint8) error
	ProgramChange(channel, program uint8) error

	// AllNotesOff silences every sounding note on the channel.
	AllNotesOff(channel uint8) error

	Close() error
}

// FrequencyBackend is implemented by backends that can play arbitrary
// frequencies directly. Backends without it receive the nearest equal
// tempered pitch instead.
type FrequencyBackend interface {
	NoteOnFreq(channel uint8, freq float64, velocity uint8) error
}

// NumChannels is the channel count shared by all backends.
const NumChannels = 16

// FreqToNote converts a frequency in Hz to the nearest MIDI note number,
// clamped to the valid range. A440 is note 69.
func FreqToNote(freq float64) uint8 {
	if freq <= 0 {
		return 0
	}
	n := math.Round(69 + 12*math.Log2(freq/440))
	if n < 0 {
		return 0
	}
	if n > 127 {
		return 127
	}
	return uint8(n)
}

// NoteToFreq converts a MIDI note number to its equal tempered frequency.
func NoteToFreq(note uint8) float64 {
	return 440 * math.Pow(2, (float64(note)-69)/12)
}
