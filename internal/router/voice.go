package router

import (
	"math"
	"sync"
)

// maxVoices bounds the built-in synth's polyphony. A note-on past the limit
// steals the oldest sounding voice.
const maxVoices = 32

type voiceState uint8

const (
	voiceIdle voiceState = iota
	voiceHeld
	voiceReleased
)

type voice struct {
	state   voiceState
	channel uint8
	note    uint8
	phase   float64
	inc     float64
	gain    float64
	env     float64
	age     uint64
}

// PolyVoice is the built-in renderer: a bank of sine voices with an
// exponential release, enough to audition patterns when no engine or MIDI
// destination is up. It makes no claim to being an instrument.
type PolyVoice struct {
	mu         sync.Mutex
	voices     [maxVoices]voice
	sampleRate float64
	release    float64 // per-sample envelope multiplier after note-off
	counter    uint64
}

// NewPolyVoice creates a renderer for the given sample rate.
func NewPolyVoice(sampleRate float64) *PolyVoice {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	return &PolyVoice{
		sampleRate: sampleRate,
		// Roughly 150 ms to -60 dB.
		release: math.Pow(0.001, 1/(0.15*sampleRate)),
	}
}

func (p *PolyVoice) NoteOn(channel, note, velocity uint8) {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := p.allocate()
	p.counter++
	*v = voice{
		state:   voiceHeld,
		channel: channel,
		note:    note,
		inc:     2 * math.Pi * NoteToFreq(note) / p.sampleRate,
		gain:    float64(velocity) / 127 * 0.2,
		env:     1,
		age:     p.counter,
	}
}

// allocate returns an idle voice, or steals the oldest one.
func (p *PolyVoice) allocate() *voice {
	var oldest *voice
	for i := range p.voices {
		v := &p.voices[i]
		if v.state == voiceIdle {
			return v
		}
		if oldest == nil || v.age < oldest.age {
			oldest = v
		}
	}
	return oldest
}

func (p *PolyVoice) NoteOff(channel, note uint8) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.voices {
		v := &p.voices[i]
		if v.state == voiceHeld && v.channel == channel && v.note == note {
			v.state = voiceReleased
		}
	}
}

func (p *PolyVoice) ControlChange(channel, controller, value uint8) {
	// CC 123 is all-notes-off; everything else is ignored.
	if controller == 123 {
		p.AllNotesOff(channel)
	}
}

func (p *PolyVoice) ProgramChange(channel, program uint8) {
	// Single timbre; nothing to select.
}

func (p *PolyVoice) AllNotesOff(channel uint8) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.voices {
		v := &p.voices[i]
		if v.state == voiceHeld && v.channel == channel {
			v.state = voiceReleased
		}
	}
}

// Render mixes all sounding voices into out (interleaved stereo).
func (p *PolyVoice) Render(out []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	frames := len(out) / 2
	for i := range p.voices {
		v := &p.voices[i]
		if v.state == voiceIdle {
			continue
		}

		for f := 0; f < frames; f++ {
			sample := float32(math.Sin(v.phase) * v.gain * v.env)
			out[f*2] += sample
			out[f*2+1] += sample

			v.phase += v.inc
			if v.phase > 2*math.Pi {
				v.phase -= 2 * math.Pi
			}
			if v.state == voiceReleased {
				v.env *= p.release
			}
		}

		if v.state == voiceReleased && v.env < 0.0005 {
			v.state = voiceIdle
		}
	}
}

// ActiveVoices reports how many voices are sounding. Used by tests and
// status output.
func (p *PolyVoice) ActiveVoices() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for i := range p.voices {
		if p.voices[i].state != voiceIdle {
			n++
		}
	}
	return n
}
