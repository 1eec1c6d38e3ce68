package conf

import (
	"fmt"

	"github.com/livecore-audio/livecore/internal/errors"
)

// MinTempo and MaxTempo bound the usable tempo range in BPM. Values outside
// the range are clamped by the tempo layer, but the config rejects them so
// a typo is caught at startup rather than silently altered.
const (
	MinTempo = 20.0
	MaxTempo = 999.0
)

// Validate checks settings for values the runtime cannot work with.
func Validate(s *Settings) error {
	if s.Tempo.BPM < MinTempo || s.Tempo.BPM > MaxTempo {
		return validationError(fmt.Sprintf("tempo.bpm must be between %v and %v, got %v",
			MinTempo, MaxTempo, s.Tempo.BPM))
	}

	if s.Tempo.Quantum <= 0 {
		return validationError(fmt.Sprintf("tempo.quantum must be positive, got %v", s.Tempo.Quantum))
	}

	if s.Queue.Capacity <= 0 || s.Queue.Capacity&(s.Queue.Capacity-1) != 0 {
		return validationError(fmt.Sprintf("queue.capacity must be a power of two, got %d", s.Queue.Capacity))
	}

	if s.Playback.Slots < 1 || s.Playback.Slots > 64 {
		return validationError(fmt.Sprintf("playback.slots must be between 1 and 64, got %d", s.Playback.Slots))
	}

	if s.Playback.TicksPerQuarter <= 0 {
		return validationError(fmt.Sprintf("playback.ticksperquarter must be positive, got %d", s.Playback.TicksPerQuarter))
	}

	if s.Audio.MIDI.Channel < 1 || s.Audio.MIDI.Channel > 16 {
		return validationError(fmt.Sprintf("audio.midi.channel must be between 1 and 16, got %d", s.Audio.MIDI.Channel))
	}

	if s.Audio.Engine.Port < 1 || s.Audio.Engine.Port > 65535 {
		return validationError(fmt.Sprintf("audio.engine.port must be a valid port, got %d", s.Audio.Engine.Port))
	}

	if s.Audio.Synth.SampleRate < 8000 || s.Audio.Synth.SampleRate > 192000 {
		return validationError(fmt.Sprintf("audio.synth.samplerate must be between 8000 and 192000, got %d", s.Audio.Synth.SampleRate))
	}

	return nil
}

func validationError(msg string) error {
	return errors.Newf(msg).
		Component("conf").
		Category(errors.CategoryValidation).
		Build()
}
