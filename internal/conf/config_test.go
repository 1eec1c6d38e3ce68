package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livecore-audio/livecore/internal/errors"
)

func defaultSettings() *Settings {
	s := &Settings{}
	s.Tempo.BPM = 120
	s.Tempo.Quantum = 4
	s.Queue.Capacity = 256
	s.Playback.Slots = 8
	s.Playback.TicksPerQuarter = 480
	s.Audio.MIDI.Channel = 1
	s.Audio.Engine.Port = 57120
	s.Audio.Synth.SampleRate = 44100
	return s
}

func TestValidateDefaults(t *testing.T) {
	require.NoError(t, Validate(defaultSettings()))
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"tempo below range", func(s *Settings) { s.Tempo.BPM = 10 }},
		{"tempo above range", func(s *Settings) { s.Tempo.BPM = 5000 }},
		{"zero quantum", func(s *Settings) { s.Tempo.Quantum = 0 }},
		{"non power of two capacity", func(s *Settings) { s.Queue.Capacity = 100 }},
		{"zero capacity", func(s *Settings) { s.Queue.Capacity = 0 }},
		{"zero slots", func(s *Settings) { s.Playback.Slots = 0 }},
		{"midi channel zero", func(s *Settings) { s.Audio.MIDI.Channel = 0 }},
		{"midi channel 17", func(s *Settings) { s.Audio.MIDI.Channel = 17 }},
		{"bad engine port", func(s *Settings) { s.Audio.Engine.Port = 0 }},
		{"bad sample rate", func(s *Settings) { s.Audio.Synth.SampleRate = 1000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := defaultSettings()
			tt.mutate(s)
			err := Validate(s)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
}
