package core

import "github.com/livecore-audio/livecore/internal/conf"

// defaultTestSettings returns settings with every external surface turned
// off, suitable for wiring stubs in.
func defaultTestSettings() *conf.Settings {
	return &conf.Settings{
		Main: conf.MainSettings{Name: "livecore-test"},
		Tempo: conf.TempoSettings{
			Enabled: true,
			BPM:     120,
			Quantum: 4,
		},
		Queue: conf.QueueSettings{Capacity: 64},
		Playback: conf.PlaybackSettings{
			Slots:           4,
			TicksPerQuarter: 480,
		},
	}
}
