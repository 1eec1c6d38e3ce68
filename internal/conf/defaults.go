// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "livecore")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "livecore.log")
	viper.SetDefault("main.log.maxsizemb", 100)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxagedays", 28)

	viper.SetDefault("tempo.enabled", false)
	viper.SetDefault("tempo.bpm", 120.0)
	viper.SetDefault("tempo.quantum", 4.0)
	viper.SetDefault("tempo.startstopsync", false)

	viper.SetDefault("queue.capacity", 256)

	viper.SetDefault("playback.slots", 8)
	viper.SetDefault("playback.ticksperquarter", 480)

	viper.SetDefault("audio.engine.enabled", false)
	viper.SetDefault("audio.engine.host", "127.0.0.1")
	viper.SetDefault("audio.engine.port", 57120)

	viper.SetDefault("audio.synth.enabled", false)
	viper.SetDefault("audio.synth.samplerate", 44100)

	viper.SetDefault("audio.midi.enabled", false)
	viper.SetDefault("audio.midi.port", "")
	viper.SetDefault("audio.midi.channel", 1)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "localhost:8090")
}
