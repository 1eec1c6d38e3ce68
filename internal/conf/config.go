// config.go: settings struct for the livecore runtime and functions to load
// and save the settings via viper.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LogConfig contains settings for a rotating log file.
type LogConfig struct {
	Enabled    bool   // true to enable this log
	Path       string // path to log file
	MaxSizeMB  int    // rotate after this size
	MaxBackups int    // rotated files to keep
	MaxAgeDays int    // days to keep rotated files
}

// MainSettings contains top-level application settings.
type MainSettings struct {
	Name string    // instance name, used in log output
	Log  LogConfig // main log settings
}

// TempoSettings contains tempo synchronization settings.
type TempoSettings struct {
	Enabled       bool    // join the network session at startup
	BPM           float64 // initial tempo in beats per minute
	Quantum       float64 // default beat quantum for phase/beat queries
	StartStopSync bool    // honor transport start/stop from peers
}

// QueueSettings contains event queue settings.
type QueueSettings struct {
	Capacity int // ring buffer capacity, must be a power of two
}

// PlaybackSettings contains async playback settings.
type PlaybackSettings struct {
	Slots           int // concurrent playback slot pool size
	TicksPerQuarter int // tick resolution for tick-mode schedules
}

// EngineSettings contains settings for the OSC synthesis engine backend.
type EngineSettings struct {
	Enabled bool   // enable the engine backend at startup
	Host    string // engine OSC host
	Port    int    // engine OSC port
}

// SynthSettings contains settings for the built-in synth backend.
type SynthSettings struct {
	Enabled    bool // enable the built-in synth at startup
	SampleRate int  // playback device sample rate
}

// MIDISettings contains settings for the raw MIDI backend.
type MIDISettings struct {
	Enabled bool   // open the MIDI port at startup
	Port    string // MIDI output port name, empty for first available
	Channel int    // default MIDI channel (1-16)
}

// AudioSettings groups the three output backend configurations.
type AudioSettings struct {
	Engine EngineSettings
	Synth  SynthSettings
	MIDI   MIDISettings
}

// TelemetrySettings contains settings for the metrics endpoint.
type TelemetrySettings struct {
	Enabled bool   // true to enable Prometheus telemetry endpoint
	Listen  string // listen address and port
}

// Settings is the root configuration for livecore.
type Settings struct {
	Debug bool // true to enable debug logging

	Main      MainSettings
	Tempo     TempoSettings
	Queue     QueueSettings
	Playback  PlaybackSettings
	Audio     AudioSettings
	Telemetry TelemetrySettings
}

// Load reads the configuration from the first config file found in the
// search paths, applying defaults for anything not set. A missing config
// file is not an error; defaults apply.
func Load() (*Settings, error) {
	setDefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	for _, p := range configPaths() {
		viper.AddConfigPath(p)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := Validate(settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// Save writes the current settings to the given path as YAML.
func Save(settings *Settings, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// configPaths returns the config file search paths in priority order.
func configPaths() []string {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "livecore"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "livecore"))
	}
	return paths
}
