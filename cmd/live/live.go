// Package live implements the live subcommand, which runs the full
// runtime until interrupted.
package live

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/livecore-audio/livecore/internal/conf"
	"github.com/livecore-audio/livecore/internal/core"
	"github.com/livecore-audio/livecore/internal/logging"
)

// Command creates the live subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Run the livecore runtime",
		Long:  "Join the tempo session, open the configured audio destinations and serve the event loop until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the live command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().BoolVar(&settings.Audio.Engine.Enabled, "engine", viper.GetBool("audio.engine.enabled"), "Enable the external engine backend")
	cmd.Flags().StringVar(&settings.Audio.Engine.Host, "enginehost", viper.GetString("audio.engine.host"), "Engine OSC host")
	cmd.Flags().IntVar(&settings.Audio.Engine.Port, "engineport", viper.GetInt("audio.engine.port"), "Engine OSC port")
	cmd.Flags().BoolVar(&settings.Audio.Synth.Enabled, "synth", viper.GetBool("audio.synth.enabled"), "Enable the built-in synthesizer")
	cmd.Flags().BoolVar(&settings.Audio.MIDI.Enabled, "midi", viper.GetBool("audio.midi.enabled"), "Enable the raw MIDI backend")
	cmd.Flags().StringVar(&settings.Audio.MIDI.Port, "midiport", viper.GetString("audio.midi.port"), "MIDI output port name, empty for first available")
	cmd.Flags().BoolVar(&settings.Telemetry.Enabled, "telemetry", viper.GetBool("telemetry.enabled"), "Enable Prometheus telemetry endpoint")
	cmd.Flags().StringVar(&settings.Telemetry.Listen, "listen", viper.GetString("telemetry.listen"), "Listen address and port of telemetry endpoint")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

func run(settings *conf.Settings) error {
	logger := logging.ForService("live")

	c, err := core.New(settings)
	if err != nil {
		return fmt.Errorf("runtime init failed: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("interrupted, shutting down")
	return nil
}
