// Package cmd builds the livecore command tree.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/livecore-audio/livecore/cmd/live"
	"github.com/livecore-audio/livecore/cmd/ports"
	"github.com/livecore-audio/livecore/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "livecore",
		Short: "livecore CLI",
		Long:  "Event coordination and audio routing runtime for live coded music.",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		live.Command(settings),
		ports.Command(),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Command-line flags take precedence over the config file.
		if err := viper.Unmarshal(settings); err != nil {
			return fmt.Errorf("error syncing settings: %w", err)
		}
		return conf.Validate(settings)
	}

	return rootCmd
}

// setupFlags configures global flags shared by all subcommands.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	cmd.PersistentFlags().Float64Var(&settings.Tempo.BPM, "bpm", viper.GetFloat64("tempo.bpm"), "Initial tempo in beats per minute")
	cmd.PersistentFlags().BoolVar(&settings.Tempo.Enabled, "sync", viper.GetBool("tempo.enabled"), "Join the network tempo session at startup")

	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		cobra.CheckErr(fmt.Errorf("error binding flags: %w", err))
	}
}
