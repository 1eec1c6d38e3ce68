// Package ports implements the ports subcommand, which lists the MIDI
// output ports and audio playback devices visible to the runtime.
package ports

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/livecore-audio/livecore/internal/router"
)

// Command creates the ports subcommand.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List MIDI output ports and audio playback devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("MIDI output ports:")
			midiPorts := router.ListOutPorts()
			if len(midiPorts) == 0 {
				fmt.Println("  (none)")
			}
			for i, name := range midiPorts {
				fmt.Printf("  %2d: %s\n", i, name)
			}

			fmt.Println("Audio playback devices:")
			devices, err := router.ListPlaybackDevices()
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Println("  (none)")
			}
			for i, name := range devices {
				fmt.Printf("  %2d: %s\n", i, name)
			}
			return nil
		},
	}
}
