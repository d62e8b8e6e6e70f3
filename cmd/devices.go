package cmd

import (
	"fmt"

	"github.com/drgolem/go-portaudio/portaudio"
	"github.com/spf13/cobra"

	"github.com/ntmusic/vmusic-engine/internal/output"
)

// devicesCmd lists output devices with the stable ordinals
// configure_output's device_id addresses, for operators wiring up a host
// shell without going through GET /devices.
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List output devices and their configure_output ordinals",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("initialize portaudio: %w", err)
		}
		defer portaudio.Terminate()

		devices, err := output.ListDevices()
		if err != nil {
			return err
		}
		for _, d := range devices {
			fmt.Printf("%3d  %-40s  %-16s  %d ch  %.0f Hz\n",
				d.Ordinal, d.Name, d.HostAPI, d.MaxOutputChannels, d.DefaultSampleRate)
		}
		return nil
	},
}
