// Package cmd wires the engine's cobra entrypoint: a single rootCmd whose
// Long description documents what the binary does and whose RunE hands
// off to the composition root.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/drgolem/go-portaudio/portaudio"
	"github.com/spf13/cobra"

	"github.com/ntmusic/vmusic-engine/internal/app"
)

var verbose bool

// rootCmd is the engine process: a long-running daemon, not a one-shot CLI
// action, so it takes no file-path argument — playback is driven entirely
// over the HTTP/WebSocket control surface.
var rootCmd = &cobra.Command{
	Use:   "vmusic-engine",
	Short: "Embedded audio playback engine with a localhost control surface",
	Long: `vmusic-engine decodes compressed music files, resamples and dithers
PCM for the target output device, and renders it through a pull-mode audio
callback, while simultaneously ingesting network streams or system-loopback
capture through an external transcoder process.

A host process drives it over a localhost HTTP/WebSocket control surface
(POST /load, /play, /pause, /seek, /volume, /configure_output, ...) and
reads real-time spectrum data through a lock-free shared-memory region.

Configuration is entirely environment-driven (VMUSIC_ENGINE_PORT,
VMUSIC_ASSET_DIR, VMUSIC_SOXR_DIR, NTMUSIC_SPECTRUM_SHM,
NTMUSIC_SPECTRUM_BINS, NTMUSIC_CONTROL_SHM, NTMUSIC_CONTROL_CAPACITY,
NTMUSIC_COVER_DIR); there is no CLI configuration surface by design, since
the host process owns the engine's lifecycle.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEngine()
	},
}

func runEngine() error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := app.New(app.ConfigFromEnv(), log)
	defer e.Close()

	return e.Run(ctx)
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(); it only needs to run once.
func Execute() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(devicesCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
