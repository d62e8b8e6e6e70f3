// Package app composes the engine's components into the running process:
// an HTTP/WebSocket control surface bound to 127.0.0.1, the shared-memory
// spectrum/control regions, and the two periodic broadcasters (state at
// 4Hz, spectrum at 20Hz), all wired around a single engine.Dispatcher. It
// is what the cmd package's root (daemon) command runs, pulled into its own
// package because there are many collaborators here to assemble.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/ntmusic/vmusic-engine/internal/engine"
	"github.com/ntmusic/vmusic-engine/internal/output"
	"github.com/ntmusic/vmusic-engine/internal/ring"
	"github.com/ntmusic/vmusic-engine/internal/server"
	"github.com/ntmusic/vmusic-engine/internal/shm"
	"github.com/ntmusic/vmusic-engine/internal/spectrum"
	"github.com/ntmusic/vmusic-engine/internal/transcoder"
)

// defaultBufferMaxMs sizes the ring buffer before any stream/capture
// session has reported its own preferred cap (buffer_max_ms is per-session
// configuration the host has not yet sent at startup).
const (
	defaultBufferMaxMs   = 2000
	defaultRingRate      = 48000
	defaultRingChannels  = 2
	stateBroadcastPeriod = 250 * time.Millisecond // 4 Hz
	spectrumTickPeriod   = 50 * time.Millisecond  // 20 Hz
)

// Config is the engine's environment-derived configuration. VMUSIC_SOXR_DIR
// is consumed inside internal/resample's lazy library probe rather than
// here, since the probe must also work in processes that never build an
// app.Engine (the devices subcommand, tests).
type Config struct {
	Port            int
	AssetDir        string
	SpectrumSHMPath string
	SpectrumBins    int
	ControlSHMPath  string
	ControlCapacity int
	CoverDir        string
}

// ConfigFromEnv reads the engine's configuration environment variables,
// applying the documented defaults.
func ConfigFromEnv() Config {
	return Config{
		Port:            envInt("VMUSIC_ENGINE_PORT", 55554),
		AssetDir:        os.Getenv("VMUSIC_ASSET_DIR"),
		SpectrumSHMPath: os.Getenv("NTMUSIC_SPECTRUM_SHM"),
		SpectrumBins:    envInt("NTMUSIC_SPECTRUM_BINS", 48),
		ControlSHMPath:  os.Getenv("NTMUSIC_CONTROL_SHM"),
		ControlCapacity: envInt("NTMUSIC_CONTROL_CAPACITY", 64),
		CoverDir:        os.Getenv("NTMUSIC_COVER_DIR"),
	}
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// Engine bundles every collaborator the control server and the periodic
// broadcasters share.
type Engine struct {
	cfg        Config
	log        *slog.Logger
	state      *engine.EngineState
	rb         *ring.Buffer
	control    *shm.ControlRegion
	spectrumW  *shm.SpectrumWriter
	analyzer   *spectrum.Analyzer
	dispatcher *engine.Dispatcher
	srv        *server.Server
	transcoder *transcoder.Reader
	renderer   *output.Renderer
}

// New wires every component along the engine's data-flow path, degrading
// gracefully when a shared-memory region cannot be mapped: broadcasts
// still proceed over the WebSocket even without shared memory.
func New(cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}

	state := engine.NewEngineState(defaultBufferMaxMs)
	rb := ring.NewForMillis(defaultBufferMaxMs, defaultRingRate, defaultRingChannels)

	var control *shm.ControlRegion
	if cfg.ControlSHMPath != "" {
		c, err := shm.NewControlRegion(cfg.ControlSHMPath, uint32(cfg.ControlCapacity))
		if err != nil {
			log.Warn("control shared-memory region disabled", "path", cfg.ControlSHMPath, "error", err)
		} else {
			control = c
		}
	}

	var spectrumW *shm.SpectrumWriter
	if cfg.SpectrumSHMPath != "" {
		w, err := shm.NewSpectrumWriter(cfg.SpectrumSHMPath, cfg.SpectrumBins)
		if err != nil {
			log.Warn("spectrum shared-memory region disabled", "path", cfg.SpectrumSHMPath, "error", err)
		} else {
			spectrumW = w
		}
	}

	renderer := output.New(rb, control, log)

	tc := transcoder.New(transcoderBinaryPath(cfg.AssetDir), rb, log)

	srv := server.New(nil, log) // Dispatcher wired in below, after construction.
	dispatcher := engine.NewDispatcher(state, rb, renderer, tc, srv, log)
	srv.Dispatcher = dispatcher

	return &Engine{
		cfg:        cfg,
		log:        log,
		state:      state,
		rb:         rb,
		control:    control,
		spectrumW:  spectrumW,
		analyzer:   spectrum.New(cfg.SpectrumBins),
		dispatcher: dispatcher,
		srv:        srv,
		transcoder: tc,
		renderer:   renderer,
	}
}

// transcoderBinaryPath resolves the bundled transcoder binary under
// VMUSIC_ASSET_DIR (ffmpeg.exe on Windows).
func transcoderBinaryPath(assetDir string) string {
	name := "ffmpeg"
	if runtime.GOOS == "windows" {
		name = "ffmpeg.exe"
	}
	if assetDir == "" {
		return name
	}
	return filepath.Join(assetDir, name)
}

// Run binds the HTTP/WebSocket control surface, starts the periodic
// broadcasters, prints the VMUSIC_ENGINE_READY synchronization line on
// successful bind, and serves until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	addr := fmt.Sprintf("127.0.0.1:%d", e.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("app: bind %s: %w", addr, err)
	}

	fmt.Println("VMUSIC_ENGINE_READY")
	e.log.Info("engine listening", "addr", addr)

	go e.runStateBroadcaster(ctx)
	go e.runSpectrumTicker(ctx)

	httpServer := &http.Server{Handler: e.srv.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("app: serve: %w", err)
	}
	return nil
}

// runStateBroadcaster fans playback_state and buffer_state out every
// stateBroadcastPeriod (4Hz), independent of the spectrum ticker; the two
// broadcasters are intentionally uncoordinated with each other.
func (e *Engine) runStateBroadcaster(ctx context.Context) {
	ticker := time.NewTicker(stateBroadcastPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.srv.Broadcast("playback_state", e.dispatcher.StateView())
			e.srv.Broadcast("buffer_state", e.dispatcher.BufferView())
		}
	}
}

// runSpectrumTicker analyzes the engine's spectrum mirror every
// spectrumTickPeriod (20Hz), publishing to the shared-memory region (if
// mapped) and broadcasting spectrum_data (suppressed by the server when
// the host has disabled it via /spectrum/ws).
func (e *Engine) runSpectrumTicker(ctx context.Context) {
	ticker := time.NewTicker(spectrumTickPeriod)
	defer ticker.Stop()

	mirror := make([]float32, len(e.state.SpectrumMirror))
	out := make([]float32, e.cfg.SpectrumBins)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.state.Mu.Lock()
			copy(mirror, e.state.SpectrumMirror)
			rate := e.state.Working.SampleRate
			e.state.Mu.Unlock()

			e.analyzer.Analyze(mirror, rate, out)

			if e.spectrumW != nil {
				e.spectrumW.Publish(out)
			}
			e.srv.Broadcast("spectrum_data", map[string]any{"bins": append([]float32(nil), out...)})
		}
	}
}

// Close releases shared-memory mappings and tears down the active
// renderer/transcoder. Call during process shutdown.
func (e *Engine) Close() {
	e.renderer.Teardown()
	e.transcoder.Stop()
	if e.control != nil {
		e.control.Close()
	}
	if e.spectrumW != nil {
		e.spectrumW.Close()
	}
}
