// Package transcoder supervises the external transcoder child process: it
// spawns ffmpeg (or the configured binary) against a stream URL or capture
// directive, reads pcm_f32le off stdout, and feeds the playback ring
// buffer.
package transcoder

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os/exec"
	"runtime"
	"sync"

	"github.com/ntmusic/vmusic-engine/internal/engine"
	"github.com/ntmusic/vmusic-engine/internal/ring"
)

const readChunkBytes = 8192

// Reader is the engine.TranscoderController implementation.
type Reader struct {
	binaryPath string
	rb         *ring.Buffer
	log        *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a reader that writes decoded PCM into rb. binaryPath is
// resolved from VMUSIC_ASSET_DIR by the caller before construction.
func New(binaryPath string, rb *ring.Buffer, log *slog.Logger) *Reader {
	if log == nil {
		log = slog.Default()
	}
	return &Reader{binaryPath: binaryPath, rb: rb, log: log}
}

// Start stops any previous transcoder and spawns a new one against the
// state's current stream URL / capture source, at the current working rate
// and channel count.
func (r *Reader) Start(s *engine.EngineState) error {
	r.Stop()

	s.Mu.Lock()
	url := s.StreamURL
	rate := s.Working.SampleRate
	channels := s.Working.Channels
	s.Mu.Unlock()

	args := buildArgs(url, rate, channels)

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, r.binaryPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("%w: %v", engine.ErrTranscoderSpawn, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("%w: %v", engine.ErrTranscoderSpawn, err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		setStreamError(s, fmt.Errorf("%w: %v", engine.ErrTranscoderSpawn, err))
		return fmt.Errorf("%w: %v", engine.ErrTranscoderSpawn, err)
	}

	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	setStreamStatus(s, engine.StreamStarting)

	r.wg.Add(2)
	go r.drainStderr(stderr)
	go r.readLoop(s, stdout, channels)

	go func() {
		_ = cmd.Wait()
	}()

	return nil
}

// Stop tears down the active child process, if any, and waits for its
// reader goroutines to exit.
func (r *Reader) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// drainStderr logs each line from the child's stderr at debug level; ffmpeg
// treats stderr as informational progress output, never a failure signal
// by itself.
func (r *Reader) drainStderr(stderr io.ReadCloser) {
	defer r.wg.Done()
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		r.log.Debug("transcoder stderr", "line", scanner.Text())
	}
}

// readLoop parses 4-byte little-endian floats out of stdout in 8 KiB
// chunks and pushes them into the ring buffer, incrementing buffered_frames
// every channels samples. EOF or a read error ends the loop and marks the
// stream stopped or errored.
func (r *Reader) readLoop(s *engine.EngineState, stdout io.ReadCloser, channels int) {
	defer r.wg.Done()

	buf := make([]byte, readChunkBytes)
	var carry []byte
	first := true
	sampleBatch := make([]float32, 0, readChunkBytes/4)

	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			if first {
				setStreamStatus(s, engine.StreamRunning)
				first = false
			}

			data := append(carry, buf[:n]...)
			usable := len(data) - len(data)%4
			sampleBatch = sampleBatch[:0]
			for off := 0; off+4 <= usable; off += 4 {
				bits := binary.LittleEndian.Uint32(data[off : off+4])
				sampleBatch = append(sampleBatch, math.Float32frombits(bits))
			}
			carry = append(carry[:0], data[usable:]...)

			if len(sampleBatch) > 0 {
				written, pushErr := r.rb.Push(sampleBatch)
				if pushErr != nil {
					r.log.Debug("transcoder ring full, dropping samples", "dropped", len(sampleBatch)-written)
				}
				frames := written / channels
				if frames > 0 {
					s.Mu.Lock()
					s.BufferedFrames += uint64(frames)
					s.Mu.Unlock()
				}
			}
		}

		if err != nil {
			if first {
				setStreamError(s, fmt.Errorf("%w: %v", engine.ErrTranscoderRead, err))
			} else {
				setStreamStatus(s, engine.StreamStopped)
			}
			return
		}
	}
}

func buildArgs(url string, rate, channels int) []string {
	input := url
	if input == "" {
		input = captureSourceName()
	}
	return []string{
		"-loglevel", "error",
		"-i", input,
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ar", fmt.Sprintf("%d", rate),
		"-ac", fmt.Sprintf("%d", channels),
		"pipe:1",
	}
}

func captureSourceName() string {
	if runtime.GOOS == "windows" {
		return "wasapi:default"
	}
	return "default"
}

func setStreamStatus(s *engine.EngineState, status engine.StreamStatus) {
	s.Mu.Lock()
	s.StreamStatus = status
	s.Mu.Unlock()
}

func setStreamError(s *engine.EngineState, err error) {
	s.Mu.Lock()
	s.StreamStatus = engine.StreamError
	s.StreamError = err.Error()
	s.Mu.Unlock()
}
