// Package decode implements the decoder façade: turning a file path into
// interleaved float32 PCM plus its source format. Per-format backends live
// in backend_*.go and satisfy the small `backend` interface below.
package decode

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrNoDefaultTrack is returned when a container exposes no usable audio
// track (e.g. an empty or malformed file).
var ErrNoDefaultTrack = errors.New("decode: no default track")

// ErrProbeFailed is returned when the extension hint does not match any
// registered backend, or the backend rejects the file during Open.
var ErrProbeFailed = errors.New("decode: probe failed")

// Result is the decoder façade's output: samples plus the format metadata
// needed to drive resampling and rendering.
type Result struct {
	Samples    []float32 // interleaved
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   float64 // seconds
}

// backend is the per-format decoding contract. DecodeChunk reads up to
// `frames` frames of raw interleaved samples into audio, returning frames
// actually decoded.
// Gapless lookahead (delay, padding) is backend-specific and defaults to
// zero when a format carries none (none of the wired backends expose
// gapless metadata from their underlying libraries).
type backend interface {
	Open(path string) error
	Close() error
	Format() (rate, channels, bitsPerSample int)
	DecodeChunk(frames int, audio []byte) (int, error)
	GaplessInfo() (delay, padding int)
}

type backendFactory func() backend

var registry = map[string]backendFactory{
	".wav":  func() backend { return newWAVBackend() },
	".mp3":  func() backend { return newMP3Backend() },
	".flac": func() backend { return newFLACBackend() },
	".ogg":  func() backend { return newVorbisBackend() },
}

// Decode probes path by extension hint, decodes the full stream into an
// interleaved float32 buffer chunk by chunk, applies the gapless trim, and
// returns the result with samples converted via pcm.go's converters.
func Decode(path string) (Result, error) {
	ext := strings.ToLower(filepath.Ext(path))
	factory, ok := registry[ext]
	if !ok {
		return Result{}, fmt.Errorf("%w: unrecognized extension %q", ErrProbeFailed, ext)
	}

	b := factory()
	if err := b.Open(path); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	defer b.Close()

	rate, channels, bits := b.Format()
	if channels <= 0 {
		return Result{}, fmt.Errorf("%w: no default track in %s", ErrNoDefaultTrack, path)
	}

	const chunkFrames = 4096
	bytesPerSample := bits / 8
	chunk := make([]byte, chunkFrames*channels*bytesPerSample)

	var samples []float32
	for {
		n, err := b.DecodeChunk(chunkFrames, chunk)
		if n > 0 {
			samples = append(samples, bytesToFloat32(chunk[:n*channels*bytesPerSample], bits)...)
		}
		if err != nil {
			break
		}
		if n == 0 {
			break
		}
	}

	delay, padding := b.GaplessInfo()
	samples = ApplyGaplessTrim(samples, channels, delay, padding)

	frames := len(samples) / channels
	duration := 0.0
	if rate > 0 {
		duration = float64(frames) / float64(rate)
	}

	bitDepth := bits
	if bits == float32Bits {
		bitDepth = 32
	}

	return Result{
		Samples:    samples,
		SampleRate: rate,
		Channels:   channels,
		BitDepth:   bitDepth,
		Duration:   duration,
	}, nil
}

// ApplyGaplessTrim drops d leading frames and p trailing frames from an
// interleaved sample buffer: len(trim) = max(0, frames - d - p) * channels,
// and d=p=0 is the identity.
func ApplyGaplessTrim(samples []float32, channels, delay, padding int) []float32 {
	if channels <= 0 {
		return samples
	}
	if delay == 0 && padding == 0 {
		return samples
	}

	frames := len(samples) / channels
	keep := frames - delay - padding
	if keep < 0 {
		keep = 0
	}
	start := delay * channels
	if start > len(samples) {
		start = len(samples)
	}
	end := start + keep*channels
	if end > len(samples) {
		end = len(samples)
	}

	out := make([]float32, end-start)
	copy(out, samples[start:end])
	return out
}
