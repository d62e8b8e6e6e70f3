// Package engine holds the canonical mutable playback model (EngineState)
// and the control dispatcher that mutates it: a mutex-guarded struct plus
// the goroutines/operations that touch it, down to the atomic counters
// used on the hot callback path.
package engine

import (
	"sync"
	"sync/atomic"

	"github.com/ntmusic/vmusic-engine/internal/dither"
	"github.com/ntmusic/vmusic-engine/internal/resample"
)

// Mode is the playback mode.
type Mode string

const (
	ModeIdle    Mode = "idle"
	ModeFile    Mode = "file"
	ModeStream  Mode = "stream"
	ModeCapture Mode = "capture"
)

// StreamStatus tracks a stream/capture transport.
type StreamStatus string

const (
	StreamIdle     StreamStatus = "idle"
	StreamStarting StreamStatus = "starting"
	StreamRunning  StreamStatus = "running"
	StreamStopped  StreamStatus = "stopped"
	StreamError    StreamStatus = "error"
)

// SourceDescriptor is set at load time and never mutated afterward.
type SourceDescriptor struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// WorkingDescriptor is set after any optional resample; channel count is
// always identical to the source's.
type WorkingDescriptor struct {
	SampleRate int
	Channels   int
}

// LibraryTrack is a scanned or queued track reference.
type LibraryTrack struct {
	Path     string
	Title    string
	Artist   string
	Album    string
	Duration float64
}

// EngineState is the single mutable instance, exclusively held behind Mu.
// Every producer/consumer path (dispatcher, device callback, control-ring
// drain) acquires Mu, mutates, and releases promptly; no long-held locks
// across I/O, except the device callback, which is tolerated holding Mu
// for one buffer's worth of work because it is the sole consumer and
// buffers are a few ms.
type EngineState struct {
	Mu sync.Mutex

	Mode      Mode
	IsPlaying bool
	IsPaused  bool

	Source  SourceDescriptor
	Working WorkingDescriptor

	// File buffer.
	Data            []float32 // interleaved
	Position        int       // frame cursor
	PlayedFrames    uint64
	DurationSeconds float64
	CurrentPath     string

	// Gain/processing.
	Volume            float32
	LimiterEnabled    bool
	LimiterThreshold  float32
	EQBands           map[string]float64
	EQEnabled         bool
	EQType            string
	ReplayGainEnabled bool

	// Dither.
	DitherEnabled bool
	DitherType    dither.Type
	DitherBits    int
	DitherState   *dither.State

	// Resampler config.
	ResamplerMode    resample.Mode
	ResamplerQuality resample.Quality
	HQLibAvailable   bool

	// Output selection.
	DeviceID      *int
	ExclusiveMode bool

	TargetSampleRate *int

	// Stream/capture.
	StreamURL      string
	StreamStatus   StreamStatus
	StreamError    string
	BufferedFrames uint64
	BufferMaxMs    int
	Underruns      uint64

	// Library & queue.
	Library    []LibraryTrack
	Queue      []LibraryTrack
	QueueIndex *int

	// Spectrum mirror: last callback's downmixed frames, up to 2048.
	SpectrumMirror    []float32
	SpectrumWSEnabled bool

	// Callback invocation counter exposed via /buffer/state. Atomic so
	// the broadcasters can read it without contending on Mu.
	CallbackInvocations atomic.Uint64
}

// NewEngineState constructs the state with the defaults an engine process
// starts with: idle mode, unity volume, limiter off at a safe threshold,
// dither off, resampler auto/std.
func NewEngineState(bufferMaxMs int) *EngineState {
	return &EngineState{
		Mode:             ModeIdle,
		Volume:           1.0,
		LimiterThreshold: 0.9,
		EQBands:          map[string]float64{},
		EQType:           "default",
		DitherBits:       16,
		DitherState:      dither.NewState(0x2545F4914F6CDD1D),
		ResamplerMode:    resample.ModeAuto,
		ResamplerQuality: resample.QualityStd,
		HQLibAvailable:   resample.HQAvailable(),
		StreamStatus:     StreamIdle,
		BufferMaxMs:      bufferMaxMs,
		SpectrumMirror:   make([]float32, 2048),
	}
}

// Frames returns the file buffer's frame count given the working channel
// count, the invariant data.len() is a multiple of channels.
func (s *EngineState) Frames() int {
	if s.Working.Channels == 0 {
		return 0
	}
	return len(s.Data) / s.Working.Channels
}

// ResampleForOutput converts the resident file buffer to fallbackRate when
// the chosen device refuses the current working rate: the buffer is
// replaced in place, the position cursor is scaled proportionally, and the
// duration updated. The conversion itself runs outside the lock, matching
// the load path.
func (s *EngineState) ResampleForOutput(fallbackRate int) error {
	s.Mu.Lock()
	fromRate := s.Working.SampleRate
	channels := s.Working.Channels
	data := s.Data
	mode := s.ResamplerMode
	quality := s.ResamplerQuality
	s.Mu.Unlock()

	if fromRate == fallbackRate || channels == 0 {
		return nil
	}

	resampled, err := resample.Resample(data, channels, fromRate, fallbackRate, mode, quality)
	if err != nil {
		return err
	}

	s.Mu.Lock()
	s.Data = resampled
	s.Working.SampleRate = fallbackRate
	s.Position = int(float64(s.Position) * float64(fallbackRate) / float64(fromRate))
	if frames := s.Frames(); s.Position > frames {
		s.Position = frames
	}
	s.DurationSeconds = float64(s.Frames()) / float64(fallbackRate)
	s.Mu.Unlock()
	return nil
}
