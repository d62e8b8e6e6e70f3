package engine

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ntmusic/vmusic-engine/internal/decode"
	"github.com/ntmusic/vmusic-engine/internal/dither"
	"github.com/ntmusic/vmusic-engine/internal/resample"
	"github.com/ntmusic/vmusic-engine/internal/ring"
)

// OutputController is the output renderer's collaborator contract from the
// dispatcher's point of view: rebuild the active stream from current
// state, or tear down whichever renderer (shared or exclusive) is active.
// internal/output implements this; the dispatcher only depends on the
// interface to avoid an import cycle.
type OutputController interface {
	Rebuild(s *EngineState) error
	Teardown()
}

// TranscoderController is the transcoder reader's collaborator contract.
type TranscoderController interface {
	Start(s *EngineState) error
	Stop()
}

// Broadcaster fans a named event (playback_state, buffer_state,
// stream_state, spectrum_data) out to WebSocket subscribers.
type Broadcaster interface {
	Broadcast(event string, payload any)
}

// Dispatcher exposes the engine's control operations, each mutating State
// under its Mu and reacting by restarting downstream subsystems in a fixed
// order (transcoder before renderer, renderer before broadcast).
type Dispatcher struct {
	State      *EngineState
	Ring       *ring.Buffer
	Output     OutputController
	Transcoder TranscoderController
	Events     Broadcaster
	Log        *slog.Logger
}

// NewDispatcher wires a dispatcher around an already-constructed state and
// its collaborators.
func NewDispatcher(s *EngineState, rb *ring.Buffer, out OutputController, tc TranscoderController, events Broadcaster, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{State: s, Ring: rb, Output: out, Transcoder: tc, Events: events, Log: log}
}

func (d *Dispatcher) broadcastState() {
	if d.Events != nil {
		d.Events.Broadcast("playback_state", d.StateView())
	}
}

func (d *Dispatcher) broadcastBufferState() {
	if d.Events != nil {
		d.Events.Broadcast("buffer_state", d.BufferView())
	}
}

// Load implements load(path): stop any active transcoder, decode, optional
// resample, install buffer, reset ring, rebuild output, broadcast.
func (d *Dispatcher) Load(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	if d.Transcoder != nil {
		d.Transcoder.Stop()
	}

	result, err := decode.Decode(path)
	if err != nil {
		d.Log.Error("decode failed", "path", path, "error", err)
		return fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}

	d.State.Mu.Lock()
	samples := result.Samples
	workingRate := result.SampleRate
	if target := d.State.TargetSampleRate; target != nil && *target != result.SampleRate {
		workingRate = *target
	}
	mode := d.State.ResamplerMode
	quality := d.State.ResamplerQuality
	d.State.Mu.Unlock()

	if workingRate != result.SampleRate {
		resampled, err := resample.Resample(samples, result.Channels, result.SampleRate, workingRate, mode, quality)
		if err != nil {
			d.Log.Error("resample failed on load", "path", path, "error", err)
			return fmt.Errorf("%w: %v", ErrResampleFailure, err)
		}
		samples = resampled
	}

	d.State.Mu.Lock()
	d.State.Mode = ModeFile
	d.State.Source = SourceDescriptor{SampleRate: result.SampleRate, Channels: result.Channels, BitDepth: result.BitDepth}
	d.State.Working = WorkingDescriptor{SampleRate: workingRate, Channels: result.Channels}
	d.State.Data = samples
	d.State.Position = 0
	d.State.PlayedFrames = 0
	d.State.CurrentPath = path
	if result.Channels > 0 {
		d.State.DurationSeconds = float64(len(samples)/result.Channels) / float64(workingRate)
	}
	d.State.Mu.Unlock()

	if d.Ring != nil {
		d.Ring.Reset()
	}
	if d.Output != nil {
		if err := d.Output.Rebuild(d.State); err != nil {
			d.Log.Warn("output rebuild failed after load", "error", err)
		}
	}

	d.broadcastState()
	return nil
}

// Play sets is_playing and clears is_paused. In idle mode it changes
// nothing and returns ErrWrongMode (playing <-> paused only while
// mode != idle).
func (d *Dispatcher) Play() error {
	d.State.Mu.Lock()
	if d.State.Mode == ModeIdle {
		d.State.Mu.Unlock()
		return fmt.Errorf("%w: cannot play in idle mode", ErrWrongMode)
	}
	d.State.IsPlaying = true
	d.State.IsPaused = false
	d.State.Mu.Unlock()
	d.broadcastState()
	return nil
}

func (d *Dispatcher) Pause() error {
	d.State.Mu.Lock()
	if d.State.Mode != ModeIdle {
		d.State.IsPaused = true
	}
	d.State.Mu.Unlock()
	d.broadcastState()
	return nil
}

// Stop clears playing/paused, zeros position/played_frames, mode=idle,
// stops any transcoder.
func (d *Dispatcher) Stop() error {
	if d.Transcoder != nil {
		d.Transcoder.Stop()
	}

	d.State.Mu.Lock()
	d.State.IsPlaying = false
	d.State.IsPaused = false
	d.State.Position = 0
	d.State.PlayedFrames = 0
	d.State.Mode = ModeIdle
	d.State.StreamStatus = StreamIdle
	d.State.Mu.Unlock()

	d.broadcastState()
	d.broadcastBufferState()
	return nil
}

// Seek moves the file-mode position cursor, in seconds.
func (d *Dispatcher) Seek(seconds float64) error {
	d.State.Mu.Lock()
	defer d.State.Mu.Unlock()

	if d.State.Mode != ModeFile {
		return fmt.Errorf("%w: seek only valid in file mode", ErrSeekInWrongMode)
	}
	if seconds < 0 || seconds > d.State.DurationSeconds {
		return fmt.Errorf("%w: %.3fs outside [0,%.3f]", ErrSeekOutOfRange, seconds, d.State.DurationSeconds)
	}

	d.State.Position = int(seconds * float64(d.State.Working.SampleRate))
	return nil
}

// SetVolume clamps and stores volume.
func (d *Dispatcher) SetVolume(v float32) error {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	d.State.Mu.Lock()
	d.State.Volume = v
	d.State.Mu.Unlock()
	d.broadcastState()
	return nil
}

// ConfigureOutput updates device_id/exclusive, coercing exclusive via
// output-reported eligibility, then tears down and rebuilds the stream.
func (d *Dispatcher) ConfigureOutput(deviceID *int, exclusive *bool) error {
	d.State.Mu.Lock()
	if deviceID != nil {
		d.State.DeviceID = deviceID
	}
	if exclusive != nil {
		d.State.ExclusiveMode = *exclusive
	}
	d.State.Mu.Unlock()

	if d.Output != nil {
		d.Output.Teardown()
		if err := d.Output.Rebuild(d.State); err != nil {
			d.Log.Warn("output rebuild failed", "error", err)
			d.State.Mu.Lock()
			d.State.ExclusiveMode = false
			d.State.Mu.Unlock()
			return fmt.Errorf("%w: %v", ErrDeviceFailure, err)
		}
	}

	d.broadcastState()
	return nil
}

// ConfigureUpsampling updates the target sample-rate override; the effect
// is realized on the next rebuild or next load.
func (d *Dispatcher) ConfigureUpsampling(targetSampleRate *int) error {
	d.State.Mu.Lock()
	d.State.TargetSampleRate = targetSampleRate
	d.State.Mu.Unlock()
	d.broadcastState()
	return nil
}

// SetEQ stores bands/enabled. EQ is plumbed and exposed in the state view
// but never consumed by the render path.
func (d *Dispatcher) SetEQ(bands map[string]float64, enabled *bool) error {
	d.State.Mu.Lock()
	if bands != nil {
		d.State.EQBands = bands
	}
	if enabled != nil {
		d.State.EQEnabled = *enabled
	}
	d.State.Mu.Unlock()
	d.broadcastState()
	return nil
}

func (d *Dispatcher) SetEQType(eqType string) error {
	d.State.Mu.Lock()
	d.State.EQType = eqType
	d.State.Mu.Unlock()
	d.broadcastState()
	return nil
}

// OptimizationsConfig bundles /configure_optimizations's optional fields.
type OptimizationsConfig struct {
	DitherEnabled     *bool    `json:"dither_enabled"`
	DitherType        *string  `json:"dither_type"`
	DitherBits        *int     `json:"dither_bits"`
	ReplayGainEnabled *bool    `json:"replaygain_enabled"`
	ResamplerMode     *string  `json:"resampler_mode"`
	ResamplerQuality  *string  `json:"resampler_quality"`
	LimiterEnabled    *bool    `json:"limiter_enabled"`
	LimiterThreshold  *float32 `json:"limiter_threshold"`
}

func (d *Dispatcher) ConfigureOptimizations(c OptimizationsConfig) error {
	d.State.Mu.Lock()
	defer d.State.Mu.Unlock()

	if c.DitherEnabled != nil {
		d.State.DitherEnabled = *c.DitherEnabled
	}
	if c.DitherType != nil {
		d.State.DitherType = dither.Type(*c.DitherType)
	}
	if c.DitherBits != nil {
		d.State.DitherBits = *c.DitherBits
	}
	if c.ReplayGainEnabled != nil {
		d.State.ReplayGainEnabled = *c.ReplayGainEnabled
	}
	if c.ResamplerMode != nil {
		d.State.ResamplerMode = resample.Mode(*c.ResamplerMode)
	}
	if c.ResamplerQuality != nil {
		d.State.ResamplerQuality = resample.Quality(*c.ResamplerQuality)
	}
	if c.LimiterEnabled != nil {
		d.State.LimiterEnabled = *c.LimiterEnabled
	}
	if c.LimiterThreshold != nil {
		t := *c.LimiterThreshold
		if t < 0.7 {
			t = 0.7
		}
		if t > 1.0 {
			t = 1.0
		}
		d.State.LimiterThreshold = t
	}
	return nil
}

// LoadStream implements load_stream(url): stop any active transcoder, set
// mode+descriptor, reset ring, spawn transcoder, rebuild output, broadcast.
func (d *Dispatcher) LoadStream(url string) error {
	return d.startTransportSource(ModeStream, url, nil, nil)
}

// CaptureStart implements capture_start(device_id, samplerate, channels).
// deviceID is accepted but not used: the transcoder always captures from
// the platform's default capture source.
func (d *Dispatcher) CaptureStart(deviceID *int, sampleRate, channels int) error {
	return d.startTransportSource(ModeCapture, "", &sampleRate, &channels)
}

func (d *Dispatcher) startTransportSource(mode Mode, url string, sampleRate, channels *int) error {
	if d.Transcoder != nil {
		d.Transcoder.Stop()
	}

	d.State.Mu.Lock()
	d.State.Mode = mode
	d.State.StreamURL = url
	d.State.StreamStatus = StreamStarting
	d.State.StreamError = ""
	d.State.BufferedFrames = 0
	if sampleRate != nil {
		d.State.Working.SampleRate = *sampleRate
	}
	if channels != nil {
		d.State.Working.Channels = *channels
	}
	d.State.Mu.Unlock()

	if d.Ring != nil {
		d.Ring.Reset()
	}

	if d.Transcoder != nil {
		if err := d.Transcoder.Start(d.State); err != nil {
			d.State.Mu.Lock()
			d.State.StreamStatus = StreamError
			d.State.StreamError = err.Error()
			d.State.Mu.Unlock()
			d.broadcastState()
			return fmt.Errorf("%w: %v", ErrTranscoderSpawn, err)
		}
	}

	if d.Output != nil {
		if err := d.Output.Rebuild(d.State); err != nil {
			d.Log.Warn("output rebuild failed after stream start", "error", err)
		}
	}

	d.broadcastState()
	d.broadcastBufferState()
	return nil
}

func (d *Dispatcher) CaptureStop() error {
	return d.Stop()
}

// QueueAdd replaces or appends tracks, and sets queue_index to the
// position matching the currently loaded path (raw string comparison),
// else nil.
func (d *Dispatcher) QueueAdd(tracks []LibraryTrack, replace bool) error {
	d.State.Mu.Lock()
	defer d.State.Mu.Unlock()

	if replace {
		d.State.Queue = append([]LibraryTrack(nil), tracks...)
	} else {
		d.State.Queue = append(d.State.Queue, tracks...)
	}

	d.State.QueueIndex = nil
	for i, t := range d.State.Queue {
		if t.Path == d.State.CurrentPath {
			idx := i
			d.State.QueueIndex = &idx
			break
		}
	}
	return nil
}

// QueueNext advances queue_index, loads the next track, and plays it.
func (d *Dispatcher) QueueNext() error {
	d.State.Mu.Lock()
	if len(d.State.Queue) == 0 {
		d.State.Mu.Unlock()
		return ErrQueueEmpty
	}

	next := 0
	if d.State.QueueIndex != nil {
		next = *d.State.QueueIndex + 1
	}
	if next >= len(d.State.Queue) {
		d.State.Mu.Unlock()
		return ErrQueueEmpty
	}
	path := d.State.Queue[next].Path
	d.State.QueueIndex = &next
	d.State.Mu.Unlock()

	if err := d.Load(path); err != nil {
		return err
	}
	return d.Play()
}

// Command maps the /command free-text vocabulary (play, pause, stop, next,
// volume <n>, seek <n>) onto dispatcher operations, per original_source's
// command-text parser. A call with an empty text and a non-empty query
// succeeds without effect; no library search is performed.
func (d *Dispatcher) Command(text, query string) error {
	text = strings.TrimSpace(text)
	fields := strings.Fields(text)
	if len(fields) == 0 {
		if query != "" {
			return nil // query-only commands are accepted and ignored
		}
		return ErrUnknownCommand
	}

	switch strings.ToLower(fields[0]) {
	case "play":
		return d.Play()
	case "pause":
		return d.Pause()
	case "stop":
		return d.Stop()
	case "next":
		return d.QueueNext()
	case "volume":
		if len(fields) < 2 {
			return ErrUnknownCommand
		}
		var v float32
		if _, err := fmt.Sscanf(fields[1], "%f", &v); err != nil {
			return fmt.Errorf("%w: volume %q", ErrUnknownCommand, fields[1])
		}
		return d.SetVolume(v)
	case "seek":
		if len(fields) < 2 {
			return ErrUnknownCommand
		}
		var s float64
		if _, err := fmt.Sscanf(fields[1], "%f", &s); err != nil {
			return fmt.Errorf("%w: seek %q", ErrUnknownCommand, fields[1])
		}
		return d.Seek(s)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, fields[0])
	}
}
