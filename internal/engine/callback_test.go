package engine

import (
	"path/filepath"
	"testing"

	"github.com/ntmusic/vmusic-engine/internal/dither"
	"github.com/ntmusic/vmusic-engine/internal/ring"
	"github.com/ntmusic/vmusic-engine/internal/shm"
)

func newFileState(frames, channels, rate int) *EngineState {
	s := NewEngineState(2000)
	s.Mode = ModeFile
	s.Working = WorkingDescriptor{SampleRate: rate, Channels: channels}
	s.Data = make([]float32, frames*channels)
	for i := range s.Data {
		s.Data[i] = 1.0
	}
	s.DurationSeconds = float64(frames) / float64(rate)
	s.IsPlaying = true
	return s
}

// S1 — Load, play, exhaust.
func TestRenderCallbackExhaustsFileBuffer(t *testing.T) {
	const rate, channels = 48000, 2
	s := newFileState(rate, channels, rate) // 1 second of audio
	s.Volume = 1.0

	frameCount := 512
	buf := make([]float32, frameCount*channels)

	for s.IsPlaying {
		RenderCallback(s, buf, frameCount, nil, nil, 0)
	}

	if s.IsPlaying {
		t.Fatal("expected is_playing to become false on exhaustion")
	}
	if s.Position != rate {
		t.Errorf("position: got %d, want %d", s.Position, rate)
	}
}

// S2 — Volume + limiter.
func TestRenderCallbackAppliesVolume(t *testing.T) {
	s := newFileState(1000, 1, 44100)
	s.Volume = 0.5
	s.LimiterEnabled = false

	buf := make([]float32, 256)
	RenderCallback(s, buf, 256, nil, nil, 0)

	for i, v := range buf {
		if v != 0.5 {
			t.Fatalf("sample %d: got %v, want 0.5", i, v)
		}
	}
}

func TestRenderCallbackAppliesLimiter(t *testing.T) {
	s := newFileState(1000, 1, 44100)
	for i := range s.Data {
		s.Data[i] = 0.95
	}
	s.Volume = 1.0
	s.LimiterEnabled = true
	s.LimiterThreshold = 0.9

	buf := make([]float32, 256)
	RenderCallback(s, buf, 256, nil, nil, 0)

	want := buf[0]
	if want <= 0.9 || want >= 1.0 {
		t.Fatalf("limited sample: got %v, want strictly in (0.9, 1.0)", want)
	}
	for i, v := range buf {
		if v != want {
			t.Fatalf("sample %d: got %v, want %v on every channel", i, v, want)
		}
	}
}

func TestRenderCallbackNotPlayingZeroFills(t *testing.T) {
	s := newFileState(1000, 1, 44100)
	s.IsPlaying = false

	buf := make([]float32, 128)
	for i := range buf {
		buf[i] = 5
	}
	RenderCallback(s, buf, 128, nil, nil, 0)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("sample %d: got %v, want 0", i, v)
		}
	}
}

// S6 — Control ring drive: PLAY, VOLUME(0.3), PAUSE, STOP applied in order.
func TestRenderCallbackControlRingDrive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "control.shm")
	control, err := shm.NewControlRegion(path, 8)
	if err != nil {
		t.Fatalf("NewControlRegion: %v", err)
	}
	defer control.Close()

	control.Push(shm.CmdPlay, 0)
	control.Push(shm.CmdVolume, 0.3)
	control.Push(shm.CmdPause, 0)
	control.Push(shm.CmdStop, 0)

	s := newFileState(1000, 2, 44100)
	s.IsPlaying = false

	buf := make([]float32, 256)
	RenderCallback(s, buf, 128, nil, control, 0)

	if s.IsPlaying {
		t.Error("expected is_playing false after STOP")
	}
	if s.IsPaused {
		t.Error("expected is_paused false after STOP")
	}
	if s.Position != 0 {
		t.Errorf("expected position 0 after STOP, got %d", s.Position)
	}
	if s.Volume != 0.3 {
		t.Errorf("expected volume 0.3, got %v", s.Volume)
	}
}

func TestRenderCallbackRingUnderrun(t *testing.T) {
	rb := ring.New(64)
	rb.Push([]float32{0.1, 0.2, 0.3, 0.4}) // 2 frames stereo

	s := NewEngineState(2000)
	s.Mode = ModeStream
	s.Working = WorkingDescriptor{SampleRate: 48000, Channels: 2}
	s.IsPlaying = true
	s.BufferedFrames = 2

	buf := make([]float32, 16) // 8 frames requested, only 2 available
	RenderCallback(s, buf, 8, rb, nil, 0)

	if s.Underruns == 0 {
		t.Error("expected underrun to be recorded")
	}
	if s.BufferedFrames != 0 {
		t.Errorf("expected buffered_frames drained to 0, got %d", s.BufferedFrames)
	}
}

// Dither only runs for an integer device format, after volume+limit, and
// leaves the spectrum mirror reflecting the pre-dither signal.
func TestRenderCallbackAppliesDitherForIntegerTarget(t *testing.T) {
	s := newFileState(1000, 2, 44100)
	s.Volume = 1.0
	s.DitherEnabled = true
	s.DitherType = dither.TPDF
	s.DitherBits = 16

	buf := make([]float32, 256)
	RenderCallback(s, buf, 128, nil, nil, 16)

	for i, v := range buf {
		if v < -1 || v > 1 {
			t.Fatalf("sample %d out of bound after dither: %v", i, v)
		}
	}
	// Constant 1.0 input dithered with TPDF noise should not remain
	// exactly 1.0 everywhere.
	allOne := true
	for _, v := range buf {
		if v != 1.0 {
			allOne = false
			break
		}
	}
	if allOne {
		t.Fatal("expected dither noise to perturb at least one sample")
	}
}

func TestRenderCallbackSkipsDitherForFloatTarget(t *testing.T) {
	s := newFileState(1000, 1, 44100)
	s.Volume = 1.0
	s.DitherEnabled = true
	s.DitherType = dither.TPDF
	s.DitherBits = 16

	buf := make([]float32, 128)
	RenderCallback(s, buf, 128, nil, nil, 0) // targetBits=0: non-integer device format

	for i, v := range buf {
		if v != 1.0 {
			t.Fatalf("sample %d: got %v, want exactly 1.0 (no dither for float target)", i, v)
		}
	}
}

func TestSpectrumMirrorMonoCopiesDirectly(t *testing.T) {
	s := newFileState(100, 1, 44100)
	s.Volume = 1.0
	buf := make([]float32, 64)
	RenderCallback(s, buf, 64, nil, nil, 0)
	for i := 0; i < 64; i++ {
		if s.SpectrumMirror[i] != 1.0 {
			t.Fatalf("mirror[%d]: got %v, want 1.0", i, s.SpectrumMirror[i])
		}
	}
	if s.SpectrumMirror[64] != 0 {
		t.Errorf("expected trailing mirror slots zeroed")
	}
}
