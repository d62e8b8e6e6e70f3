package engine

import (
	"math"
	"testing"

	"github.com/ntmusic/vmusic-engine/internal/resample"
)

func TestResampleForOutputScalesCursorAndDuration(t *testing.T) {
	const fromRate, toRate = 44100, 48000

	s := NewEngineState(2000)
	s.Mode = ModeFile
	s.ResamplerMode = resample.ModeRubato
	s.Working = WorkingDescriptor{SampleRate: fromRate, Channels: 1}
	s.Data = make([]float32, fromRate) // 1 second mono
	for i := range s.Data {
		s.Data[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / fromRate))
	}
	s.Position = fromRate / 2
	s.DurationSeconds = 1.0

	if err := s.ResampleForOutput(toRate); err != nil {
		t.Fatalf("ResampleForOutput: %v", err)
	}

	if s.Working.SampleRate != toRate {
		t.Errorf("working rate: got %d, want %d", s.Working.SampleRate, toRate)
	}
	if diff := s.Frames() - toRate; diff > 64 || diff < -64 {
		t.Errorf("frames: got %d, want within +-64 of %d", s.Frames(), toRate)
	}
	wantPos := toRate / 2
	if diff := s.Position - wantPos; diff > 64 || diff < -64 {
		t.Errorf("position: got %d, want about %d", s.Position, wantPos)
	}
	if s.DurationSeconds < 0.99 || s.DurationSeconds > 1.01 {
		t.Errorf("duration: got %v, want about 1.0", s.DurationSeconds)
	}
}

func TestResampleForOutputSameRateIsNoOp(t *testing.T) {
	s := NewEngineState(2000)
	s.Mode = ModeFile
	s.Working = WorkingDescriptor{SampleRate: 48000, Channels: 2}
	s.Data = make([]float32, 96000)
	s.Position = 100

	if err := s.ResampleForOutput(48000); err != nil {
		t.Fatalf("ResampleForOutput: %v", err)
	}
	if s.Position != 100 || len(s.Data) != 96000 {
		t.Error("expected same-rate call to leave the buffer untouched")
	}
}
