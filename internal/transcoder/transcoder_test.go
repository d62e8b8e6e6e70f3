package transcoder

import (
	"testing"

	"github.com/ntmusic/vmusic-engine/internal/engine"
	"github.com/ntmusic/vmusic-engine/internal/ring"
)

func TestBuildArgsUsesURLWhenPresent(t *testing.T) {
	args := buildArgs("http://example.com/stream", 48000, 2)
	found := false
	for i, a := range args {
		if a == "-i" && i+1 < len(args) && args[i+1] == "http://example.com/stream" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected -i http://example.com/stream in args: %v", args)
	}
}

func TestBuildArgsFallsBackToCaptureSource(t *testing.T) {
	args := buildArgs("", 48000, 2)
	want := captureSourceName()
	found := false
	for i, a := range args {
		if a == "-i" && i+1 < len(args) && args[i+1] == want {
			found = true
		}
	}
	if !found {
		t.Errorf("expected -i %s in args: %v", want, args)
	}
}

// S5 — spawn failure leaves status=error, stream_error set, mode untouched.
func TestStartWithMissingBinaryMarksError(t *testing.T) {
	rb := ring.New(1024)
	r := New("/nonexistent/path/to/transcoder-binary", rb, nil)

	s := engine.NewEngineState(2000)
	s.Mode = engine.ModeStream
	s.StreamURL = "not-a-url"
	s.Working.SampleRate = 48000
	s.Working.Channels = 2

	if err := r.Start(s); err == nil {
		t.Fatal("expected error starting with missing binary")
	}

	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.StreamStatus != engine.StreamError {
		t.Errorf("stream_status: got %v, want error", s.StreamStatus)
	}
	if s.StreamError == "" {
		t.Error("expected stream_error to be populated")
	}
	if s.Mode != engine.ModeStream {
		t.Errorf("mode: got %v, want unchanged stream", s.Mode)
	}
}
