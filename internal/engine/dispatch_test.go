package engine

import "testing"

func newTestDispatcher() *Dispatcher {
	s := NewEngineState(2000)
	return NewDispatcher(s, nil, nil, nil, nil, nil)
}

func TestSeekOutOfRangeRejected(t *testing.T) {
	d := newTestDispatcher()
	d.State.Mode = ModeFile
	d.State.Working.SampleRate = 44100
	d.State.DurationSeconds = 2.0

	if err := d.Seek(-1); err == nil {
		t.Error("expected error seeking to negative position")
	}
	if err := d.Seek(5); err == nil {
		t.Error("expected error seeking past duration")
	}
	if err := d.Seek(1.0); err != nil {
		t.Errorf("unexpected error seeking within range: %v", err)
	}
	if d.State.Position != 44100 {
		t.Errorf("position: got %d, want 44100", d.State.Position)
	}
}

func TestSeekWrongModeRejected(t *testing.T) {
	d := newTestDispatcher()
	d.State.Mode = ModeStream
	if err := d.Seek(1); err == nil {
		t.Error("expected error seeking in non-file mode")
	}
}

func TestSetVolumeClamps(t *testing.T) {
	d := newTestDispatcher()
	d.SetVolume(1.5)
	if d.State.Volume != 1.0 {
		t.Errorf("volume: got %v, want clamped 1.0", d.State.Volume)
	}
	d.SetVolume(-0.2)
	if d.State.Volume != 0.0 {
		t.Errorf("volume: got %v, want clamped 0.0", d.State.Volume)
	}
}

func TestQueueAddSetsIndexOnMatch(t *testing.T) {
	d := newTestDispatcher()
	d.State.CurrentPath = "b.flac"
	tracks := []LibraryTrack{{Path: "a.flac"}, {Path: "b.flac"}, {Path: "c.flac"}}

	if err := d.QueueAdd(tracks, true); err != nil {
		t.Fatalf("QueueAdd: %v", err)
	}
	if d.State.QueueIndex == nil || *d.State.QueueIndex != 1 {
		t.Fatalf("queue_index: got %v, want 1", d.State.QueueIndex)
	}
}

func TestQueueAddNoMatchClearsIndex(t *testing.T) {
	d := newTestDispatcher()
	d.State.CurrentPath = "nope.flac"
	tracks := []LibraryTrack{{Path: "a.flac"}, {Path: "b.flac"}}

	d.QueueAdd(tracks, true)
	if d.State.QueueIndex != nil {
		t.Fatalf("queue_index: got %v, want nil", d.State.QueueIndex)
	}
}

func TestQueueNextEmptyReturnsError(t *testing.T) {
	d := newTestDispatcher()
	if err := d.QueueNext(); err != ErrQueueEmpty {
		t.Errorf("got %v, want ErrQueueEmpty", err)
	}
}

func TestCommandVolumeParsing(t *testing.T) {
	d := newTestDispatcher()
	if err := d.Command("volume 0.42", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.State.Volume != float32(0.42) {
		t.Errorf("volume: got %v, want 0.42", d.State.Volume)
	}
}

func TestCommandUnknownRejected(t *testing.T) {
	d := newTestDispatcher()
	if err := d.Command("frobnicate", ""); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestCommandPlayRequiresNonIdleMode(t *testing.T) {
	d := newTestDispatcher()
	if err := d.Command("play", ""); err == nil {
		t.Error("expected error playing from idle mode")
	}
	d.State.Mode = ModeFile
	if err := d.Command("play", ""); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
