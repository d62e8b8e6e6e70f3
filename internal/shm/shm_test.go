package shm

import (
	"path/filepath"
	"testing"
)

func TestSpectrumSeqlockRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spectrum.shm")
	w, err := NewSpectrumWriter(path, 4)
	if err != nil {
		t.Fatalf("NewSpectrumWriter: %v", err)
	}
	defer w.Close()

	w.Publish([]float32{1, 2, 3, 4})

	reader := NewSpectrumReader(w.data, 4)
	out := make([]float32, 4)
	if !reader.TryRead(out) {
		t.Fatal("TryRead failed on a quiescent region")
	}
	want := []float32{1, 2, 3, 4}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("bin %d: got %v, want %v", i, out[i], want[i])
		}
	}
}

func TestSpectrumPublishZeroPadsTrailingBins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spectrum2.shm")
	w, err := NewSpectrumWriter(path, 4)
	if err != nil {
		t.Fatalf("NewSpectrumWriter: %v", err)
	}
	defer w.Close()

	w.Publish([]float32{9})

	reader := NewSpectrumReader(w.data, 4)
	out := make([]float32, 4)
	reader.TryRead(out)
	if out[0] != 9 {
		t.Errorf("bin 0: got %v, want 9", out[0])
	}
	for i := 1; i < 4; i++ {
		if out[i] != 0 {
			t.Errorf("bin %d: got %v, want 0", i, out[i])
		}
	}
}

// An accepted seqlock snapshot can never mix two writes: the writer always
// publishes a uniform array, so any accepted read must be uniform too.
func TestSpectrumSeqlockNoTornReads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spectrum3.shm")
	const bins = 64
	w, err := NewSpectrumWriter(path, bins)
	if err != nil {
		t.Fatalf("NewSpectrumWriter: %v", err)
	}
	defer w.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		vals := make([]float32, bins)
		for v := 1; v <= 2000; v++ {
			for i := range vals {
				vals[i] = float32(v)
			}
			w.Publish(vals)
		}
	}()

	reader := NewSpectrumReader(w.data, bins)
	out := make([]float32, bins)
	accepted := 0
	for i := 0; i < 100000; i++ {
		if !reader.TryRead(out) {
			continue
		}
		accepted++
		for j := 1; j < bins; j++ {
			if out[j] != out[0] {
				t.Fatalf("torn snapshot accepted: bin 0 = %v, bin %d = %v", out[0], j, out[j])
			}
		}
	}
	<-done
	if accepted == 0 {
		t.Error("expected at least one accepted snapshot")
	}
}

func TestControlRingPushDrainOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "control.shm")
	c, err := NewControlRegion(path, 4)
	if err != nil {
		t.Fatalf("NewControlRegion: %v", err)
	}
	defer c.Close()

	if err := c.Push(CmdPlay, 0); err != nil {
		t.Fatalf("Push PLAY: %v", err)
	}
	if err := c.Push(CmdVolume, 0.3); err != nil {
		t.Fatalf("Push VOLUME: %v", err)
	}

	cmds := c.Drain(8)
	if len(cmds) != 2 {
		t.Fatalf("Drain: got %d commands, want 2", len(cmds))
	}
	if cmds[0].Tag != CmdPlay || cmds[1].Tag != CmdVolume {
		t.Errorf("Drain order wrong: %+v", cmds)
	}
	if cmds[1].Value != 0.3 {
		t.Errorf("VOLUME value: got %v, want 0.3", cmds[1].Value)
	}
}

func TestControlRingFullRejectsPush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "control2.shm")
	c, err := NewControlRegion(path, 2) // one usable slot: (write+1)%2==read condition
	if err != nil {
		t.Fatalf("NewControlRegion: %v", err)
	}
	defer c.Close()

	if err := c.Push(CmdPlay, 0); err != nil {
		t.Fatalf("first push should succeed: %v", err)
	}
	if err := c.Push(CmdStop, 0); err != ErrControlFull {
		t.Fatalf("second push: got %v, want ErrControlFull", err)
	}
}

func TestControlRingDrainCapsAtMaxCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "control3.shm")
	c, err := NewControlRegion(path, 8)
	if err != nil {
		t.Fatalf("NewControlRegion: %v", err)
	}
	defer c.Close()

	for i := 0; i < 5; i++ {
		if err := c.Push(CmdVolume, float32(i)); err != nil {
			t.Fatalf("Push %d: %v", i, err)
		}
	}

	cmds := c.Drain(3)
	if len(cmds) != 3 {
		t.Fatalf("Drain(3): got %d commands, want 3", len(cmds))
	}
}
