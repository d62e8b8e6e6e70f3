package ring

import "testing"

func TestNextPowerOf2(t *testing.T) {
	cases := map[uint64]uint64{
		0:    1,
		1:    1,
		2:    2,
		3:    4,
		5:    8,
		1024: 1024,
		1025: 2048,
	}
	for in, want := range cases {
		if got := nextPowerOf2(in); got != want {
			t.Errorf("nextPowerOf2(%d): got %d, want %d", in, got, want)
		}
	}
}

func TestPushPopRoundTrip(t *testing.T) {
	b := New(8)
	in := []float32{1, 2, 3, 4}
	n, err := b.Push(in)
	if err != nil {
		t.Fatalf("Push: unexpected error %v", err)
	}
	if n != len(in) {
		t.Fatalf("Push: wrote %d, want %d", n, len(in))
	}

	out := make([]float32, 4)
	got := b.Pop(out)
	if got != 4 {
		t.Fatalf("Pop: read %d, want 4", got)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d: got %v, want %v", i, out[i], in[i])
		}
	}
}

func TestPushFullReturnsErrFull(t *testing.T) {
	b := New(4)
	full := []float32{1, 2, 3, 4, 5, 6}
	n, err := b.Push(full)
	if err != ErrFull {
		t.Fatalf("Push: got err %v, want ErrFull", err)
	}
	if n != 4 {
		t.Fatalf("Push: wrote %d, want 4 (ring capacity)", n)
	}
}

func TestPopZeroFillsUnderrun(t *testing.T) {
	b := New(8)
	b.Push([]float32{1, 2})

	out := make([]float32, 4)
	got := b.Pop(out)
	if got != 2 {
		t.Fatalf("Pop: read %d, want 2", got)
	}
	if out[2] != 0 || out[3] != 0 {
		t.Errorf("Pop: underrun tail not zero-filled: %v", out)
	}
}

func TestWrapAround(t *testing.T) {
	b := New(4)
	b.Push([]float32{1, 2, 3})
	out := make([]float32, 2)
	b.Pop(out)

	b.Push([]float32{4, 5})
	out = make([]float32, 3)
	got := b.Pop(out)
	if got != 3 {
		t.Fatalf("Pop after wrap: read %d, want 3", got)
	}
	want := []float32{3, 4, 5}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("sample %d after wrap: got %v, want %v", i, out[i], want[i])
		}
	}
}

// Concurrent push/pop over 2^20 values preserves FIFO order under the
// SPSC discipline: one producer goroutine, the test goroutine consuming.
func TestConcurrentSPSCPreservesFIFO(t *testing.T) {
	const total = 1 << 20
	b := New(1024)

	done := make(chan struct{})
	go func() {
		defer close(done)
		one := make([]float32, 1)
		for i := 0; i < total; {
			one[0] = float32(i)
			if n, _ := b.Push(one); n == 1 {
				i++
			}
		}
	}()

	out := make([]float32, 256)
	next := 0
	for next < total {
		got := b.Pop(out)
		for i := 0; i < got; i++ {
			if out[i] != float32(next) {
				t.Fatalf("FIFO order broken at %d: got %v", next, out[i])
			}
			next++
		}
	}
	<-done
}

func TestNewForMillis(t *testing.T) {
	b := NewForMillis(500, 48000, 2)
	// 500ms * 48000 * 2 / 1000 = 48000 samples, rounded to next pow2 = 65536
	if b.Size() != 65536 {
		t.Errorf("NewForMillis size: got %d, want 65536", b.Size())
	}
}
