package decode

import "testing"

func TestApplyGaplessTrimIdentity(t *testing.T) {
	samples := []float32{1, 2, 3, 4, 5, 6}
	got := ApplyGaplessTrim(samples, 2, 0, 0)
	if len(got) != len(samples) {
		t.Fatalf("identity trim: got len %d, want %d", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("sample %d: got %v, want %v", i, got[i], samples[i])
		}
	}
}

func TestApplyGaplessTrimBounds(t *testing.T) {
	channels := 2
	frames := 10
	samples := make([]float32, frames*channels)
	for i := range samples {
		samples[i] = float32(i)
	}

	cases := []struct {
		delay, padding int
	}{
		{0, 0}, {1, 1}, {3, 2}, {10, 0}, {0, 10}, {6, 6},
	}
	for _, c := range cases {
		got := ApplyGaplessTrim(samples, channels, c.delay, c.padding)
		wantFrames := frames - c.delay - c.padding
		if wantFrames < 0 {
			wantFrames = 0
		}
		if len(got) != wantFrames*channels {
			t.Errorf("delay=%d padding=%d: got len %d, want %d", c.delay, c.padding, len(got), wantFrames*channels)
		}
	}
}

func TestBytesToFloat32_16bit(t *testing.T) {
	data := []byte{0x00, 0x00, 0xFF, 0x7F, 0x00, 0x80}
	out := bytesToFloat32(data, 16)
	want := []float32{0, 32767.0 / 32768, -1}
	for i := range want {
		if diff := out[i] - want[i]; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("sample %d: got %v, want %v", i, out[i], want[i])
		}
	}
}

func TestBytesToFloat32_8bit(t *testing.T) {
	data := []byte{0, 128, 255}
	out := bytesToFloat32(data, 8)
	want := []float32{-1, 0, 127.0 / 128}
	for i := range want {
		if diff := out[i] - want[i]; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("sample %d: got %v, want %v", i, out[i], want[i])
		}
	}
}

func TestBytesToFloat32_float32Marker(t *testing.T) {
	data := []byte{0, 0, 128, 63} // 1.0f little-endian
	out := bytesToFloat32(data, float32Bits)
	if len(out) != 1 || out[0] != 1.0 {
		t.Errorf("got %v, want [1.0]", out)
	}
}

func TestUnknownExtensionFails(t *testing.T) {
	_, err := Decode("song.xyz")
	if err == nil {
		t.Fatal("expected error for unrecognized extension")
	}
}
