package output

import "testing"

func TestPackInt16KnownValues(t *testing.T) {
	samples := []float32{0, 1.0, -1.0}
	dst := make([]byte, len(samples)*2)
	packInt(samples, 16, dst)

	if dst[0] != 0 || dst[1] != 0 {
		t.Errorf("0.0: got bytes %x %x, want 00 00", dst[0], dst[1])
	}
	if dst[2] != 0xFF || dst[3] != 0x7F {
		t.Errorf("1.0: got bytes %x %x, want FF 7F", dst[2], dst[3])
	}
	if dst[4] != 0x00 || dst[5] != 0x80 {
		t.Errorf("-1.0: got bytes %x %x, want 00 80", dst[4], dst[5])
	}
}

func TestPackInt24NegativeSignExtends(t *testing.T) {
	samples := []float32{-1.0}
	dst := make([]byte, 3)
	packInt(samples, 24, dst)
	if dst[0] != 0x00 || dst[1] != 0x00 || dst[2] != 0x80 {
		t.Errorf("-1.0 at 24 bit: got % x, want 00 00 80", dst)
	}
}

func TestBytesPerFrame(t *testing.T) {
	if got := bytesPerFrame(16, 2); got != 4 {
		t.Errorf("16-bit stereo: got %d, want 4", got)
	}
	if got := bytesPerFrame(24, 6); got != 18 {
		t.Errorf("24-bit 5.1: got %d, want 18", got)
	}
}
