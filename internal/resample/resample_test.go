package resample

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/dsp/fourier"
)

func TestShouldPreferSoxr(t *testing.T) {
	cases := []struct {
		mode       Mode
		quality    Quality
		hqAvail    bool
		wantPrefer bool
	}{
		{ModeSoxr, QualityLow, false, true},
		{ModeRubato, QualityUHQ, true, false},
		{ModeAuto, QualityLow, true, false},
		{ModeAuto, QualityStd, true, false},
		{ModeAuto, QualityHQ, true, true},
		{ModeAuto, QualityUHQ, true, true},
		{ModeAuto, QualityHQ, false, false},
	}
	for _, c := range cases {
		got := ShouldPreferSoxr(c.mode, c.quality, c.hqAvail)
		if got != c.wantPrefer {
			t.Errorf("ShouldPreferSoxr(%v,%v,%v) = %v, want %v", c.mode, c.quality, c.hqAvail, got, c.wantPrefer)
		}
	}
}

func TestResamplePassThroughSameRate(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3, 0.4}
	out, err := Resample(in, 2, 44100, 44100, ModeRubato, QualityStd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("got len %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d: got %v, want %v", i, out[i], in[i])
		}
	}
}

func TestResamplePassThroughEmpty(t *testing.T) {
	out, err := Resample(nil, 2, 44100, 48000, ModeRubato, QualityStd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("got len %d, want 0", len(out))
	}
}

func TestResampleLengthBound(t *testing.T) {
	const fromRate, toRate = 44100, 48000
	frames := 4410 // 0.1s
	in := make([]float32, frames)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * 1000 * float64(i) / fromRate))
	}

	out, err := Resample(in, 1, fromRate, toRate, ModeRubato, QualityStd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := int(math.Ceil(float64(frames) * float64(toRate) / float64(fromRate)))
	if diff := len(out) - want; diff > 64 || diff < -64 {
		t.Errorf("output length %d not within +-64 of expected %d", len(out), want)
	}
}

// S3 — a 1kHz sine at 44100Hz resampled to 48000Hz keeps its dominant
// spectral component within one bin of 1kHz in a 48000-point FFT.
func TestResampleRoundTripKeepsTone(t *testing.T) {
	const fromRate, toRate = 44100, 48000
	in := make([]float32, fromRate) // 1s mono
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * 1000 * float64(i) / fromRate))
	}

	out, err := Resample(in, 1, fromRate, toRate, ModeAuto, QualityStd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) < 47900 || len(out) > 48100 {
		t.Fatalf("output length %d outside [47900, 48100]", len(out))
	}

	padded := make([]float64, toRate)
	for i := 0; i < len(out) && i < toRate; i++ {
		padded[i] = float64(out[i])
	}
	coeffs := fourier.NewFFT(toRate).Coefficients(nil, padded)

	peakBin, peakMag := 0, 0.0
	for k := 1; k < len(coeffs); k++ {
		mag := math.Hypot(real(coeffs[k]), imag(coeffs[k]))
		if mag > peakMag {
			peakMag = mag
			peakBin = k
		}
	}
	if peakBin < 999 || peakBin > 1001 {
		t.Errorf("dominant bin %d, want within 1 of 1000", peakBin)
	}
}

func TestSincResampleDownsampleDoesNotExplode(t *testing.T) {
	in := make([]float32, 2000)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 48000))
	}
	out, err := sincResample(in, 1, 48000, 44100, QualityStd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, s := range out {
		if s > 2 || s < -2 {
			t.Fatalf("sample %d out of sane bound: %v", i, s)
		}
	}
}
