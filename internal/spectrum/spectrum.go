// Package spectrum implements the windowed-FFT analyzer that feeds the
// spectrum shared-memory region: a fixed 2048-point Hann-windowed FFT,
// mapped logarithmically into a configurable bin count and normalized to
// dB.
package spectrum

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

const fftSize = 2048

// Analyzer holds the FFT input, output and magnitude buffers reused across
// 50ms ticks; the log-spaced bin edges are recomputed (and allocated) on
// every Analyze call.
type Analyzer struct {
	bins       int
	fft        *fourier.FFT
	scratch    []float64
	spectrum   []complex128
	magnitudes []float64
}

// New creates an analyzer producing `bins` logarithmic magnitude bins.
func New(bins int) *Analyzer {
	return &Analyzer{
		bins:       bins,
		fft:        fourier.NewFFT(fftSize),
		scratch:    make([]float64, fftSize),
		magnitudes: make([]float64, bins),
	}
}

// Analyze copies mirror (the engine's last rendered, downmixed chunk) into
// the scratch buffer, zero-padding if shorter, applies a Hann window, runs
// a forward FFT, and maps the magnitudes into out (len(out) == bins),
// normalized to [0,1]. If sampleRate is zero or Nyquist <= 20Hz, out is
// zeroed.
func (a *Analyzer) Analyze(mirror []float32, sampleRate int, out []float32) {
	for i := range out {
		out[i] = 0
	}

	nyquist := float64(sampleRate) / 2
	if sampleRate == 0 || nyquist <= 20 {
		return
	}

	n := len(mirror)
	if n > fftSize {
		n = fftSize
	}
	for i := 0; i < n; i++ {
		a.scratch[i] = float64(mirror[i])
	}
	for i := n; i < fftSize; i++ {
		a.scratch[i] = 0
	}
	window.Hann(a.scratch)

	a.spectrum = a.fft.Coefficients(a.spectrum, a.scratch)

	binEdges := logBinEdges(a.bins, 20, nyquist)
	freqPerBin := float64(sampleRate) / fftSize

	magnitudes := a.magnitudes
	for i := range magnitudes {
		magnitudes[i] = 0
	}

	for k := 1; k < len(a.spectrum); k++ {
		freq := float64(k) * freqPerBin
		if freq < 20 || freq > nyquist {
			continue
		}
		mag := cmplxAbs(a.spectrum[k])
		bin := binForFreq(freq, binEdges)
		if bin < 0 || bin >= a.bins {
			continue
		}
		if mag > magnitudes[bin] {
			magnitudes[bin] = mag
		}
	}

	for i, m := range magnitudes {
		db := 20 * math.Log10(m+1e-9)
		norm := (db + 90) / 90
		if norm < 0 {
			norm = 0
		}
		if norm > 1 {
			norm = 1
		}
		if i < len(out) {
			out[i] = float32(norm)
		}
	}
}

// logBinEdges returns bins+1 frequency edges spaced logarithmically from lo
// to hi.
func logBinEdges(bins int, lo, hi float64) []float64 {
	edges := make([]float64, bins+1)
	logLo := math.Log10(lo)
	logHi := math.Log10(hi)
	for i := 0; i <= bins; i++ {
		frac := float64(i) / float64(bins)
		edges[i] = math.Pow(10, logLo+frac*(logHi-logLo))
	}
	return edges
}

func binForFreq(freq float64, edges []float64) int {
	for i := 0; i < len(edges)-1; i++ {
		if freq >= edges[i] && freq < edges[i+1] {
			return i
		}
	}
	if freq >= edges[len(edges)-1] {
		return len(edges) - 2
	}
	return -1
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
