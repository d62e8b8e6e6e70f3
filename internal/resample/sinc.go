package resample

import (
	"math"

	"gonum.org/v1/gonum/dsp/window"
)

type interpolation int

const (
	interpLinear interpolation = iota
	interpCubic
)

type windowKind int

const (
	windowHann windowKind = iota
	windowBlackman
	windowBlackmanHarris2
)

type sincParams struct {
	sincLen      int
	interp       interpolation
	win          windowKind
	oversampling int // equal to sincLen
}

func paramsForQuality(q Quality) sincParams {
	switch q {
	case QualityLow:
		return sincParams{sincLen: 16, interp: interpLinear, win: windowHann, oversampling: 16}
	case QualityHQ:
		return sincParams{sincLen: 128, interp: interpLinear, win: windowBlackman, oversampling: 128}
	case QualityUHQ:
		return sincParams{sincLen: 256, interp: interpCubic, win: windowBlackmanHarris2, oversampling: 256}
	default: // std
		return sincParams{sincLen: 32, interp: interpLinear, win: windowHann, oversampling: 32}
	}
}

// sincResample implements the polyphase windowed-sinc backend: deinterleave
// to per-channel float64 vectors, build a windowed-sinc kernel table at
// cutoff 0.90 (downsampling) or 0.95 (upsampling), process the whole input
// as one block, reinterleave.
func sincResample(samples []float32, channels, fromRate, toRate int, quality Quality) ([]float32, error) {
	p := paramsForQuality(quality)
	cutoff := 0.95
	if toRate < fromRate {
		cutoff = 0.90
	}

	kernel := buildKernel(p, cutoff)

	ratio := float64(toRate) / float64(fromRate)
	inFrames := len(samples) / channels
	outFrames := int(math.Ceil(float64(inFrames) * ratio))

	chans := deinterleave(samples, channels, inFrames)
	outChans := make([][]float64, channels)
	for c := 0; c < channels; c++ {
		outChans[c] = convolveChannel(chans[c], outFrames, ratio, kernel, p)
	}

	return reinterleave(outChans, outFrames), nil
}

// kernelTable is a windowed-sinc lookup table sampled at `oversampling`
// points per zero crossing, radius sincLen zero crossings each side.
type kernelTable struct {
	data         []float64
	radius       int // index of the center tap
	oversampling int
}

func buildKernel(p sincParams, cutoff float64) kernelTable {
	radius := p.sincLen * p.oversampling
	length := 2*radius + 1
	data := make([]float64, length)
	for i := range data {
		x := float64(i-radius) / float64(p.oversampling)
		data[i] = sinc(cutoff * x)
	}
	applyWindow(data, p.win)
	return kernelTable{data: data, radius: radius, oversampling: p.oversampling}
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

func applyWindow(data []float64, kind windowKind) {
	switch kind {
	case windowBlackman:
		window.Blackman(data)
	case windowBlackmanHarris2:
		window.BlackmanHarris(data)
	default:
		window.Hann(data)
	}
}

// sampleKernel interpolates the kernel table at a real-valued index using
// the configured interpolation order, returning 0 outside the table.
func sampleKernel(k kernelTable, idx float64, interp interpolation) float64 {
	if idx < 0 || idx > float64(len(k.data)-1) {
		return 0
	}
	i0 := int(math.Floor(idx))
	frac := idx - float64(i0)

	switch interp {
	case interpCubic:
		im1 := clampIdx(i0-1, len(k.data))
		i1 := clampIdx(i0, len(k.data))
		i2 := clampIdx(i0+1, len(k.data))
		i3 := clampIdx(i0+2, len(k.data))
		return cubicInterp(k.data[im1], k.data[i1], k.data[i2], k.data[i3], frac)
	default:
		i1 := clampIdx(i0, len(k.data))
		i2 := clampIdx(i0+1, len(k.data))
		return k.data[i1]*(1-frac) + k.data[i2]*frac
	}
}

func clampIdx(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// cubicInterp is a 4-point cubic that passes through y0 (t=0) and y1 (t=1);
// its tangents are y1-ym1 and y2-y0 (twice the Catmull-Rom tangents).
func cubicInterp(ym1, y0, y1, y2, t float64) float64 {
	a0 := y2 - y1 - ym1 + y0
	a1 := ym1 - y0 - a0
	a2 := y1 - ym1
	a3 := y0
	return a0*t*t*t + a1*t*t + a2*t + a3
}

func deinterleave(samples []float32, channels, frames int) [][]float64 {
	out := make([][]float64, channels)
	for c := 0; c < channels; c++ {
		out[c] = make([]float64, frames)
		for f := 0; f < frames; f++ {
			out[c][f] = float64(samples[f*channels+c])
		}
	}
	return out
}

func reinterleave(chans [][]float64, frames int) []float32 {
	channels := len(chans)
	out := make([]float32, frames*channels)
	for c := 0; c < channels; c++ {
		for f := 0; f < frames; f++ {
			out[f*channels+c] = float32(chans[c][f])
		}
	}
	return out
}

func convolveChannel(in []float64, outFrames int, ratio float64, k kernelTable, p sincParams) []float64 {
	out := make([]float64, outFrames)
	for n := 0; n < outFrames; n++ {
		srcPos := float64(n) / ratio
		srcIndex := int(math.Floor(srcPos))
		frac := srcPos - float64(srcIndex)

		var sum, weightSum float64
		for t := -p.sincLen; t <= p.sincLen; t++ {
			tapIndex := srcIndex + t
			if tapIndex < 0 || tapIndex >= len(in) {
				continue
			}
			tableIdx := float64(k.radius) + (frac-float64(t))*float64(k.oversampling)
			w := sampleKernel(k, tableIdx, p.interp)
			sum += in[tapIndex] * w
			weightSum += w
		}
		if weightSum != 0 {
			out[n] = sum / weightSum
		}
	}
	return out
}
