// Package resample implements the two interchangeable sample-rate
// conversion backends described by the engine's resampler component: a
// pure-Go polyphase windowed-sinc converter, and an optional high-quality
// backend dynamically loaded via purego. Backend selection, pass-through,
// and auto-mode fallback all live here; per-backend mechanics live in
// sinc.go and hq_backend.go.
package resample

import (
	"fmt"
	"log/slog"
)

// Mode selects which backend a caller prefers.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeRubato Mode = "rubato"
	ModeSoxr   Mode = "soxr"
)

// Quality is a coarse speed/fidelity tradeoff knob shared by both backends.
type Quality string

const (
	QualityLow Quality = "low"
	QualityStd Quality = "std"
	QualityHQ  Quality = "hq"
	QualityUHQ Quality = "uhq"
)

// ShouldPreferSoxr implements the backend-selection contract: explicit mode
// wins; in auto mode, the HQ library is only preferred when available and
// quality is hq/uhq — low/std stays on the sinc backend even when the HQ
// library loaded successfully.
func ShouldPreferSoxr(mode Mode, quality Quality, hqAvailable bool) bool {
	switch mode {
	case ModeSoxr:
		return true
	case ModeRubato:
		return false
	default:
		return hqAvailable && (quality == QualityHQ || quality == QualityUHQ)
	}
}

// Resample converts interleaved PCM from fromRate to toRate, preserving
// channel count. It is a pass-through (an exact copy) when the rates match
// or the input is empty.
func Resample(samples []float32, channels, fromRate, toRate int, mode Mode, quality Quality) ([]float32, error) {
	if fromRate == toRate || len(samples) == 0 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out, nil
	}
	if channels <= 0 {
		return nil, fmt.Errorf("resample: channels must be positive, got %d", channels)
	}

	if ShouldPreferSoxr(mode, quality, HQAvailable()) {
		out, err := hqResample(samples, channels, fromRate, toRate)
		if err == nil {
			return out, nil
		}
		if mode == ModeSoxr {
			return nil, fmt.Errorf("hq resample: %w", err)
		}
		slog.Warn("hq resampler failed mid-conversion, falling back to polyphase sinc", "error", err, "quality", quality)
	}

	return sincResample(samples, channels, fromRate, toRate, quality)
}
