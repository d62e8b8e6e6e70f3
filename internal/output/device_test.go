package output

import (
	"runtime"
	"testing"
)

// S4 — an exclusive request against a non-eligible host API is downgraded.
func TestExclusiveEligibility(t *testing.T) {
	if !exclusiveEligible("ASIO") {
		t.Error("ASIO should always be exclusive-eligible")
	}
	for _, api := range []string{"ALSA", "Core Audio", "MME", ""} {
		if exclusiveEligible(api) {
			t.Errorf("host API %q should not be exclusive-eligible", api)
		}
	}

	wantWASAPI := runtime.GOOS == "windows"
	if got := exclusiveEligible("Windows WASAPI"); got != wantWASAPI {
		t.Errorf("WASAPI eligibility on %s: got %v, want %v", runtime.GOOS, got, wantWASAPI)
	}
}

func TestDefaultRateFor(t *testing.T) {
	devices := []DeviceInfo{
		{Ordinal: 0, DefaultSampleRate: 44100},
		{Ordinal: 3, DefaultSampleRate: 48000},
	}
	if got := defaultRateFor(devices, 3); got != 48000 {
		t.Errorf("defaultRateFor(3): got %d, want 48000", got)
	}
	if got := defaultRateFor(devices, 7); got != 0 {
		t.Errorf("defaultRateFor(7): got %d, want 0 for unknown ordinal", got)
	}
}
