package resample

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// The HQ backend treats its shared library as a generic C-ABI capability
// interface per the design notes: create(in_rate, out_rate, channels) ->
// handle, process(handle, in, in_frames, &consumed, out, out_capacity,
// &produced) -> status, delete(handle). A real libsoxr build exposing these
// three entry points under a thin wrapper satisfies the contract; the exact
// struct-heavy native soxr_create/soxr_process ABI is not bound directly,
// since that shape cannot be verified without the header in hand.
var (
	hqOnce    sync.Once
	hqErr     error
	hqCreate  func(inRate, outRate, channels int32) uintptr
	hqProcess func(handle uintptr, in unsafe.Pointer, inFrames int32, consumed unsafe.Pointer, out unsafe.Pointer, outCap int32, produced unsafe.Pointer) int32
	hqDelete  func(handle uintptr)
)

// HQAvailable reports whether the dynamically-loaded HQ resampler library
// resolved successfully. Loading is attempted exactly once per process,
// lazily, on first use; a failure is cached and never retried.
func HQAvailable() bool {
	hqOnce.Do(func() { hqErr = loadHQLibrary() })
	return hqErr == nil
}

func loadHQLibrary() error {
	libName := soxrLibraryName()

	var candidates []string
	if d := os.Getenv("VMUSIC_ASSET_DIR"); d != "" {
		candidates = append(candidates, filepath.Join(d, libName))
	}
	if d := os.Getenv("VMUSIC_SOXR_DIR"); d != "" {
		candidates = append(candidates, filepath.Join(d, libName))
	}
	candidates = append(candidates, libName) // platform default search path

	var handle uintptr
	var err error
	for _, c := range candidates {
		handle, err = purego.Dlopen(c, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("resample: could not load HQ backend from any of %v: %w", candidates, err)
	}

	// Verify all three entry points before registering: RegisterLibFunc
	// panics on a missing symbol, and a stock libsoxr without the wrapper
	// exports must degrade to "unavailable", not crash the process.
	for _, sym := range []string{"vmusic_resampler_create", "vmusic_resampler_process", "vmusic_resampler_delete"} {
		if _, err := purego.Dlsym(handle, sym); err != nil {
			return fmt.Errorf("resample: HQ library missing entry point %s: %w", sym, err)
		}
	}

	purego.RegisterLibFunc(&hqCreate, handle, "vmusic_resampler_create")
	purego.RegisterLibFunc(&hqProcess, handle, "vmusic_resampler_process")
	purego.RegisterLibFunc(&hqDelete, handle, "vmusic_resampler_delete")
	return nil
}

func soxrLibraryName() string {
	switch runtime.GOOS {
	case "windows":
		return "soxr.dll"
	case "darwin":
		return "libsoxr.dylib"
	default:
		return "libsoxr.so.0"
	}
}

const hqChunkFrames = 8192

// hqResample drives the dynamically-loaded backend in 8192-frame chunks,
// then flushes with a null-input loop until it reports zero output. It
// fails fast if a chunk consumed fewer input frames than it was offered.
func hqResample(samples []float32, channels, fromRate, toRate int) ([]float32, error) {
	if !HQAvailable() {
		return nil, fmt.Errorf("resample: HQ backend unavailable: %w", hqErr)
	}

	handle := hqCreate(int32(fromRate), int32(toRate), int32(channels))
	if handle == 0 {
		return nil, fmt.Errorf("resample: HQ backend create failed")
	}
	defer hqDelete(handle)

	inFrames := len(samples) / channels
	outCap := 4096
	out := make([]float32, 0, inFrames*toRate/maxInt(1, fromRate)+outCap)

	var consumed, produced int32
	outBuf := make([]float32, outCap*channels)

	for offset := 0; offset < inFrames; {
		chunk := hqChunkFrames
		if offset+chunk > inFrames {
			chunk = inFrames - offset
		}
		inSlice := samples[offset*channels : (offset+chunk)*channels]

		status := hqProcess(
			handle,
			unsafe.Pointer(&inSlice[0]),
			int32(chunk),
			unsafe.Pointer(&consumed),
			unsafe.Pointer(&outBuf[0]),
			int32(outCap),
			unsafe.Pointer(&produced),
		)
		if status != 0 {
			return nil, fmt.Errorf("resample: HQ backend process error (status %d)", status)
		}
		if int(consumed) < chunk {
			return nil, fmt.Errorf("resample: HQ backend consumed %d of %d offered input frames", consumed, chunk)
		}
		out = append(out, outBuf[:int(produced)*channels]...)
		offset += chunk
	}

	// Flush: keep calling with zero input frames until no more output.
	for {
		status := hqProcess(
			handle,
			nil,
			0,
			unsafe.Pointer(&consumed),
			unsafe.Pointer(&outBuf[0]),
			int32(outCap),
			unsafe.Pointer(&produced),
		)
		if status != 0 {
			return nil, fmt.Errorf("resample: HQ backend flush error (status %d)", status)
		}
		if produced == 0 {
			break
		}
		out = append(out, outBuf[:int(produced)*channels]...)
	}

	return out, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
