package output

import (
	"encoding/binary"
	"math"

	"github.com/ntmusic/vmusic-engine/internal/dither"
)

// packInt writes dithered/quantized float32 samples into dst as
// little-endian signed PCM at bits-per-sample: dither/noise-shape runs
// first, then quantize to the device's integer grid, then cast. bits is
// one of 16, 24, 32; dst must be sized for len(samples)*bits/8 bytes.
func packInt(samples []float32, bits int, dst []byte) {
	scale := float64(int64(1) << uint(bits-1))
	bytesPerSample := bits / 8

	for i, v := range samples {
		q := dither.Quantize(v, bits)
		iv := int64(math.Round(float64(q) * scale))
		max := int64(1)<<uint(bits-1) - 1
		min := -int64(1) << uint(bits-1)
		if iv > max {
			iv = max
		}
		if iv < min {
			iv = min
		}

		off := i * bytesPerSample
		switch bits {
		case 16:
			binary.LittleEndian.PutUint16(dst[off:], uint16(int16(iv)))
		case 24:
			u := uint32(int32(iv))
			dst[off] = byte(u)
			dst[off+1] = byte(u >> 8)
			dst[off+2] = byte(u >> 16)
		case 32:
			binary.LittleEndian.PutUint32(dst[off:], uint32(int32(iv)))
		}
	}
}

// bytesPerFrame returns the byte stride of one interleaved frame at bits
// per sample and the given channel count.
func bytesPerFrame(bits, channels int) int {
	return (bits / 8) * channels
}
