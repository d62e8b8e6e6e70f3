package decode

import "math"

// float32Bits marks a backend that already produces IEEE-754 float32
// samples (oggvorbis) rather than integer PCM, so bytesToFloat32 can
// reinterpret rather than normalize.
const float32Bits = 33

// bytesToFloat32 converts interleaved little-endian PCM bytes at the given
// bit depth into normalized float32 samples in [-1, 1]. 8-bit samples are
// unsigned (the standard WAV convention); 16/24/32 are signed.
func bytesToFloat32(data []byte, bits int) []float32 {
	switch bits {
	case 8:
		out := make([]float32, len(data))
		for i, b := range data {
			out[i] = (float32(b) - 128) / 128
		}
		return out
	case 16:
		n := len(data) / 2
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			v := int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
			out[i] = float32(v) / 32768
		}
		return out
	case 24:
		n := len(data) / 3
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			raw := uint32(data[3*i]) | uint32(data[3*i+1])<<8 | uint32(data[3*i+2])<<16
			if raw&0x800000 != 0 {
				raw |= 0xFF000000
			}
			out[i] = float32(int32(raw)) / 8388608
		}
		return out
	case 32:
		n := len(data) / 4
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			v := int32(uint32(data[4*i]) | uint32(data[4*i+1])<<8 | uint32(data[4*i+2])<<16 | uint32(data[4*i+3])<<24)
			out[i] = float32(v) / 2147483648
		}
		return out
	case float32Bits:
		n := len(data) / 4
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			bits := uint32(data[4*i]) | uint32(data[4*i+1])<<8 | uint32(data[4*i+2])<<16 | uint32(data[4*i+3])<<24
			out[i] = math.Float32frombits(bits)
		}
		return out
	default:
		return nil
	}
}
