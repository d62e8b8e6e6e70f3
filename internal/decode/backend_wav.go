package decode

import (
	"fmt"
	"os"

	"github.com/youpy/go-wav"
)

// wavBackend adapts github.com/youpy/go-wav: read one multi-channel sample
// at a time and pack it into a byte buffer at the source bit depth.
type wavBackend struct {
	file     *os.File
	reader   *wav.Reader
	rate     int
	channels int
	bps      int
}

func newWAVBackend() *wavBackend { return &wavBackend{} }

func (d *wavBackend) Open(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open wav: %w", err)
	}

	reader := wav.NewReader(file)
	format, err := reader.Format()
	if err != nil {
		file.Close()
		return fmt.Errorf("read wav format: %w", err)
	}
	if format.AudioFormat != wav.AudioFormatPCM {
		file.Close()
		return fmt.Errorf("unsupported wav format %d: only PCM supported", format.AudioFormat)
	}

	d.file = file
	d.reader = reader
	d.rate = int(format.SampleRate)
	d.channels = int(format.NumChannels)
	d.bps = int(format.BitsPerSample)
	return nil
}

func (d *wavBackend) Close() error {
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}

func (d *wavBackend) Format() (rate, channels, bitsPerSample int) {
	return d.rate, d.channels, d.bps
}

func (d *wavBackend) GaplessInfo() (delay, padding int) { return 0, 0 }

func (d *wavBackend) DecodeChunk(frames int, audio []byte) (int, error) {
	if d.reader == nil {
		return 0, fmt.Errorf("wav decoder not initialized")
	}

	bytesPerSample := d.bps / 8
	decoded := 0
	for i := 0; i < frames; i++ {
		samplesData, err := d.reader.ReadSamples(1)
		if err != nil {
			return decoded, err
		}
		if len(samplesData) == 0 {
			return decoded, nil
		}

		for ch := 0; ch < d.channels; ch++ {
			if ch >= len(samplesData[0].Values) {
				break
			}
			value := samplesData[0].Values[ch]
			offset := (decoded*d.channels + ch) * bytesPerSample
			if offset+bytesPerSample > len(audio) {
				return decoded, nil
			}
			switch d.bps {
			case 8:
				audio[offset] = byte(value)
			case 16:
				audio[offset] = byte(value & 0xFF)
				audio[offset+1] = byte((value >> 8) & 0xFF)
			case 24:
				audio[offset] = byte(value & 0xFF)
				audio[offset+1] = byte((value >> 8) & 0xFF)
				audio[offset+2] = byte((value >> 16) & 0xFF)
			case 32:
				audio[offset] = byte(value & 0xFF)
				audio[offset+1] = byte((value >> 8) & 0xFF)
				audio[offset+2] = byte((value >> 16) & 0xFF)
				audio[offset+3] = byte((value >> 24) & 0xFF)
			default:
				return decoded, fmt.Errorf("unsupported bits per sample: %d", d.bps)
			}
		}
		decoded++
	}
	return decoded, nil
}
