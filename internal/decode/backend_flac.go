package decode

import (
	"fmt"

	goflac "github.com/drgolem/go-flac/flac"
)

// flacBackend adapts github.com/drgolem/go-flac, fixed to 16-bit output.
type flacBackend struct {
	decoder  *goflac.FlacDecoder
	rate     int
	channels int
	bps      int
}

func newFLACBackend() *flacBackend { return &flacBackend{} }

func (d *flacBackend) Open(path string) error {
	decoder, err := goflac.NewFlacFrameDecoder(16)
	if err != nil {
		return fmt.Errorf("create flac decoder: %w", err)
	}
	if err := decoder.Open(path); err != nil {
		decoder.Delete()
		return fmt.Errorf("open flac %s: %w", path, err)
	}

	rate, channels, bps := decoder.GetFormat()
	d.decoder = decoder
	d.rate = rate
	d.channels = channels
	d.bps = bps
	return nil
}

func (d *flacBackend) Close() error {
	if d.decoder != nil {
		d.decoder.Close()
		d.decoder.Delete()
		d.decoder = nil
	}
	return nil
}

func (d *flacBackend) Format() (rate, channels, bitsPerSample int) {
	return d.rate, d.channels, d.bps
}

func (d *flacBackend) GaplessInfo() (delay, padding int) { return 0, 0 }

func (d *flacBackend) DecodeChunk(frames int, audio []byte) (int, error) {
	if d.decoder == nil {
		return 0, fmt.Errorf("flac decoder not initialized")
	}
	return d.decoder.DecodeSamples(frames, audio)
}
