package decode

import (
	"fmt"

	"github.com/drgolem/go-mpg123/mpg123"
)

// mp3Backend adapts github.com/drgolem/go-mpg123's decoder handle.
type mp3Backend struct {
	decoder  *mpg123.Decoder
	rate     int
	channels int
	encoding int
}

func newMP3Backend() *mp3Backend { return &mp3Backend{} }

func (d *mp3Backend) Open(path string) error {
	decoder, err := mpg123.NewDecoder("")
	if err != nil {
		return fmt.Errorf("create mpg123 decoder: %w", err)
	}
	if err := decoder.Open(path); err != nil {
		decoder.Delete()
		return fmt.Errorf("open mp3 %s: %w", path, err)
	}

	rate, channels, encoding := decoder.GetFormat()
	d.decoder = decoder
	d.rate = rate
	d.channels = channels
	d.encoding = encoding
	return nil
}

func (d *mp3Backend) Close() error {
	if d.decoder != nil {
		d.decoder.Close()
		d.decoder.Delete()
		d.decoder = nil
	}
	return nil
}

// Format reports 16-bit output: mpg123's DecodeSamples hands back signed
// 16-bit PCM regardless of source encoding, so the façade always converts
// at 16 bits for this backend.
func (d *mp3Backend) Format() (rate, channels, bitsPerSample int) {
	return d.rate, d.channels, 16
}

func (d *mp3Backend) GaplessInfo() (delay, padding int) { return 0, 0 }

func (d *mp3Backend) DecodeChunk(frames int, audio []byte) (int, error) {
	if d.decoder == nil {
		return 0, fmt.Errorf("mp3 decoder not initialized")
	}
	return d.decoder.DecodeSamples(frames, audio)
}
