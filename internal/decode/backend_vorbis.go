package decode

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/jfreymuth/oggvorbis"
)

// vorbisBackend wires github.com/jfreymuth/oggvorbis. oggvorbis.Reader
// already hands back normalized float32 samples, so DecodeChunk
// reinterprets them as float32Bits-marked bytes rather than normalizing
// integer PCM.
type vorbisBackend struct {
	file     *os.File
	reader   *oggvorbis.Reader
	rate     int
	channels int
}

func newVorbisBackend() *vorbisBackend { return &vorbisBackend{} }

func (d *vorbisBackend) Open(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open ogg: %w", err)
	}

	reader, err := oggvorbis.NewReader(file)
	if err != nil {
		file.Close()
		return fmt.Errorf("read ogg vorbis stream: %w", err)
	}

	d.file = file
	d.reader = reader
	d.rate = reader.SampleRate()
	d.channels = reader.Channels()
	return nil
}

func (d *vorbisBackend) Close() error {
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}

func (d *vorbisBackend) Format() (rate, channels, bitsPerSample int) {
	return d.rate, d.channels, float32Bits
}

func (d *vorbisBackend) GaplessInfo() (delay, padding int) { return 0, 0 }

func (d *vorbisBackend) DecodeChunk(frames int, audio []byte) (int, error) {
	if d.reader == nil {
		return 0, fmt.Errorf("vorbis decoder not initialized")
	}

	buf := make([]float32, frames*d.channels)
	n, err := d.reader.Read(buf)
	samples := n
	frameCount := samples / d.channels

	for i := 0; i < frameCount*d.channels; i++ {
		bits := math.Float32bits(buf[i])
		binary.LittleEndian.PutUint32(audio[i*4:], bits)
	}

	if err != nil {
		return frameCount, err
	}
	return frameCount, nil
}
