// Package ring implements the single-producer/single-consumer float queue
// that carries decoded PCM from the transcoder reader thread to the device
// callback: power-of-two capacity, masked atomic indices, no blocking and
// no allocation on the hot path.
package ring

import (
	"errors"
	"sync/atomic"
)

// ErrFull indicates the ring has no space for the requested push.
var ErrFull = errors.New("ring: insufficient space")

// Buffer is a lock-free SPSC float32 ring buffer sized in samples (not
// frames). Push must only be called by the producer (transcoder reader);
// Pop must only be called by the consumer (device callback).
type Buffer struct {
	data     []float32
	size     uint64 // power of 2
	mask     uint64
	writePos atomic.Uint64
	readPos  atomic.Uint64
}

// New creates a ring sized for at least capacitySamples samples, rounded up
// to the next power of 2.
func New(capacitySamples uint64) *Buffer {
	size := nextPowerOf2(capacitySamples)
	return &Buffer{
		data: make([]float32, size),
		size: size,
		mask: size - 1,
	}
}

// NewForMillis sizes the ring as buffer_max_ms * rate * channels / 1000.
func NewForMillis(bufferMaxMs, sampleRate, channels int) *Buffer {
	samples := uint64(bufferMaxMs) * uint64(sampleRate) * uint64(channels) / 1000
	if samples == 0 {
		samples = 1
	}
	return New(samples)
}

// Push writes samples into the ring. It never blocks: on a full (or
// partially full) ring it writes as many samples as fit and reports
// ErrFull, so the caller can observe back-pressure without allocating.
func (b *Buffer) Push(samples []float32) (written int, err error) {
	if len(samples) == 0 {
		return 0, nil
	}

	available := b.AvailableWrite()
	toWrite := uint64(len(samples))
	if toWrite > available {
		toWrite = available
		err = ErrFull
	}
	if toWrite == 0 {
		return 0, ErrFull
	}

	pos := b.writePos.Load()
	for i := uint64(0); i < toWrite; i++ {
		b.data[(pos+i)&b.mask] = samples[i]
	}
	b.writePos.Store(pos + toWrite)
	return int(toWrite), err
}

// Pop reads up to len(out) samples into out, zero-filling any unfilled
// tail. It returns the number of samples actually copied from the ring.
func (b *Buffer) Pop(out []float32) int {
	available := b.AvailableRead()
	toRead := uint64(len(out))
	if toRead > available {
		toRead = available
	}

	pos := b.readPos.Load()
	for i := uint64(0); i < toRead; i++ {
		out[i] = b.data[(pos+i)&b.mask]
	}
	for i := toRead; i < uint64(len(out)); i++ {
		out[i] = 0
	}
	b.readPos.Store(pos + toRead)
	return int(toRead)
}

// AvailableWrite returns the number of samples free for writing.
func (b *Buffer) AvailableWrite() uint64 {
	return b.size - (b.writePos.Load() - b.readPos.Load())
}

// AvailableRead returns the number of samples ready for reading.
func (b *Buffer) AvailableRead() uint64 {
	return b.writePos.Load() - b.readPos.Load()
}

// Size returns the ring's total capacity in samples.
func (b *Buffer) Size() uint64 {
	return b.size
}

// Reset clears the ring by resetting both indices. Safe only when neither
// producer nor consumer is concurrently active.
func (b *Buffer) Reset() {
	b.readPos.Store(0)
	b.writePos.Store(0)
}

func nextPowerOf2(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}
