package output

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/drgolem/go-portaudio/portaudio"

	"github.com/ntmusic/vmusic-engine/internal/engine"
	"github.com/ntmusic/vmusic-engine/internal/ring"
	"github.com/ntmusic/vmusic-engine/internal/shm"
)

const defaultFramesPerBuffer = 1024

// sharedRenderer drives PortAudio in shared mode. go-portaudio's binding is
// blocking (stream.Write), not a registered OS callback, so the pull model
// is emulated with a dedicated goroutine: each iteration calls
// engine.RenderCallback to fill one buffer, then blocking-writes it.
type sharedRenderer struct {
	mu     sync.Mutex
	stream *portaudio.PaStream
	stop   chan struct{}
	wg     sync.WaitGroup
	log    *slog.Logger
}

func newSharedRenderer(log *slog.Logger) *sharedRenderer {
	if log == nil {
		log = slog.Default()
	}
	return &sharedRenderer{log: log}
}

func (r *sharedRenderer) start(s *engine.EngineState, rb *ring.Buffer, control *shm.ControlRegion, deviceIdx, channels, bitsPerSample int, sampleRate float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teardownLocked()

	var sampleFormat portaudio.PaSampleFormat
	switch bitsPerSample {
	case 16:
		sampleFormat = portaudio.SampleFmtInt16
	case 24:
		sampleFormat = portaudio.SampleFmtInt24
	case 32:
		sampleFormat = portaudio.SampleFmtInt32
	default:
		return fmt.Errorf("output: unsupported bit depth %d", bitsPerSample)
	}

	params := portaudio.PaStreamParameters{
		DeviceIndex:  deviceIdx,
		ChannelCount: channels,
		SampleFormat: sampleFormat,
	}

	stream, err := portaudio.NewStream(params, sampleRate)
	if err != nil {
		return fmt.Errorf("%w: %v", engine.ErrDeviceFailure, err)
	}
	if err := stream.Open(defaultFramesPerBuffer); err != nil {
		return fmt.Errorf("%w: %v", engine.ErrDeviceFailure, err)
	}
	if err := stream.StartStream(); err != nil {
		stream.Close()
		return fmt.Errorf("%w: %v", engine.ErrDeviceFailure, err)
	}

	r.stream = stream
	r.stop = make(chan struct{})
	r.wg.Add(1)
	go r.loop(stream, r.stop, s, rb, control, channels, bitsPerSample)
	return nil
}

func (r *sharedRenderer) loop(stream *portaudio.PaStream, stop chan struct{}, s *engine.EngineState, rb *ring.Buffer, control *shm.ControlRegion, channels, bitsPerSample int) {
	defer r.wg.Done()

	floatBuf := make([]float32, defaultFramesPerBuffer*channels)
	pcm := make([]byte, defaultFramesPerBuffer*bytesPerFrame(bitsPerSample, channels))

	for {
		select {
		case <-stop:
			return
		default:
		}

		engine.RenderCallback(s, floatBuf, defaultFramesPerBuffer, rb, control, bitsPerSample)
		packInt(floatBuf, bitsPerSample, pcm)

		if err := stream.Write(defaultFramesPerBuffer, pcm); err != nil {
			r.log.Warn("output: stream write failed", "error", err)
			return
		}
	}
}

// teardown stops the render goroutine and closes the stream. It must not be
// called while holding r.mu, since it waits for the goroutine to exit.
func (r *sharedRenderer) teardown() {
	r.mu.Lock()
	stop := r.stop
	stream := r.stream
	r.stop = nil
	r.stream = nil
	r.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	r.wg.Wait()
	if stream != nil {
		stream.StopStream()
		stream.Close()
	}
}

// teardownLocked is used from start(), which already holds r.mu and has not
// yet spawned a goroutine to race with — so there's nothing to wait for.
func (r *sharedRenderer) teardownLocked() {
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
	if r.stream != nil {
		r.stream.StopStream()
		r.stream.Close()
		r.stream = nil
	}
	r.wg.Wait()
}
