package engine

import (
	"github.com/ntmusic/vmusic-engine/internal/dither"
	"github.com/ntmusic/vmusic-engine/internal/ring"
	"github.com/ntmusic/vmusic-engine/internal/shm"
)

// ApplyControlCommand mutates state per one drained control-ring command.
// This is the low-latency transport control path (PLAY/PAUSE/STOP/
// SEEK/VOLUME); it is intentionally narrower than the dispatcher's
// corresponding HTTP operations (e.g. control-ring STOP resets transport
// and position but does not tear down a transcoder — that is the
// dispatcher's job).
func ApplyControlCommand(s *EngineState, cmd shm.Command) {
	switch cmd.Tag {
	case shm.CmdPlay:
		s.IsPlaying = true
		s.IsPaused = false
	case shm.CmdPause:
		s.IsPaused = true
	case shm.CmdStop:
		s.IsPlaying = false
		s.IsPaused = false
		s.Position = 0
		s.PlayedFrames = 0
	case shm.CmdSeek:
		if s.Mode == ModeFile && s.Working.SampleRate > 0 {
			pos := int(cmd.Value * float32(s.Working.SampleRate))
			if pos < 0 {
				pos = 0
			}
			if frames := s.Frames(); pos > frames {
				pos = frames
			}
			s.Position = pos
		}
	case shm.CmdVolume:
		v := cmd.Value
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		s.Volume = v
	}
}

// RenderCallback implements the device callback body in seven steps: drain
// the control ring, dispatch by mode, apply gain/limiter, update the
// spectrum mirror, then dither for integer device formats. buf is the
// device's float32 scratch, sized frameCount*channels.
// targetBits is the device's integer PCM width (16, 24, or 0 for a
// non-integer/float device format); when it is 16 or 24 and dither is
// enabled, the dither/noise-shaping stage described as the callback's
// "second stage" runs in place on buf after the spectrum mirror has
// captured the pre-dither signal. The caller (internal/output) still
// performs the final quantize-then-sample-cast into device PCM bytes.
func RenderCallback(s *EngineState, buf []float32, frameCount int, rb *ring.Buffer, control *shm.ControlRegion, targetBits int) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.CallbackInvocations.Add(1)

	// 1. Drain control-ring commands.
	if control != nil {
		for _, cmd := range control.Drain(int(control.Capacity())) {
			ApplyControlCommand(s, cmd)
		}
	}

	channels := s.Working.Channels
	if channels == 0 {
		channels = 1
	}

	// 2. Not playing or paused: zero-fill and return.
	if !s.IsPlaying || s.IsPaused {
		zero(buf)
		s.updateSpectrumMirror(buf, frameCount, channels)
		return
	}

	switch s.Mode {
	case ModeFile:
		renderFile(s, buf, frameCount, channels)
	case ModeStream, ModeCapture:
		renderRing(s, buf, frameCount, channels, rb)
	default:
		zero(buf)
	}

	// 6. Volume + limiter.
	dither.ApplyVolume(buf, s.Volume)
	dither.ApplyLimiter(buf, s.LimiterEnabled, s.LimiterThreshold)

	// 7. Spectrum mirror update.
	s.updateSpectrumMirror(buf, frameCount, channels)

	// Second stage: dither only runs for integer device formats, only
	// after volume+limit.
	if s.DitherEnabled && (targetBits == 16 || targetBits == 24) {
		effectiveBits := s.DitherBits
		if targetBits < effectiveBits {
			effectiveBits = targetBits
		}
		dither.Apply(buf, channels, s.DitherType, effectiveBits, s.DitherState)
	}
}

func zero(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
}

// renderFile implements callback step 3: copy frameCount frames from the
// file buffer, zero-filling and stopping transport on exhaustion.
func renderFile(s *EngineState, buf []float32, frameCount, channels int) {
	frames := s.Frames()
	available := frames - s.Position
	toCopy := frameCount
	if toCopy > available {
		toCopy = available
	}
	if toCopy < 0 {
		toCopy = 0
	}

	start := s.Position * channels
	n := toCopy * channels
	copy(buf[:n], s.Data[start:start+n])
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}

	s.Position += toCopy
	s.PlayedFrames += uint64(toCopy)

	if toCopy < frameCount {
		s.IsPlaying = false
	}
}

// renderRing implements callback step 4: pop up to buf's length from the
// ring buffer, tracking underruns and buffered-frame accounting.
func renderRing(s *EngineState, buf []float32, frameCount, channels int, rb *ring.Buffer) {
	if rb == nil {
		zero(buf)
		return
	}
	requested := uint64(len(buf))
	got := rb.Pop(buf)
	consumed := uint64(got)

	if consumed < requested {
		s.Underruns++
	}

	consumedFrames := consumed / uint64(channels)
	if consumedFrames > s.BufferedFrames {
		consumedFrames = s.BufferedFrames
	}
	s.BufferedFrames -= consumedFrames
	s.PlayedFrames += consumedFrames
}

// updateSpectrumMirror implements callback step 7: mono copies directly;
// multichannel downmixes by per-frame average into the first
// min(frames,2048) slots, zeroing any trailing slots.
func (s *EngineState) updateSpectrumMirror(buf []float32, frameCount, channels int) {
	mirror := s.SpectrumMirror
	limit := frameCount
	if limit > len(mirror) {
		limit = len(mirror)
	}

	if channels == 1 {
		copy(mirror[:limit], buf[:limit])
	} else {
		for f := 0; f < limit; f++ {
			var sum float32
			for c := 0; c < channels; c++ {
				idx := f*channels + c
				if idx < len(buf) {
					sum += buf[idx]
				}
			}
			mirror[f] = sum / float32(channels)
		}
	}
	for i := limit; i < len(mirror); i++ {
		mirror[i] = 0
	}
}
