package output

import (
	"log/slog"
	"sync"

	"github.com/ntmusic/vmusic-engine/internal/engine"
	"github.com/ntmusic/vmusic-engine/internal/ring"
	"github.com/ntmusic/vmusic-engine/internal/shm"
)

// Renderer is the engine.OutputController implementation: it owns whichever
// concrete renderer (shared PortAudio stream or, on Windows, exclusive
// WASAPI) is currently active and rebuilds it whenever device_id, exclusive
// mode, sample rate, channel count, or bit depth change.
type Renderer struct {
	mu      sync.Mutex
	log     *slog.Logger
	rb      *ring.Buffer
	control *shm.ControlRegion

	shared    *sharedRenderer
	exclusive exclusiveRenderer

	lastDevice    int
	lastExclusive bool
	lastRate      int
	lastChannels  int
	lastBits      int
	built         bool
}

// New constructs a renderer bound to the ring buffer and control region the
// device loop reads from.
func New(rb *ring.Buffer, control *shm.ControlRegion, log *slog.Logger) *Renderer {
	if log == nil {
		log = slog.Default()
	}
	return &Renderer{
		log:     log,
		rb:      rb,
		control: control,
		shared:  newSharedRenderer(log),
	}
}

// Rebuild tears down any active renderer and builds a new one matching the
// current device_id/exclusive/sample-rate/channels/bit-depth tuple. It is a
// no-op if that tuple hasn't changed since the last successful build.
func (r *Renderer) Rebuild(s *engine.EngineState) error {
	s.Mu.Lock()
	deviceID := 0
	if s.DeviceID != nil {
		deviceID = *s.DeviceID
	}
	exclusive := s.ExclusiveMode
	rate := s.Working.SampleRate
	channels := s.Working.Channels
	bits := s.DitherBits
	s.Mu.Unlock()

	if rate == 0 || channels == 0 {
		return nil // nothing loaded yet
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.built && deviceID == r.lastDevice && exclusive == r.lastExclusive &&
		rate == r.lastRate && channels == r.lastChannels && bits == r.lastBits {
		return nil
	}

	r.teardownLocked()

	devices, err := ListDevices()
	if err != nil {
		r.log.Warn("output: device enumeration failed, assuming shared mode", "error", err)
		devices = nil
	}

	hostAPI := ""
	for _, d := range devices {
		if d.Ordinal == deviceID {
			hostAPI = d.HostAPI
			break
		}
	}

	useExclusive := exclusive && exclusiveEligible(hostAPI)
	if exclusive && !useExclusive {
		r.log.Info("output: exclusive mode requested but unavailable on this host API, downgrading to shared", "host_api", hostAPI)
		clearExclusiveFlag(s)
	}

	if useExclusive {
		ex, err := newExclusiveRenderer(deviceID, channels, rate, bits, s, r.rb, r.control, r.log)
		if err == nil {
			r.exclusive = ex
			r.lastDevice, r.lastExclusive, r.lastRate, r.lastChannels, r.lastBits = deviceID, true, rate, channels, bits
			r.built = true
			return nil
		}
		r.log.Warn("output: exclusive stream build failed, falling back to shared", "error", err)
		clearExclusiveFlag(s)
	}

	if err := r.shared.start(s, r.rb, r.control, deviceID, channels, bits, float64(rate)); err != nil {
		fallbackRate := defaultRateFor(devices, deviceID)
		if fallbackRate == 0 || fallbackRate == rate {
			return err
		}
		r.log.Warn("output: device refused working rate, retrying at its default rate",
			"rate", rate, "fallback_rate", fallbackRate, "error", err)
		if err := s.ResampleForOutput(fallbackRate); err != nil {
			return err
		}
		if err := r.shared.start(s, r.rb, r.control, deviceID, channels, bits, float64(fallbackRate)); err != nil {
			return err
		}
		rate = fallbackRate
	}
	r.lastDevice, r.lastExclusive, r.lastRate, r.lastChannels, r.lastBits = deviceID, false, rate, channels, bits
	r.built = true
	return nil
}

// clearExclusiveFlag forces exclusive_mode off after a downgrade or a failed
// exclusive build, so the state view always reflects the active renderer.
func clearExclusiveFlag(s *engine.EngineState) {
	s.Mu.Lock()
	s.ExclusiveMode = false
	s.Mu.Unlock()
}

// defaultRateFor returns the enumerated default sample rate of the device at
// ordinal deviceID, or 0 when unknown.
func defaultRateFor(devices []DeviceInfo, deviceID int) int {
	for _, d := range devices {
		if d.Ordinal == deviceID {
			return int(d.DefaultSampleRate)
		}
	}
	return 0
}

// Teardown stops whichever renderer is active.
func (r *Renderer) Teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teardownLocked()
}

func (r *Renderer) teardownLocked() {
	r.shared.teardown()
	if r.exclusive != nil {
		r.exclusive.stop()
		r.exclusive = nil
	}
	r.built = false
}

// exclusiveRenderer is implemented by wasapi_windows.go's renderer; off
// Windows, wasapi_other.go's newExclusiveRenderer always returns an error
// and no exclusiveRenderer is ever built.
type exclusiveRenderer interface {
	stop()
}
