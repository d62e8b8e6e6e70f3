//go:build windows

package output

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"unsafe"

	"github.com/go-ole/go-ole"
	"github.com/moutend/go-wca/pkg/wca"
	"golang.org/x/sys/windows"

	"github.com/ntmusic/vmusic-engine/internal/engine"
	"github.com/ntmusic/vmusic-engine/internal/ring"
	"github.com/ntmusic/vmusic-engine/internal/shm"
)

// isWASAPIEligible reports whether hostAPI, as reported by PortAudio's
// device table, is the WASAPI host API, the only one this platform builds
// an exclusive-mode path for.
func isWASAPIEligible(hostAPI string) bool {
	return hostAPI == "Windows WASAPI"
}

// wasapiRenderer holds an exclusive-mode IAudioClient session: a dedicated
// COM-initialized OS thread waits on an event signaled by the audio engine,
// then fills whatever padding has drained via GetBuffer/ReleaseBuffer.
type wasapiRenderer struct {
	client       *wca.IAudioClient
	renderClient *wca.IAudioRenderClient
	event        windows.Handle
	bufferFrames uint32
	channels     int
	bits         int

	stopCh chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func newExclusiveRenderer(deviceID, channels, rate, bits int, s *engine.EngineState, rb *ring.Buffer, control *shm.ControlRegion, log *slog.Logger) (exclusiveRenderer, error) {
	if log == nil {
		log = slog.Default()
	}

	r := &wasapiRenderer{channels: channels, bits: bits, stopCh: make(chan struct{})}
	initDone := make(chan error, 1)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
			initDone <- err
			return
		}
		defer ole.CoUninitialize()

		if err := r.initOnCOMThread(rate); err != nil {
			initDone <- err
			return
		}
		initDone <- nil

		r.renderLoop(s, rb, control)

		r.client.Stop()
	}()

	if err := <-initDone; err != nil {
		return nil, fmt.Errorf("output: wasapi exclusive init: %w", err)
	}
	return r, nil
}

func (r *wasapiRenderer) initOnCOMThread(rate int) error {
	var enumerator *wca.IMMDeviceEnumerator
	if err := wca.CoCreateInstance(wca.CLSID_MMDeviceEnumerator, 0, wca.CLSCTX_ALL, wca.IID_IMMDeviceEnumerator, &enumerator); err != nil {
		return err
	}
	defer enumerator.Release()

	var device *wca.IMMDevice
	if err := enumerator.GetDefaultAudioEndpoint(wca.ERender, wca.EConsole, &device); err != nil {
		return err
	}
	defer device.Release()

	var client *wca.IAudioClient
	if err := device.Activate(wca.IID_IAudioClient, wca.CLSCTX_ALL, nil, &client); err != nil {
		return err
	}
	r.client = client

	// A plain WAVEFORMATEX integer-PCM descriptor; WAVEFORMATEXTENSIBLE
	// float output is not wired up (see DESIGN.md).
	blockAlign := r.channels * r.bits / 8
	wfx := &wca.WAVEFORMATEX{
		WFormatTag:      wca.WAVE_FORMAT_PCM,
		NChannels:       uint16(r.channels),
		NSamplesPerSec:  uint32(rate),
		NAvgBytesPerSec: uint32(rate * blockAlign),
		NBlockAlign:     uint16(blockAlign),
		WBitsPerSample:  uint16(r.bits),
		CbSize:          0,
	}

	// Event-driven exclusive streams require the buffer duration and the
	// periodicity to both equal the device period.
	var defaultPeriod, minimumPeriod wca.REFERENCE_TIME
	if err := client.GetDevicePeriod(&defaultPeriod, &minimumPeriod); err != nil {
		return err
	}

	if err := client.Initialize(wca.AUDCLNT_SHAREMODE_EXCLUSIVE,
		wca.AUDCLNT_STREAMFLAGS_EVENTCALLBACK, defaultPeriod, defaultPeriod, wfx, nil); err != nil {
		return err
	}

	if err := client.GetBufferSize(&r.bufferFrames); err != nil {
		return err
	}

	var renderClient *wca.IAudioRenderClient
	if err := client.GetService(wca.IID_IAudioRenderClient, &renderClient); err != nil {
		return err
	}
	r.renderClient = renderClient

	ev, err := windows.CreateEventEx(nil, nil, 0, windows.EVENT_ALL_ACCESS)
	if err != nil {
		return err
	}
	r.event = ev
	if err := client.SetEventHandle(uintptr(ev)); err != nil {
		return err
	}

	return client.Start()
}

func (r *wasapiRenderer) renderLoop(s *engine.EngineState, rb *ring.Buffer, control *shm.ControlRegion) {
	floatBuf := make([]float32, int(r.bufferFrames)*r.channels)
	pcm := make([]byte, int(r.bufferFrames)*bytesPerFrame(r.bits, r.channels))

	for {
		select {
		case <-r.stopCh:
			return
		default:
		}

		// 100ms timeout so the stop flag is polled even when the audio
		// engine stops signaling the event.
		evt, err := windows.WaitForSingleObject(r.event, 100)
		if err != nil {
			return
		}
		if evt == uint32(windows.WAIT_TIMEOUT) {
			continue
		}
		if evt != windows.WAIT_OBJECT_0 {
			return
		}

		var padding uint32
		if err := r.client.GetCurrentPadding(&padding); err != nil {
			return
		}
		frames := r.bufferFrames - padding
		if frames == 0 {
			continue
		}

		var dst *byte
		if err := r.renderClient.GetBuffer(frames, &dst); err != nil {
			return
		}

		n := int(frames) * r.channels
		engine.RenderCallback(s, floatBuf[:n], int(frames), rb, control, r.bits)
		packInt(floatBuf[:n], r.bits, pcm[:int(frames)*bytesPerFrame(r.bits, r.channels)])

		out := unsafe.Slice(dst, int(frames)*bytesPerFrame(r.bits, r.channels))
		copy(out, pcm[:len(out)])

		if err := r.renderClient.ReleaseBuffer(frames, 0); err != nil {
			return
		}
	}
}

func (r *wasapiRenderer) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.stopCh:
	default:
		close(r.stopCh)
	}
	r.wg.Wait()
	if r.event != 0 {
		windows.CloseHandle(r.event)
		r.event = 0
	}
}
