// Package output implements device discovery, stream build/teardown,
// shared-mode render loop, and (on Windows) exclusive-mode WASAPI loop.
// The shared-mode path turns PortAudio's blocking stream.Write into the
// pull-model contract the engine's callback body expects: a dedicated
// goroutine asks engine.RenderCallback to fill one buffer's worth of
// frames each iteration, then writes it out.
package output

import (
	"fmt"

	"github.com/drgolem/go-portaudio/portaudio"
)

// DeviceInfo is one entry in the stable global device ordinal table.
type DeviceInfo struct {
	Ordinal           int
	Name              string
	HostAPI           string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
}

// ListDevices enumerates every host API's device list once, in PortAudio's
// iteration order, assigning the flat ordinal configure_output's device_id
// addresses. This mirrors the original engine's enumeration: the ordinal is
// stable across repeated calls within one process lifetime because
// PortAudio's own device indexing does not change without re-initializing.
func ListDevices() ([]DeviceInfo, error) {
	all, err := listAllDevices()
	if err != nil {
		return nil, err
	}
	devices := all[:0]
	for _, d := range all {
		if d.MaxOutputChannels > 0 {
			devices = append(devices, d)
		}
	}
	return devices, nil
}

// ListCaptureDevices is the input-side counterpart backing GET
// /capture/devices: same flat ordinal space, filtered to devices that can
// record.
func ListCaptureDevices() ([]DeviceInfo, error) {
	all, err := listAllDevices()
	if err != nil {
		return nil, err
	}
	devices := all[:0]
	for _, d := range all {
		if d.MaxInputChannels > 0 {
			devices = append(devices, d)
		}
	}
	return devices, nil
}

func listAllDevices() ([]DeviceInfo, error) {
	count, err := portaudio.GetDeviceCount()
	if err != nil {
		return nil, fmt.Errorf("output: enumerate devices: %w", err)
	}

	devices := make([]DeviceInfo, 0, count)
	for i := 0; i < count; i++ {
		info, err := portaudio.GetDeviceInfo(i)
		if err != nil {
			continue
		}
		devices = append(devices, DeviceInfo{
			Ordinal:           i,
			Name:              info.Name,
			HostAPI:           info.HostApiName,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
		})
	}
	return devices, nil
}

// exclusiveEligible reports whether hostAPI supports exclusive-mode
// rendering on this platform: ASIO is always eligible on its platform;
// WASAPI is eligible on Windows; everything else is ineligible, so an
// exclusive request against it is silently downgraded to shared.
func exclusiveEligible(hostAPI string) bool {
	switch hostAPI {
	case "ASIO":
		return true
	default:
		return isWASAPIEligible(hostAPI)
	}
}
