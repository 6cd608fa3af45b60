package registry

import (
	"sort"
	"sync"

	"github.com/opd-ai/rtcevent/event"
)

// DeviceCategory classifies a local device.
type DeviceCategory int

const (
	DeviceAudioInput DeviceCategory = iota
	DeviceAudioOutput
	DeviceVideoInput
)

// String returns the string representation of DeviceCategory.
func (c DeviceCategory) String() string {
	switch c {
	case DeviceAudioInput:
		return "audio_input"
	case DeviceAudioOutput:
		return "audio_output"
	case DeviceVideoInput:
		return "video_input"
	default:
		return "unknown"
	}
}

// Device is one entry of the local device set.
type Device struct {
	Info      event.DeviceInfo
	Category  DeviceCategory
	Connected bool
}

type deviceKey struct {
	category DeviceCategory
	id       string
}

type deviceSet struct {
	mu      sync.RWMutex
	devices map[deviceKey]Device
}

func newDeviceSet() *deviceSet {
	return &deviceSet{devices: make(map[deviceKey]Device)}
}

// ApplyDevice adds or removes a device. Duplicate notifications converge on
// the same set.
func (r *Registry) ApplyDevice(updateType event.UpdateType, category DeviceCategory, info event.DeviceInfo) {
	r.devices.mu.Lock()
	defer r.devices.mu.Unlock()

	key := deviceKey{category: category, id: info.DeviceID}
	if updateType == event.UpdateTypeAdd {
		r.devices.devices[key] = Device{Info: info, Category: category, Connected: true}
		return
	}
	delete(r.devices.devices, key)
}

// Devices returns the devices of category sorted by ID.
func (r *Registry) Devices(category DeviceCategory) []Device {
	r.devices.mu.RLock()
	defer r.devices.mu.RUnlock()

	out := make([]Device, 0, len(r.devices.devices))
	for key, d := range r.devices.devices {
		if key.category == category {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Info.DeviceID < out[j].Info.DeviceID })
	return out
}

// HasDevice reports whether the device is present.
func (r *Registry) HasDevice(category DeviceCategory, deviceID string) bool {
	r.devices.mu.RLock()
	defer r.devices.mu.RUnlock()
	_, ok := r.devices.devices[deviceKey{category: category, id: deviceID}]
	return ok
}
