// Package device tracks local device hot-plug notifications, device faults
// and the inferred capture-device state of remote stream publishers.
package device

import (
	"fmt"
	"sync"

	"github.com/opd-ai/rtcevent/event"
	"github.com/opd-ai/rtcevent/limits"
	"github.com/opd-ai/rtcevent/registry"
	"github.com/sirupsen/logrus"
)

type remoteKind int

const (
	remoteCamera remoteKind = iota
	remoteMic
)

type remoteKey struct {
	streamID string
	kind     remoteKind
}

// Tracker converts raw device notifications into device events.
//
// Local add and remove notifications are applied to the registry's device
// set and each produces exactly one event, even when it repeats an earlier
// notification. Remote camera and microphone states are kept per stream
// and reported only when they change.
type Tracker struct {
	reg  *registry.Registry
	sink event.Sink

	mu     sync.Mutex
	remote map[remoteKey]event.RemoteDeviceState
}

// NewTracker creates a tracker recording devices in reg and emitting to sink.
func NewTracker(reg *registry.Registry, sink event.Sink) *Tracker {
	return &Tracker{
		reg:    reg,
		sink:   sink,
		remote: make(map[remoteKey]event.RemoteDeviceState),
	}
}

// AudioDeviceChanged applies an audio device hot-plug notification.
//
// Parameters:
//   - updateType: Whether the device was added or removed
//   - deviceType: Input (capture) or output (render)
//   - info: The device identity reported by the driver
//
// Returns:
//   - error: ErrEmptyDeviceID if info carries no device ID
func (t *Tracker) AudioDeviceChanged(updateType event.UpdateType, deviceType event.AudioDeviceType, info event.DeviceInfo) error {
	if info.DeviceID == "" {
		return ErrEmptyDeviceID
	}
	category := registry.DeviceAudioInput
	if deviceType == event.AudioDeviceTypeOutput {
		category = registry.DeviceAudioOutput
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.reg.ApplyDevice(updateType, category, info)
	t.sink.Publish(event.AudioDeviceStateChanged{UpdateType: updateType, DeviceType: deviceType, Info: info})

	logrus.WithFields(logrus.Fields{
		"function":    "AudioDeviceChanged",
		"update_type": updateType.String(),
		"category":    category.String(),
		"device_id":   info.DeviceID,
	}).Debug("Audio device notification applied")
	return nil
}

// VideoDeviceChanged applies a camera hot-plug notification.
func (t *Tracker) VideoDeviceChanged(updateType event.UpdateType, info event.DeviceInfo) error {
	if info.DeviceID == "" {
		return ErrEmptyDeviceID
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.reg.ApplyDevice(updateType, registry.DeviceVideoInput, info)
	t.sink.Publish(event.VideoDeviceStateChanged{UpdateType: updateType, Info: info})

	logrus.WithFields(logrus.Fields{
		"function":    "VideoDeviceChanged",
		"update_type": updateType.String(),
		"device_id":   info.DeviceID,
	}).Debug("Video device notification applied")
	return nil
}

// DeviceFault reports a local device fault. Faults are never returned to
// the caller that triggered them; they surface only as device-error events.
func (t *Tracker) DeviceFault(errorCode int, deviceName string) {
	logrus.WithFields(logrus.Fields{
		"function":    "DeviceFault",
		"error_code":  errorCode,
		"device_name": deviceName,
	}).Warn("Device fault reported")

	t.sink.Publish(event.DeviceError{ErrorCode: errorCode, DeviceName: deviceName})
}

// RemoteCameraState records the camera state of the publisher of streamID.
func (t *Tracker) RemoteCameraState(streamID string, state event.RemoteDeviceState) error {
	return t.setRemote(streamID, remoteCamera, state)
}

// RemoteMicState records the microphone state of the publisher of streamID.
func (t *Tracker) RemoteMicState(streamID string, state event.RemoteDeviceState) error {
	return t.setRemote(streamID, remoteMic, state)
}

func (t *Tracker) setRemote(streamID string, kind remoteKind, state event.RemoteDeviceState) error {
	if err := limits.ValidateStreamID(streamID); err != nil {
		return fmt.Errorf("remote device state: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	key := remoteKey{streamID: streamID, kind: kind}
	if prev, ok := t.remote[key]; ok && prev == state {
		return nil
	}
	t.remote[key] = state

	if kind == remoteCamera {
		t.sink.Publish(event.RemoteCameraStateUpdate{StreamID: streamID, State: state})
	} else {
		t.sink.Publish(event.RemoteMicStateUpdate{StreamID: streamID, State: state})
	}
	return nil
}

// RemoteState returns the last camera and microphone states of streamID.
// The booleans are false when no state has been reported.
func (t *Tracker) RemoteState(streamID string) (camera event.RemoteDeviceState, hasCamera bool, mic event.RemoteDeviceState, hasMic bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	camera, hasCamera = t.remote[remoteKey{streamID: streamID, kind: remoteCamera}]
	mic, hasMic = t.remote[remoteKey{streamID: streamID, kind: remoteMic}]
	return
}

// ForgetStream drops the remote states of streamID, so the next report for
// it is emitted even if it repeats the last one.
func (t *Tracker) ForgetStream(streamID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.remote, remoteKey{streamID: streamID, kind: remoteCamera})
	delete(t.remote, remoteKey{streamID: streamID, kind: remoteMic})
}

// Devices returns the present devices of category.
func (t *Tracker) Devices(category registry.DeviceCategory) []registry.Device {
	return t.reg.Devices(category)
}
