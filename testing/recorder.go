package testing

import (
	"sync"
	"time"

	"github.com/opd-ai/rtcevent/arena"
	"github.com/opd-ai/rtcevent/event"
	"github.com/sirupsen/logrus"
)

// EventRecorder records every notification it receives for test verification.
type EventRecorder struct {
	mu       sync.RWMutex
	eventLog []event.Event
	changed  chan struct{}
}

// RecorderStats summarises an EventRecorder log.
type RecorderStats struct {
	TotalEvents int
	ByKind      map[string]int
}

// NewEventRecorder creates an empty recorder.
func NewEventRecorder() *EventRecorder {
	logrus.WithFields(logrus.Fields{
		"function": "NewEventRecorder",
	}).Debug("Creating event recorder for testing")

	return &EventRecorder{
		eventLog: make([]event.Event, 0),
		changed:  make(chan struct{}, 1),
	}
}

func (r *EventRecorder) record(ev event.Event) {
	r.mu.Lock()
	r.eventLog = append(r.eventLog, ev)
	r.mu.Unlock()

	select {
	case r.changed <- struct{}{}:
	default:
	}
}

// GetEventLog returns a copy of the recorded events in delivery order.
func (r *EventRecorder) GetEventLog() []event.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	log := make([]event.Event, len(r.eventLog))
	copy(log, r.eventLog)
	return log
}

// Kinds returns the kind of every recorded event in delivery order.
func (r *EventRecorder) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, len(r.eventLog))
	for i, ev := range r.eventLog {
		kinds[i] = ev.Kind()
	}
	return kinds
}

// OfKind returns the recorded events of one kind in delivery order.
func (r *EventRecorder) OfKind(kind string) []event.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []event.Event
	for _, ev := range r.eventLog {
		if ev.Kind() == kind {
			out = append(out, ev)
		}
	}
	return out
}

// Len returns the number of recorded events.
func (r *EventRecorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.eventLog)
}

// ClearEventLog empties the event log.
func (r *EventRecorder) ClearEventLog() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.eventLog = make([]event.Event, 0)
}

// GetStats returns counts of recorded events.
func (r *EventRecorder) GetStats() RecorderStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RecorderStats{TotalEvents: len(r.eventLog), ByKind: make(map[string]int)}
	for _, ev := range r.eventLog {
		stats.ByKind[ev.Kind()]++
	}
	return stats
}

// WaitFor blocks until at least n events are recorded or timeout elapses.
func (r *EventRecorder) WaitFor(n int, timeout time.Duration) bool {
	return r.waitUntil(func() bool { return r.Len() >= n }, timeout)
}

// WaitForKind blocks until at least n events of kind are recorded or timeout
// elapses.
func (r *EventRecorder) WaitForKind(kind string, n int, timeout time.Duration) bool {
	return r.waitUntil(func() bool { return len(r.OfKind(kind)) >= n }, timeout)
}

func (r *EventRecorder) waitUntil(cond func() bool, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if cond() {
			return true
		}
		select {
		case <-r.changed:
		case <-deadline.C:
			return cond()
		}
	}
}

// EngineHandler

func (r *EventRecorder) OnDebugError(errorCode int, funcName, info string) {
	r.record(event.DebugError{ErrorCode: errorCode, FuncName: funcName, Info: info})
}

func (r *EventRecorder) OnEngineStateUpdate(state event.EngineState) {
	r.record(event.EngineStateUpdate{State: state})
}

// RoomHandler

func (r *EventRecorder) OnRoomStateUpdate(roomID string, state event.RoomState, errorCode int, extendedData event.Document) {
	r.record(event.RoomStateUpdate{RoomID: roomID, State: state, ErrorCode: errorCode, ExtendedData: extendedData})
}

func (r *EventRecorder) OnRoomUserUpdate(roomID string, updateType event.UpdateType, users []event.User) {
	r.record(event.RoomUserUpdate{RoomID: roomID, UpdateType: updateType, Users: users})
}

func (r *EventRecorder) OnRoomOnlineUserCountUpdate(roomID string, count int) {
	r.record(event.RoomOnlineUserCountUpdate{RoomID: roomID, Count: count})
}

func (r *EventRecorder) OnRoomStreamUpdate(roomID string, updateType event.UpdateType, streams []event.Stream) {
	r.record(event.RoomStreamUpdate{RoomID: roomID, UpdateType: updateType, Streams: streams})
}

func (r *EventRecorder) OnRoomStreamExtraInfoUpdate(roomID string, streams []event.Stream) {
	r.record(event.RoomStreamExtraInfoUpdate{RoomID: roomID, Streams: streams})
}

func (r *EventRecorder) OnRoomExtraInfoUpdate(roomID string, infos []event.RoomExtraInfo) {
	r.record(event.RoomExtraInfoUpdate{RoomID: roomID, Infos: infos})
}

func (r *EventRecorder) OnIMRecvBroadcastMessage(roomID string, messages []event.BroadcastMessage) {
	r.record(event.BroadcastMessageReceived{RoomID: roomID, Messages: messages})
}

func (r *EventRecorder) OnIMRecvBarrageMessage(roomID string, messages []event.BarrageMessage) {
	r.record(event.BarrageMessageReceived{RoomID: roomID, Messages: messages})
}

func (r *EventRecorder) OnIMRecvCustomCommand(roomID string, fromUser event.User, command string) {
	r.record(event.CustomCommandReceived{RoomID: roomID, FromUser: fromUser, Command: command})
}

// PublisherHandler

func (r *EventRecorder) OnPublisherStateUpdate(streamID string, state event.PublisherState, errorCode int, extendedData event.Document) {
	r.record(event.PublisherStateUpdate{StreamID: streamID, State: state, ErrorCode: errorCode, ExtendedData: extendedData})
}

func (r *EventRecorder) OnPublisherQualityUpdate(streamID string, quality event.QualitySample) {
	r.record(event.PublisherQualityUpdate{StreamID: streamID, Quality: quality})
}

func (r *EventRecorder) OnPublisherCapturedAudioFirstFrame() {
	r.record(event.PublisherCapturedAudioFirstFrame{})
}

func (r *EventRecorder) OnPublisherCapturedVideoFirstFrame(channel event.PublishChannel) {
	r.record(event.PublisherCapturedVideoFirstFrame{Channel: channel})
}

func (r *EventRecorder) OnPublisherVideoSizeChanged(width, height int, channel event.PublishChannel) {
	r.record(event.PublisherVideoSizeChanged{Width: width, Height: height, Channel: channel})
}

func (r *EventRecorder) OnPublisherRelayCDNStateUpdate(streamID string, infos []event.RelayCDNInfo) {
	r.record(event.PublisherRelayCDNStateUpdate{StreamID: streamID, Infos: infos})
}

// PlayerHandler

func (r *EventRecorder) OnPlayerStateUpdate(streamID string, state event.PlayerState, errorCode int, extendedData event.Document) {
	r.record(event.PlayerStateUpdate{StreamID: streamID, State: state, ErrorCode: errorCode, ExtendedData: extendedData})
}

func (r *EventRecorder) OnPlayerQualityUpdate(streamID string, quality event.QualitySample) {
	r.record(event.PlayerQualityUpdate{StreamID: streamID, Quality: quality})
}

func (r *EventRecorder) OnPlayerMediaEvent(streamID string, mediaEvent event.PlayerMediaEvent) {
	r.record(event.PlayerMediaEventOccurred{StreamID: streamID, MediaEvent: mediaEvent})
}

func (r *EventRecorder) OnPlayerRecvAudioFirstFrame(streamID string) {
	r.record(event.PlayerRecvAudioFirstFrame{StreamID: streamID})
}

func (r *EventRecorder) OnPlayerRecvVideoFirstFrame(streamID string) {
	r.record(event.PlayerRecvVideoFirstFrame{StreamID: streamID})
}

func (r *EventRecorder) OnPlayerRenderVideoFirstFrame(streamID string) {
	r.record(event.PlayerRenderVideoFirstFrame{StreamID: streamID})
}

func (r *EventRecorder) OnPlayerVideoSizeChanged(streamID string, width, height int) {
	r.record(event.PlayerVideoSizeChanged{StreamID: streamID, Width: width, Height: height})
}

func (r *EventRecorder) OnPlayerRecvSEI(streamID string, data []byte) {
	r.record(event.PlayerRecvSEI{StreamID: streamID, Data: data})
}

// MixerHandler

func (r *EventRecorder) OnMixerRelayCDNStateUpdate(taskID string, infos []event.RelayCDNInfo) {
	r.record(event.MixerRelayCDNStateUpdate{TaskID: taskID, Infos: infos})
}

func (r *EventRecorder) OnMixerSoundLevelUpdate(soundLevels map[uint32]float32) {
	r.record(event.MixerSoundLevelUpdate{SoundLevels: soundLevels})
}

// DeviceHandler

func (r *EventRecorder) OnAudioDeviceStateChanged(updateType event.UpdateType, deviceType event.AudioDeviceType, info event.DeviceInfo) {
	r.record(event.AudioDeviceStateChanged{UpdateType: updateType, DeviceType: deviceType, Info: info})
}

func (r *EventRecorder) OnVideoDeviceStateChanged(updateType event.UpdateType, info event.DeviceInfo) {
	r.record(event.VideoDeviceStateChanged{UpdateType: updateType, Info: info})
}

func (r *EventRecorder) OnDeviceError(errorCode int, deviceName string) {
	r.record(event.DeviceError{ErrorCode: errorCode, DeviceName: deviceName})
}

func (r *EventRecorder) OnRemoteCameraStateUpdate(streamID string, state event.RemoteDeviceState) {
	r.record(event.RemoteCameraStateUpdate{StreamID: streamID, State: state})
}

func (r *EventRecorder) OnRemoteMicStateUpdate(streamID string, state event.RemoteDeviceState) {
	r.record(event.RemoteMicStateUpdate{StreamID: streamID, State: state})
}

// SoundLevelHandler

func (r *EventRecorder) OnCapturedSoundLevelUpdate(soundLevel float32) {
	r.record(event.CapturedSoundLevelUpdate{SoundLevel: soundLevel})
}

func (r *EventRecorder) OnRemoteSoundLevelUpdate(soundLevels map[string]float32) {
	r.record(event.RemoteSoundLevelUpdate{SoundLevels: soundLevels})
}

func (r *EventRecorder) OnCapturedAudioSpectrumUpdate(spectrum event.AudioSpectrum) {
	r.record(event.CapturedAudioSpectrumUpdate{Spectrum: spectrum})
}

func (r *EventRecorder) OnRemoteAudioSpectrumUpdate(spectrums map[string]event.AudioSpectrum) {
	r.record(event.RemoteAudioSpectrumUpdate{Spectrums: spectrums})
}

// MediaPlayerHandler

func (r *EventRecorder) OnMediaPlayerStateUpdate(player arena.Handle, state event.MediaPlayerState, errorCode int) {
	r.record(event.MediaPlayerStateUpdate{Player: player, State: state, ErrorCode: errorCode})
}

func (r *EventRecorder) OnMediaPlayerNetworkEvent(player arena.Handle, networkEvent event.MediaPlayerNetworkEvent) {
	r.record(event.MediaPlayerNetworkEventOccurred{Player: player, NetworkEvent: networkEvent})
}

func (r *EventRecorder) OnMediaPlayerPlayingProgress(player arena.Handle, millisecond uint64) {
	r.record(event.MediaPlayerPlayingProgress{Player: player, Millisecond: millisecond})
}
