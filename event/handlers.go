package event

import "github.com/opd-ai/rtcevent/arena"

// An observer is any value implementing one or more of the handler groups
// below. Groups an observer does not implement are skipped for it. Embed the
// matching Nop type to implement a group while overriding only some of its
// methods.

// EngineHandler receives lifecycle and diagnostic notifications.
type EngineHandler interface {
	OnDebugError(errorCode int, funcName, info string)
	OnEngineStateUpdate(state EngineState)
}

// RoomHandler receives session notifications.
type RoomHandler interface {
	OnRoomStateUpdate(roomID string, state RoomState, errorCode int, extendedData Document)
	OnRoomUserUpdate(roomID string, updateType UpdateType, users []User)
	OnRoomOnlineUserCountUpdate(roomID string, count int)
	OnRoomStreamUpdate(roomID string, updateType UpdateType, streams []Stream)
	OnRoomStreamExtraInfoUpdate(roomID string, streams []Stream)
	OnRoomExtraInfoUpdate(roomID string, infos []RoomExtraInfo)
	OnIMRecvBroadcastMessage(roomID string, messages []BroadcastMessage)
	OnIMRecvBarrageMessage(roomID string, messages []BarrageMessage)
	OnIMRecvCustomCommand(roomID string, fromUser User, command string)
}

// PublisherHandler receives publish notifications.
type PublisherHandler interface {
	OnPublisherStateUpdate(streamID string, state PublisherState, errorCode int, extendedData Document)
	OnPublisherQualityUpdate(streamID string, quality QualitySample)
	OnPublisherCapturedAudioFirstFrame()
	OnPublisherCapturedVideoFirstFrame(channel PublishChannel)
	OnPublisherVideoSizeChanged(width, height int, channel PublishChannel)
	OnPublisherRelayCDNStateUpdate(streamID string, infos []RelayCDNInfo)
}

// PlayerHandler receives play notifications.
type PlayerHandler interface {
	OnPlayerStateUpdate(streamID string, state PlayerState, errorCode int, extendedData Document)
	OnPlayerQualityUpdate(streamID string, quality QualitySample)
	OnPlayerMediaEvent(streamID string, mediaEvent PlayerMediaEvent)
	OnPlayerRecvAudioFirstFrame(streamID string)
	OnPlayerRecvVideoFirstFrame(streamID string)
	OnPlayerRenderVideoFirstFrame(streamID string)
	OnPlayerVideoSizeChanged(streamID string, width, height int)
	// OnPlayerRecvSEI receives a private copy of one out-of-band data unit.
	OnPlayerRecvSEI(streamID string, data []byte)
}

// MixerHandler receives stream mixing notifications.
type MixerHandler interface {
	OnMixerRelayCDNStateUpdate(taskID string, infos []RelayCDNInfo)
	OnMixerSoundLevelUpdate(soundLevels map[uint32]float32)
}

// DeviceHandler receives local and remote device notifications.
type DeviceHandler interface {
	OnAudioDeviceStateChanged(updateType UpdateType, deviceType AudioDeviceType, info DeviceInfo)
	OnVideoDeviceStateChanged(updateType UpdateType, info DeviceInfo)
	OnDeviceError(errorCode int, deviceName string)
	OnRemoteCameraStateUpdate(streamID string, state RemoteDeviceState)
	OnRemoteMicStateUpdate(streamID string, state RemoteDeviceState)
}

// SoundLevelHandler receives periodic sound level and spectrum samples.
type SoundLevelHandler interface {
	OnCapturedSoundLevelUpdate(soundLevel float32)
	OnRemoteSoundLevelUpdate(soundLevels map[string]float32)
	OnCapturedAudioSpectrumUpdate(spectrum AudioSpectrum)
	OnRemoteAudioSpectrumUpdate(spectrums map[string]AudioSpectrum)
}

// MediaPlayerHandler receives notifications for local media player instances.
type MediaPlayerHandler interface {
	OnMediaPlayerStateUpdate(player arena.Handle, state MediaPlayerState, errorCode int)
	OnMediaPlayerNetworkEvent(player arena.Handle, networkEvent MediaPlayerNetworkEvent)
	OnMediaPlayerPlayingProgress(player arena.Handle, millisecond uint64)
}

// IsObserver reports whether o implements at least one handler group.
func IsObserver(o any) bool {
	switch o.(type) {
	case EngineHandler, RoomHandler, PublisherHandler, PlayerHandler,
		MixerHandler, DeviceHandler, SoundLevelHandler, MediaPlayerHandler:
		return true
	}
	return false
}

// NopEngineHandler implements EngineHandler with no-ops.
type NopEngineHandler struct{}

func (NopEngineHandler) OnDebugError(int, string, string) {}
func (NopEngineHandler) OnEngineStateUpdate(EngineState)  {}

// NopRoomHandler implements RoomHandler with no-ops.
type NopRoomHandler struct{}

func (NopRoomHandler) OnRoomStateUpdate(string, RoomState, int, Document)  {}
func (NopRoomHandler) OnRoomUserUpdate(string, UpdateType, []User)         {}
func (NopRoomHandler) OnRoomOnlineUserCountUpdate(string, int)             {}
func (NopRoomHandler) OnRoomStreamUpdate(string, UpdateType, []Stream)     {}
func (NopRoomHandler) OnRoomStreamExtraInfoUpdate(string, []Stream)        {}
func (NopRoomHandler) OnRoomExtraInfoUpdate(string, []RoomExtraInfo)       {}
func (NopRoomHandler) OnIMRecvBroadcastMessage(string, []BroadcastMessage) {}
func (NopRoomHandler) OnIMRecvBarrageMessage(string, []BarrageMessage)     {}
func (NopRoomHandler) OnIMRecvCustomCommand(string, User, string)          {}

// NopPublisherHandler implements PublisherHandler with no-ops.
type NopPublisherHandler struct{}

func (NopPublisherHandler) OnPublisherStateUpdate(string, PublisherState, int, Document) {}
func (NopPublisherHandler) OnPublisherQualityUpdate(string, QualitySample)               {}
func (NopPublisherHandler) OnPublisherCapturedAudioFirstFrame()                          {}
func (NopPublisherHandler) OnPublisherCapturedVideoFirstFrame(PublishChannel)            {}
func (NopPublisherHandler) OnPublisherVideoSizeChanged(int, int, PublishChannel)         {}
func (NopPublisherHandler) OnPublisherRelayCDNStateUpdate(string, []RelayCDNInfo)        {}

// NopPlayerHandler implements PlayerHandler with no-ops.
type NopPlayerHandler struct{}

func (NopPlayerHandler) OnPlayerStateUpdate(string, PlayerState, int, Document) {}
func (NopPlayerHandler) OnPlayerQualityUpdate(string, QualitySample)            {}
func (NopPlayerHandler) OnPlayerMediaEvent(string, PlayerMediaEvent)            {}
func (NopPlayerHandler) OnPlayerRecvAudioFirstFrame(string)                     {}
func (NopPlayerHandler) OnPlayerRecvVideoFirstFrame(string)                     {}
func (NopPlayerHandler) OnPlayerRenderVideoFirstFrame(string)                   {}
func (NopPlayerHandler) OnPlayerVideoSizeChanged(string, int, int)              {}
func (NopPlayerHandler) OnPlayerRecvSEI(string, []byte)                         {}

// NopMixerHandler implements MixerHandler with no-ops.
type NopMixerHandler struct{}

func (NopMixerHandler) OnMixerRelayCDNStateUpdate(string, []RelayCDNInfo) {}
func (NopMixerHandler) OnMixerSoundLevelUpdate(map[uint32]float32)        {}

// NopDeviceHandler implements DeviceHandler with no-ops.
type NopDeviceHandler struct{}

func (NopDeviceHandler) OnAudioDeviceStateChanged(UpdateType, AudioDeviceType, DeviceInfo) {}
func (NopDeviceHandler) OnVideoDeviceStateChanged(UpdateType, DeviceInfo)                  {}
func (NopDeviceHandler) OnDeviceError(int, string)                                         {}
func (NopDeviceHandler) OnRemoteCameraStateUpdate(string, RemoteDeviceState)               {}
func (NopDeviceHandler) OnRemoteMicStateUpdate(string, RemoteDeviceState)                  {}

// NopSoundLevelHandler implements SoundLevelHandler with no-ops.
type NopSoundLevelHandler struct{}

func (NopSoundLevelHandler) OnCapturedSoundLevelUpdate(float32)                   {}
func (NopSoundLevelHandler) OnRemoteSoundLevelUpdate(map[string]float32)          {}
func (NopSoundLevelHandler) OnCapturedAudioSpectrumUpdate(AudioSpectrum)          {}
func (NopSoundLevelHandler) OnRemoteAudioSpectrumUpdate(map[string]AudioSpectrum) {}

// NopMediaPlayerHandler implements MediaPlayerHandler with no-ops.
type NopMediaPlayerHandler struct{}

func (NopMediaPlayerHandler) OnMediaPlayerStateUpdate(arena.Handle, MediaPlayerState, int)    {}
func (NopMediaPlayerHandler) OnMediaPlayerNetworkEvent(arena.Handle, MediaPlayerNetworkEvent) {}
func (NopMediaPlayerHandler) OnMediaPlayerPlayingProgress(arena.Handle, uint64)               {}

// NopObserver implements every handler group with no-ops.
type NopObserver struct {
	NopEngineHandler
	NopRoomHandler
	NopPublisherHandler
	NopPlayerHandler
	NopMixerHandler
	NopDeviceHandler
	NopSoundLevelHandler
	NopMediaPlayerHandler
}
