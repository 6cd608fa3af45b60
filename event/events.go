package event

import (
	"fmt"

	"github.com/opd-ai/rtcevent/arena"
)

// Scope classifies the entity an event concerns.
type Scope int

const (
	ScopeEngine Scope = iota
	ScopeRoom
	ScopePublisher
	ScopePlayer
	ScopeMixer
	ScopeDevice
	ScopeSampler
	ScopeMediaPlayer
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeEngine:
		return "engine"
	case ScopeRoom:
		return "room"
	case ScopePublisher:
		return "publisher"
	case ScopePlayer:
		return "player"
	case ScopeMixer:
		return "mixer"
	case ScopeDevice:
		return "device"
	case ScopeSampler:
		return "sampler"
	case ScopeMediaPlayer:
		return "mediaplayer"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// Key identifies the entity an event concerns. Events with equal keys are
// delivered in production order.
type Key struct {
	Scope Scope
	ID    string
}

// String returns "scope/id".
func (k Key) String() string {
	return k.Scope.String() + "/" + k.ID
}

// Event is one discrete notification. Deliver invokes the matching handler
// on observer when observer implements the event's handler group.
type Event interface {
	Key() Key
	Kind() string
	Deliver(observer any)
}

// Sink accepts produced events. The dispatcher is the production Sink.
type Sink interface {
	Publish(ev Event)
}

// DebugError reports incorrect API usage. Only produced with verbose diagnostics.
type DebugError struct {
	ErrorCode int    `json:"error_code"`
	FuncName  string `json:"func_name"`
	Info      string `json:"info"`
}

func (e DebugError) Key() Key     { return Key{Scope: ScopeEngine} }
func (e DebugError) Kind() string { return "debug_error" }
func (e DebugError) Deliver(o any) {
	if h, ok := o.(EngineHandler); ok {
		h.OnDebugError(e.ErrorCode, e.FuncName, e.Info)
	}
}

// EngineStateUpdate reports the media engine starting or stopping.
type EngineStateUpdate struct {
	State EngineState `json:"state"`
}

func (e EngineStateUpdate) Key() Key     { return Key{Scope: ScopeEngine} }
func (e EngineStateUpdate) Kind() string { return "engine_state_update" }
func (e EngineStateUpdate) Deliver(o any) {
	if h, ok := o.(EngineHandler); ok {
		h.OnEngineStateUpdate(e.State)
	}
}

// RoomStateUpdate reports a session state transition.
type RoomStateUpdate struct {
	RoomID       string    `json:"room_id"`
	State        RoomState `json:"state"`
	ErrorCode    int       `json:"error_code"`
	ExtendedData Document  `json:"extended_data"`
}

func (e RoomStateUpdate) Key() Key     { return Key{Scope: ScopeRoom, ID: e.RoomID} }
func (e RoomStateUpdate) Kind() string { return "room_state_update" }
func (e RoomStateUpdate) Deliver(o any) {
	if h, ok := o.(RoomHandler); ok {
		h.OnRoomStateUpdate(e.RoomID, e.State, e.ErrorCode, e.ExtendedData)
	}
}

// RoomUserUpdate reports participants joining or leaving.
type RoomUserUpdate struct {
	RoomID     string     `json:"room_id"`
	UpdateType UpdateType `json:"update_type"`
	Users      []User     `json:"users"`
}

func (e RoomUserUpdate) Key() Key     { return Key{Scope: ScopeRoom, ID: e.RoomID} }
func (e RoomUserUpdate) Kind() string { return "room_user_update" }
func (e RoomUserUpdate) Deliver(o any) {
	if h, ok := o.(RoomHandler); ok {
		h.OnRoomUserUpdate(e.RoomID, e.UpdateType, e.Users)
	}
}

// RoomOnlineUserCountUpdate is the periodic online participant count.
type RoomOnlineUserCountUpdate struct {
	RoomID string `json:"room_id"`
	Count  int    `json:"count"`
}

func (e RoomOnlineUserCountUpdate) Key() Key     { return Key{Scope: ScopeRoom, ID: e.RoomID} }
func (e RoomOnlineUserCountUpdate) Kind() string { return "room_online_user_count_update" }
func (e RoomOnlineUserCountUpdate) Deliver(o any) {
	if h, ok := o.(RoomHandler); ok {
		h.OnRoomOnlineUserCountUpdate(e.RoomID, e.Count)
	}
}

// RoomStreamUpdate reports remote streams being added or removed.
type RoomStreamUpdate struct {
	RoomID     string     `json:"room_id"`
	UpdateType UpdateType `json:"update_type"`
	Streams    []Stream   `json:"streams"`
}

func (e RoomStreamUpdate) Key() Key     { return Key{Scope: ScopeRoom, ID: e.RoomID} }
func (e RoomStreamUpdate) Kind() string { return "room_stream_update" }
func (e RoomStreamUpdate) Deliver(o any) {
	if h, ok := o.(RoomHandler); ok {
		h.OnRoomStreamUpdate(e.RoomID, e.UpdateType, e.Streams)
	}
}

// RoomStreamExtraInfoUpdate reports changed stream extra-info sidecars.
type RoomStreamExtraInfoUpdate struct {
	RoomID  string   `json:"room_id"`
	Streams []Stream `json:"streams"`
}

func (e RoomStreamExtraInfoUpdate) Key() Key     { return Key{Scope: ScopeRoom, ID: e.RoomID} }
func (e RoomStreamExtraInfoUpdate) Kind() string { return "room_stream_extra_info_update" }
func (e RoomStreamExtraInfoUpdate) Deliver(o any) {
	if h, ok := o.(RoomHandler); ok {
		h.OnRoomStreamExtraInfoUpdate(e.RoomID, e.Streams)
	}
}

// RoomExtraInfoUpdate reports changed room extra-info entries.
type RoomExtraInfoUpdate struct {
	RoomID string          `json:"room_id"`
	Infos  []RoomExtraInfo `json:"infos"`
}

func (e RoomExtraInfoUpdate) Key() Key     { return Key{Scope: ScopeRoom, ID: e.RoomID} }
func (e RoomExtraInfoUpdate) Kind() string { return "room_extra_info_update" }
func (e RoomExtraInfoUpdate) Deliver(o any) {
	if h, ok := o.(RoomHandler); ok {
		h.OnRoomExtraInfoUpdate(e.RoomID, e.Infos)
	}
}

// BroadcastMessageReceived carries room broadcast messages.
type BroadcastMessageReceived struct {
	RoomID   string             `json:"room_id"`
	Messages []BroadcastMessage `json:"messages"`
}

func (e BroadcastMessageReceived) Key() Key     { return Key{Scope: ScopeRoom, ID: e.RoomID} }
func (e BroadcastMessageReceived) Kind() string { return "broadcast_message" }
func (e BroadcastMessageReceived) Deliver(o any) {
	if h, ok := o.(RoomHandler); ok {
		h.OnIMRecvBroadcastMessage(e.RoomID, e.Messages)
	}
}

// BarrageMessageReceived carries room barrage messages.
type BarrageMessageReceived struct {
	RoomID   string           `json:"room_id"`
	Messages []BarrageMessage `json:"messages"`
}

func (e BarrageMessageReceived) Key() Key     { return Key{Scope: ScopeRoom, ID: e.RoomID} }
func (e BarrageMessageReceived) Kind() string { return "barrage_message" }
func (e BarrageMessageReceived) Deliver(o any) {
	if h, ok := o.(RoomHandler); ok {
		h.OnIMRecvBarrageMessage(e.RoomID, e.Messages)
	}
}

// CustomCommandReceived carries one custom command.
type CustomCommandReceived struct {
	RoomID   string `json:"room_id"`
	FromUser User   `json:"from_user"`
	Command  string `json:"command"`
}

func (e CustomCommandReceived) Key() Key     { return Key{Scope: ScopeRoom, ID: e.RoomID} }
func (e CustomCommandReceived) Kind() string { return "custom_command" }
func (e CustomCommandReceived) Deliver(o any) {
	if h, ok := o.(RoomHandler); ok {
		h.OnIMRecvCustomCommand(e.RoomID, e.FromUser, e.Command)
	}
}

// PublisherStateUpdate reports a publish state transition.
type PublisherStateUpdate struct {
	StreamID     string         `json:"stream_id"`
	State        PublisherState `json:"state"`
	ErrorCode    int            `json:"error_code"`
	ExtendedData Document       `json:"extended_data"`
}

func (e PublisherStateUpdate) Key() Key     { return Key{Scope: ScopePublisher, ID: e.StreamID} }
func (e PublisherStateUpdate) Kind() string { return "publisher_state_update" }
func (e PublisherStateUpdate) Deliver(o any) {
	if h, ok := o.(PublisherHandler); ok {
		h.OnPublisherStateUpdate(e.StreamID, e.State, e.ErrorCode, e.ExtendedData)
	}
}

// PublisherQualityUpdate is the periodic publish quality sample.
type PublisherQualityUpdate struct {
	StreamID string        `json:"stream_id"`
	Quality  QualitySample `json:"quality"`
}

func (e PublisherQualityUpdate) Key() Key     { return Key{Scope: ScopePublisher, ID: e.StreamID} }
func (e PublisherQualityUpdate) Kind() string { return "publisher_quality_update" }
func (e PublisherQualityUpdate) Deliver(o any) {
	if h, ok := o.(PublisherHandler); ok {
		h.OnPublisherQualityUpdate(e.StreamID, e.Quality)
	}
}

// PublisherCapturedAudioFirstFrame is the one-shot first captured audio frame.
type PublisherCapturedAudioFirstFrame struct {
	StreamID string `json:"stream_id"`
}

func (e PublisherCapturedAudioFirstFrame) Key() Key {
	return Key{Scope: ScopePublisher, ID: e.StreamID}
}
func (e PublisherCapturedAudioFirstFrame) Kind() string { return "publisher_captured_audio_first_frame" }
func (e PublisherCapturedAudioFirstFrame) Deliver(o any) {
	if h, ok := o.(PublisherHandler); ok {
		h.OnPublisherCapturedAudioFirstFrame()
	}
}

// PublisherCapturedVideoFirstFrame is the one-shot first captured video frame.
type PublisherCapturedVideoFirstFrame struct {
	StreamID string         `json:"stream_id"`
	Channel  PublishChannel `json:"channel"`
}

func (e PublisherCapturedVideoFirstFrame) Key() Key {
	return Key{Scope: ScopePublisher, ID: e.StreamID}
}
func (e PublisherCapturedVideoFirstFrame) Kind() string { return "publisher_captured_video_first_frame" }
func (e PublisherCapturedVideoFirstFrame) Deliver(o any) {
	if h, ok := o.(PublisherHandler); ok {
		h.OnPublisherCapturedVideoFirstFrame(e.Channel)
	}
}

// PublisherVideoSizeChanged reports a new capture resolution.
type PublisherVideoSizeChanged struct {
	StreamID string         `json:"stream_id"`
	Width    int            `json:"width"`
	Height   int            `json:"height"`
	Channel  PublishChannel `json:"channel"`
}

func (e PublisherVideoSizeChanged) Key() Key     { return Key{Scope: ScopePublisher, ID: e.StreamID} }
func (e PublisherVideoSizeChanged) Kind() string { return "publisher_video_size_changed" }
func (e PublisherVideoSizeChanged) Deliver(o any) {
	if h, ok := o.(PublisherHandler); ok {
		h.OnPublisherVideoSizeChanged(e.Width, e.Height, e.Channel)
	}
}

// PublisherRelayCDNStateUpdate lists every relay endpoint of a published stream.
type PublisherRelayCDNStateUpdate struct {
	StreamID string         `json:"stream_id"`
	Infos    []RelayCDNInfo `json:"infos"`
}

func (e PublisherRelayCDNStateUpdate) Key() Key {
	return Key{Scope: ScopePublisher, ID: e.StreamID}
}
func (e PublisherRelayCDNStateUpdate) Kind() string { return "publisher_relay_cdn_state_update" }
func (e PublisherRelayCDNStateUpdate) Deliver(o any) {
	if h, ok := o.(PublisherHandler); ok {
		h.OnPublisherRelayCDNStateUpdate(e.StreamID, e.Infos)
	}
}

// PlayerStateUpdate reports a play state transition.
type PlayerStateUpdate struct {
	StreamID     string      `json:"stream_id"`
	State        PlayerState `json:"state"`
	ErrorCode    int         `json:"error_code"`
	ExtendedData Document    `json:"extended_data"`
}

func (e PlayerStateUpdate) Key() Key     { return Key{Scope: ScopePlayer, ID: e.StreamID} }
func (e PlayerStateUpdate) Kind() string { return "player_state_update" }
func (e PlayerStateUpdate) Deliver(o any) {
	if h, ok := o.(PlayerHandler); ok {
		h.OnPlayerStateUpdate(e.StreamID, e.State, e.ErrorCode, e.ExtendedData)
	}
}

// PlayerQualityUpdate is the periodic play quality sample.
type PlayerQualityUpdate struct {
	StreamID string        `json:"stream_id"`
	Quality  QualitySample `json:"quality"`
}

func (e PlayerQualityUpdate) Key() Key     { return Key{Scope: ScopePlayer, ID: e.StreamID} }
func (e PlayerQualityUpdate) Kind() string { return "player_quality_update" }
func (e PlayerQualityUpdate) Deliver(o any) {
	if h, ok := o.(PlayerHandler); ok {
		h.OnPlayerQualityUpdate(e.StreamID, e.Quality)
	}
}

// PlayerMediaEventOccurred reports a stall or recovery on a playing stream.
type PlayerMediaEventOccurred struct {
	StreamID   string           `json:"stream_id"`
	MediaEvent PlayerMediaEvent `json:"media_event"`
}

func (e PlayerMediaEventOccurred) Key() Key     { return Key{Scope: ScopePlayer, ID: e.StreamID} }
func (e PlayerMediaEventOccurred) Kind() string { return "player_media_event" }
func (e PlayerMediaEventOccurred) Deliver(o any) {
	if h, ok := o.(PlayerHandler); ok {
		h.OnPlayerMediaEvent(e.StreamID, e.MediaEvent)
	}
}

// PlayerRecvAudioFirstFrame is the one-shot first received audio frame.
type PlayerRecvAudioFirstFrame struct {
	StreamID string `json:"stream_id"`
}

func (e PlayerRecvAudioFirstFrame) Key() Key     { return Key{Scope: ScopePlayer, ID: e.StreamID} }
func (e PlayerRecvAudioFirstFrame) Kind() string { return "player_recv_audio_first_frame" }
func (e PlayerRecvAudioFirstFrame) Deliver(o any) {
	if h, ok := o.(PlayerHandler); ok {
		h.OnPlayerRecvAudioFirstFrame(e.StreamID)
	}
}

// PlayerRecvVideoFirstFrame is the one-shot first received video frame.
type PlayerRecvVideoFirstFrame struct {
	StreamID string `json:"stream_id"`
}

func (e PlayerRecvVideoFirstFrame) Key() Key     { return Key{Scope: ScopePlayer, ID: e.StreamID} }
func (e PlayerRecvVideoFirstFrame) Kind() string { return "player_recv_video_first_frame" }
func (e PlayerRecvVideoFirstFrame) Deliver(o any) {
	if h, ok := o.(PlayerHandler); ok {
		h.OnPlayerRecvVideoFirstFrame(e.StreamID)
	}
}

// PlayerRenderVideoFirstFrame is the one-shot first rendered video frame.
type PlayerRenderVideoFirstFrame struct {
	StreamID string `json:"stream_id"`
}

func (e PlayerRenderVideoFirstFrame) Key() Key     { return Key{Scope: ScopePlayer, ID: e.StreamID} }
func (e PlayerRenderVideoFirstFrame) Kind() string { return "player_render_video_first_frame" }
func (e PlayerRenderVideoFirstFrame) Deliver(o any) {
	if h, ok := o.(PlayerHandler); ok {
		h.OnPlayerRenderVideoFirstFrame(e.StreamID)
	}
}

// PlayerVideoSizeChanged reports a new decoded resolution.
type PlayerVideoSizeChanged struct {
	StreamID string `json:"stream_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

func (e PlayerVideoSizeChanged) Key() Key     { return Key{Scope: ScopePlayer, ID: e.StreamID} }
func (e PlayerVideoSizeChanged) Kind() string { return "player_video_size_changed" }
func (e PlayerVideoSizeChanged) Deliver(o any) {
	if h, ok := o.(PlayerHandler); ok {
		h.OnPlayerVideoSizeChanged(e.StreamID, e.Width, e.Height)
	}
}

// PlayerRecvSEI carries one out-of-band data unit. Data is owned by the event.
type PlayerRecvSEI struct {
	StreamID string `json:"stream_id"`
	Data     []byte `json:"data"`
}

func (e PlayerRecvSEI) Key() Key     { return Key{Scope: ScopePlayer, ID: e.StreamID} }
func (e PlayerRecvSEI) Kind() string { return "player_recv_sei" }
func (e PlayerRecvSEI) Deliver(o any) {
	if h, ok := o.(PlayerHandler); ok {
		h.OnPlayerRecvSEI(e.StreamID, e.Data)
	}
}

// MixerRelayCDNStateUpdate lists every relay endpoint of a mix task.
type MixerRelayCDNStateUpdate struct {
	TaskID string         `json:"task_id"`
	Infos  []RelayCDNInfo `json:"infos"`
}

func (e MixerRelayCDNStateUpdate) Key() Key     { return Key{Scope: ScopeMixer, ID: e.TaskID} }
func (e MixerRelayCDNStateUpdate) Kind() string { return "mixer_relay_cdn_state_update" }
func (e MixerRelayCDNStateUpdate) Deliver(o any) {
	if h, ok := o.(MixerHandler); ok {
		h.OnMixerRelayCDNStateUpdate(e.TaskID, e.Infos)
	}
}

// MixerSoundLevelUpdate maps mixed sub-stream sound level IDs to levels.
type MixerSoundLevelUpdate struct {
	SoundLevels map[uint32]float32 `json:"sound_levels"`
}

func (e MixerSoundLevelUpdate) Key() Key     { return Key{Scope: ScopeMixer} }
func (e MixerSoundLevelUpdate) Kind() string { return "mixer_sound_level_update" }
func (e MixerSoundLevelUpdate) Deliver(o any) {
	if h, ok := o.(MixerHandler); ok {
		h.OnMixerSoundLevelUpdate(e.SoundLevels)
	}
}

// AudioDeviceStateChanged reports one audio device add or remove notification.
type AudioDeviceStateChanged struct {
	UpdateType UpdateType      `json:"update_type"`
	DeviceType AudioDeviceType `json:"device_type"`
	Info       DeviceInfo      `json:"info"`
}

func (e AudioDeviceStateChanged) Key() Key     { return Key{Scope: ScopeDevice, ID: e.Info.DeviceID} }
func (e AudioDeviceStateChanged) Kind() string { return "audio_device_state_changed" }
func (e AudioDeviceStateChanged) Deliver(o any) {
	if h, ok := o.(DeviceHandler); ok {
		h.OnAudioDeviceStateChanged(e.UpdateType, e.DeviceType, e.Info)
	}
}

// VideoDeviceStateChanged reports one video device add or remove notification.
type VideoDeviceStateChanged struct {
	UpdateType UpdateType `json:"update_type"`
	Info       DeviceInfo `json:"info"`
}

func (e VideoDeviceStateChanged) Key() Key     { return Key{Scope: ScopeDevice, ID: e.Info.DeviceID} }
func (e VideoDeviceStateChanged) Kind() string { return "video_device_state_changed" }
func (e VideoDeviceStateChanged) Deliver(o any) {
	if h, ok := o.(DeviceHandler); ok {
		h.OnVideoDeviceStateChanged(e.UpdateType, e.Info)
	}
}

// DeviceError reports a read/write fault on a local device.
type DeviceError struct {
	ErrorCode  int    `json:"error_code"`
	DeviceName string `json:"device_name"`
}

func (e DeviceError) Key() Key     { return Key{Scope: ScopeDevice, ID: e.DeviceName} }
func (e DeviceError) Kind() string { return "device_error" }
func (e DeviceError) Deliver(o any) {
	if h, ok := o.(DeviceHandler); ok {
		h.OnDeviceError(e.ErrorCode, e.DeviceName)
	}
}

// RemoteCameraStateUpdate reports a counterpart camera transition. It is
// ordered with the other events of the playing stream.
type RemoteCameraStateUpdate struct {
	StreamID string            `json:"stream_id"`
	State    RemoteDeviceState `json:"state"`
}

func (e RemoteCameraStateUpdate) Key() Key     { return Key{Scope: ScopePlayer, ID: e.StreamID} }
func (e RemoteCameraStateUpdate) Kind() string { return "remote_camera_state_update" }
func (e RemoteCameraStateUpdate) Deliver(o any) {
	if h, ok := o.(DeviceHandler); ok {
		h.OnRemoteCameraStateUpdate(e.StreamID, e.State)
	}
}

// RemoteMicStateUpdate reports a counterpart microphone transition.
type RemoteMicStateUpdate struct {
	StreamID string            `json:"stream_id"`
	State    RemoteDeviceState `json:"state"`
}

func (e RemoteMicStateUpdate) Key() Key     { return Key{Scope: ScopePlayer, ID: e.StreamID} }
func (e RemoteMicStateUpdate) Kind() string { return "remote_mic_state_update" }
func (e RemoteMicStateUpdate) Deliver(o any) {
	if h, ok := o.(DeviceHandler); ok {
		h.OnRemoteMicStateUpdate(e.StreamID, e.State)
	}
}

// CapturedSoundLevelUpdate is the periodic local sound level.
type CapturedSoundLevelUpdate struct {
	SoundLevel float32 `json:"sound_level"`
}

func (e CapturedSoundLevelUpdate) Key() Key     { return Key{Scope: ScopeSampler, ID: "captured_sound_level"} }
func (e CapturedSoundLevelUpdate) Kind() string { return "captured_sound_level_update" }
func (e CapturedSoundLevelUpdate) Deliver(o any) {
	if h, ok := o.(SoundLevelHandler); ok {
		h.OnCapturedSoundLevelUpdate(e.SoundLevel)
	}
}

// RemoteSoundLevelUpdate maps every playing stream to its sound level.
type RemoteSoundLevelUpdate struct {
	SoundLevels map[string]float32 `json:"sound_levels"`
}

func (e RemoteSoundLevelUpdate) Key() Key     { return Key{Scope: ScopeSampler, ID: "remote_sound_level"} }
func (e RemoteSoundLevelUpdate) Kind() string { return "remote_sound_level_update" }
func (e RemoteSoundLevelUpdate) Deliver(o any) {
	if h, ok := o.(SoundLevelHandler); ok {
		h.OnRemoteSoundLevelUpdate(e.SoundLevels)
	}
}

// CapturedAudioSpectrumUpdate is the periodic local spectrum.
type CapturedAudioSpectrumUpdate struct {
	Spectrum AudioSpectrum `json:"spectrum"`
}

func (e CapturedAudioSpectrumUpdate) Key() Key {
	return Key{Scope: ScopeSampler, ID: "captured_spectrum"}
}
func (e CapturedAudioSpectrumUpdate) Kind() string { return "captured_audio_spectrum_update" }
func (e CapturedAudioSpectrumUpdate) Deliver(o any) {
	if h, ok := o.(SoundLevelHandler); ok {
		h.OnCapturedAudioSpectrumUpdate(e.Spectrum)
	}
}

// RemoteAudioSpectrumUpdate maps every playing stream to its spectrum.
type RemoteAudioSpectrumUpdate struct {
	Spectrums map[string]AudioSpectrum `json:"spectrums"`
}

func (e RemoteAudioSpectrumUpdate) Key() Key {
	return Key{Scope: ScopeSampler, ID: "remote_spectrum"}
}
func (e RemoteAudioSpectrumUpdate) Kind() string { return "remote_audio_spectrum_update" }
func (e RemoteAudioSpectrumUpdate) Deliver(o any) {
	if h, ok := o.(SoundLevelHandler); ok {
		h.OnRemoteAudioSpectrumUpdate(e.Spectrums)
	}
}

// MediaPlayerStateUpdate reports a media player state transition.
type MediaPlayerStateUpdate struct {
	Player    arena.Handle     `json:"player"`
	State     MediaPlayerState `json:"state"`
	ErrorCode int              `json:"error_code"`
}

func (e MediaPlayerStateUpdate) Key() Key {
	return Key{Scope: ScopeMediaPlayer, ID: e.Player.String()}
}
func (e MediaPlayerStateUpdate) Kind() string { return "media_player_state_update" }
func (e MediaPlayerStateUpdate) Deliver(o any) {
	if h, ok := o.(MediaPlayerHandler); ok {
		h.OnMediaPlayerStateUpdate(e.Player, e.State, e.ErrorCode)
	}
}

// MediaPlayerNetworkEventOccurred reports media player buffering.
type MediaPlayerNetworkEventOccurred struct {
	Player       arena.Handle            `json:"player"`
	NetworkEvent MediaPlayerNetworkEvent `json:"network_event"`
}

func (e MediaPlayerNetworkEventOccurred) Key() Key {
	return Key{Scope: ScopeMediaPlayer, ID: e.Player.String()}
}
func (e MediaPlayerNetworkEventOccurred) Kind() string { return "media_player_network_event" }
func (e MediaPlayerNetworkEventOccurred) Deliver(o any) {
	if h, ok := o.(MediaPlayerHandler); ok {
		h.OnMediaPlayerNetworkEvent(e.Player, e.NetworkEvent)
	}
}

// MediaPlayerPlayingProgress reports media player progress.
type MediaPlayerPlayingProgress struct {
	Player      arena.Handle `json:"player"`
	Millisecond uint64       `json:"millisecond"`
}

func (e MediaPlayerPlayingProgress) Key() Key {
	return Key{Scope: ScopeMediaPlayer, ID: e.Player.String()}
}
func (e MediaPlayerPlayingProgress) Kind() string { return "media_player_playing_progress" }
func (e MediaPlayerPlayingProgress) Deliver(o any) {
	if h, ok := o.(MediaPlayerHandler); ok {
		h.OnMediaPlayerPlayingProgress(e.Player, e.Millisecond)
	}
}
