package event

import (
	"fmt"
	"time"
)

// RoomState is the membership/connectivity state of a local login.
type RoomState int

const (
	// RoomStateDisconnected is both the initial and the terminal state
	RoomStateDisconnected RoomState = iota
	// RoomStateConnecting is entered on a login request
	RoomStateConnecting
	// RoomStateConnected is entered once the signaling collaborator confirms the login
	RoomStateConnected
	// RoomStateReconnecting is entered on transport connectivity loss
	RoomStateReconnecting
)

// String returns the string representation of RoomState.
func (s RoomState) String() string {
	switch s {
	case RoomStateDisconnected:
		return "Disconnected"
	case RoomStateConnecting:
		return "Connecting"
	case RoomStateConnected:
		return "Connected"
	case RoomStateReconnecting:
		return "Reconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// PublisherState is the lifecycle state of one publish operation.
type PublisherState int

const (
	PublisherStateIdle PublisherState = iota
	PublisherStateRequesting
	PublisherStatePublishing
)

// String returns the string representation of PublisherState.
func (s PublisherState) String() string {
	switch s {
	case PublisherStateIdle:
		return "Idle"
	case PublisherStateRequesting:
		return "Requesting"
	case PublisherStatePublishing:
		return "Publishing"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// PlayerState is the lifecycle state of one play operation.
type PlayerState int

const (
	PlayerStateIdle PlayerState = iota
	PlayerStateRequesting
	PlayerStatePlaying
)

// String returns the string representation of PlayerState.
func (s PlayerState) String() string {
	switch s {
	case PlayerStateIdle:
		return "Idle"
	case PlayerStateRequesting:
		return "Requesting"
	case PlayerStatePlaying:
		return "Playing"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// EngineState reports whether the media engine is running.
type EngineState int

const (
	EngineStateStart EngineState = iota
	EngineStateStop
)

// String returns the string representation of EngineState.
func (s EngineState) String() string {
	if s == EngineStateStart {
		return "Start"
	}
	return "Stop"
}

// UpdateType marks a membership or device delta as an addition or a removal.
type UpdateType int

const (
	UpdateTypeAdd UpdateType = iota
	UpdateTypeDelete
)

// String returns the string representation of UpdateType.
func (u UpdateType) String() string {
	if u == UpdateTypeAdd {
		return "Add"
	}
	return "Delete"
}

// PublishChannel is an independent publish slot.
type PublishChannel int

const (
	PublishChannelMain PublishChannel = iota
	PublishChannelAux
)

// User identifies a participant.
type User struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// Stream describes a remote stream announced by the session.
type Stream struct {
	User      User   `json:"user"`
	StreamID  string `json:"stream_id"`
	ExtraInfo string `json:"extra_info"`
}

// RoomExtraInfo is one keyed room extra-info entry.
type RoomExtraInfo struct {
	Key        string `json:"key"`
	Value      string `json:"value"`
	UpdateUser User   `json:"update_user"`
	UpdateTime uint64 `json:"update_time"`
}

// BroadcastMessage is one room broadcast message.
type BroadcastMessage struct {
	Message   string `json:"message"`
	MessageID uint64 `json:"message_id"`
	SendTime  uint64 `json:"send_time"`
	FromUser  User   `json:"from_user"`
}

// BarrageMessage is one room barrage message.
type BarrageMessage struct {
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
	SendTime  uint64 `json:"send_time"`
	FromUser  User   `json:"from_user"`
}

// QualityLevel is the composite health value computed by the transport
// collaborator. It is passed through without interpretation.
type QualityLevel int

// QualitySample is one periodic quality measurement for a stream.
type QualitySample struct {
	StreamID       string        `json:"stream_id"`
	Timestamp      time.Time     `json:"timestamp"`
	VideoFPS       float64       `json:"video_fps"`
	VideoKBPS      float64       `json:"video_kbps"`
	AudioFPS       float64       `json:"audio_fps"`
	AudioKBPS      float64       `json:"audio_kbps"`
	RTT            time.Duration `json:"rtt"`
	PacketLossRate float64       `json:"packet_loss_rate"`
	Level          QualityLevel  `json:"level"`
}

// RelayCDNState is the forwarding state of one relay endpoint.
type RelayCDNState int

const (
	RelayCDNStateNoRelay RelayCDNState = iota
	RelayCDNStateRelayRequesting
	RelayCDNStateRelaying
)

// String returns the string representation of RelayCDNState.
func (s RelayCDNState) String() string {
	switch s {
	case RelayCDNStateNoRelay:
		return "NoRelay"
	case RelayCDNStateRelayRequesting:
		return "RelayRequesting"
	case RelayCDNStateRelaying:
		return "Relaying"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// RelayCDNInfo is the health of one relay endpoint.
type RelayCDNInfo struct {
	URL        string        `json:"url"`
	State      RelayCDNState `json:"state"`
	UpdateCode int           `json:"update_code"`
	StateTime  time.Time     `json:"state_time"`
}

// PlayerMediaEvent is a stall/recovery class notification for a playing stream.
type PlayerMediaEvent int

const (
	PlayerMediaEventAudioBreakOccur PlayerMediaEvent = iota
	PlayerMediaEventAudioBreakResume
	PlayerMediaEventVideoBreakOccur
	PlayerMediaEventVideoBreakResume
)

// AudioDeviceType distinguishes capture from render audio devices.
type AudioDeviceType int

const (
	AudioDeviceTypeInput AudioDeviceType = iota
	AudioDeviceTypeOutput
)

// DeviceInfo identifies a local device.
type DeviceInfo struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
}

// RemoteDeviceState is the inferred state of a counterpart's capture device.
type RemoteDeviceState int

const (
	RemoteDeviceStateOpen RemoteDeviceState = iota
	RemoteDeviceStateGenericError
	RemoteDeviceStateNoAuthorization
	RemoteDeviceStateZeroFPS
	RemoteDeviceStateInUseByOther
	RemoteDeviceStateUnplugged
	RemoteDeviceStateRebootRequired
	RemoteDeviceStateDisable
	RemoteDeviceStateMute
	RemoteDeviceStateInterruption
)

// String returns the string representation of RemoteDeviceState.
func (s RemoteDeviceState) String() string {
	switch s {
	case RemoteDeviceStateOpen:
		return "Open"
	case RemoteDeviceStateGenericError:
		return "GenericError"
	case RemoteDeviceStateNoAuthorization:
		return "NoAuthorization"
	case RemoteDeviceStateZeroFPS:
		return "ZeroFPS"
	case RemoteDeviceStateInUseByOther:
		return "InUseByOther"
	case RemoteDeviceStateUnplugged:
		return "Unplugged"
	case RemoteDeviceStateRebootRequired:
		return "RebootRequired"
	case RemoteDeviceStateDisable:
		return "Disable"
	case RemoteDeviceStateMute:
		return "Mute"
	case RemoteDeviceStateInterruption:
		return "Interruption"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// AudioSpectrum is one spectrum snapshot; bins are clamped to [0, MaxSpectrumValue].
type AudioSpectrum []float32

const (
	// MaxSoundLevel is the upper bound of every sound level value
	MaxSoundLevel float32 = 100
	// MaxSpectrumValue is the upper bound of every spectrum bin (2^30)
	MaxSpectrumValue float32 = 1 << 30
)

// ClampSoundLevel clamps v into [0, MaxSoundLevel]. NaN clamps to 0.
func ClampSoundLevel(v float32) float32 {
	if !(v > 0) {
		return 0
	}
	if v > MaxSoundLevel {
		return MaxSoundLevel
	}
	return v
}

// ClampSpectrum returns a copy of bins with every value clamped into
// [0, MaxSpectrumValue].
func ClampSpectrum(bins []float32) AudioSpectrum {
	out := make(AudioSpectrum, len(bins))
	for i, v := range bins {
		switch {
		case !(v > 0):
			out[i] = 0
		case v > MaxSpectrumValue:
			out[i] = MaxSpectrumValue
		default:
			out[i] = v
		}
	}
	return out
}

// MediaPlayerState is the state of a local media player instance.
type MediaPlayerState int

const (
	MediaPlayerStateNoPlay MediaPlayerState = iota
	MediaPlayerStatePlaying
	MediaPlayerStatePausing
	MediaPlayerStatePlayEnded
)

// MediaPlayerNetworkEvent is a buffering notification for network resources.
type MediaPlayerNetworkEvent int

const (
	MediaPlayerNetworkEventBufferBegin MediaPlayerNetworkEvent = iota
	MediaPlayerNetworkEventBufferEnded
)
