package relay

import (
	"github.com/opd-ai/rtcevent/arena"
	"github.com/opd-ai/rtcevent/event"
)

// VideoFrameFormat is the pixel layout of a raw video frame.
type VideoFrameFormat int

const (
	VideoFrameFormatUnknown VideoFrameFormat = iota
	VideoFrameFormatI420
	VideoFrameFormatNV12
	VideoFrameFormatBGRA32
	VideoFrameFormatRGBA32
)

// VideoEncodedFormat is the codec of an encoded video frame.
type VideoEncodedFormat int

const (
	VideoEncodedFormatAVCC VideoEncodedFormat = iota
	VideoEncodedFormatAnnexB
	VideoEncodedFormatVP8
	VideoEncodedFormatH265
)

// FlipMode is the mirroring applied to a captured frame.
type FlipMode int

const (
	FlipNone FlipMode = iota
	FlipX
	FlipY
	FlipXY
)

// VideoFrameParam describes the planes of a raw video frame.
type VideoFrameParam struct {
	Format   VideoFrameFormat
	Strides  [4]int
	Width    int
	Height   int
	Rotation int
}

// EncodedFrameParam describes one encoded video frame.
type EncodedFrameParam struct {
	Format     VideoEncodedFormat
	IsKeyFrame bool
	Width      int
	Height     int
	Rotation   int
}

// AudioFrameParam describes interleaved 16-bit PCM audio.
type AudioFrameParam struct {
	SampleRate int
	Channels   int
}

// AudioMixingData is filled by an AudioMixingHandler with PCM to mix into
// the published stream. Data is owned by the caller; handlers write at most
// len(Data) bytes and set Length to the number written.
type AudioMixingData struct {
	Data   []byte
	Length int
	Param  AudioFrameParam
	SEI    []byte
}

// CustomVideoCaptureHandler is told when a publish channel starts or stops
// capturing, so an external capturer can feed frames only while needed.
// Calls are serialized per relay and must not start or stop capture.
type CustomVideoCaptureHandler interface {
	OnStart(channel event.PublishChannel)
	OnStop(channel event.PublishChannel)
}

// CustomVideoRenderHandler receives video frames for custom rendering.
// Plane buffers are valid only for the duration of the call.
type CustomVideoRenderHandler interface {
	OnCapturedVideoFrameRawData(data [][]byte, param VideoFrameParam, flip FlipMode, channel event.PublishChannel)
	OnRemoteVideoFrameRawData(data [][]byte, param VideoFrameParam, streamID string)
	OnRemoteVideoFrameEncodedData(data []byte, param EncodedFrameParam, referenceTimeMillis uint64, streamID string)
}

// AudioDataHandler receives read-only PCM. Which methods are called is
// selected by the relay's AudioDataMask.
type AudioDataHandler interface {
	OnCapturedAudioData(data []byte, param AudioFrameParam)
	OnPlaybackAudioData(data []byte, param AudioFrameParam)
	OnMixedAudioData(data []byte, param AudioFrameParam)
	OnPlayerAudioData(data []byte, param AudioFrameParam, streamID string)
}

// CustomAudioProcessHandler may modify PCM in place before it is encoded
// (captured) or played out (remote).
type CustomAudioProcessHandler interface {
	OnProcessCapturedAudioData(data []byte, param *AudioFrameParam)
	OnProcessRemoteAudioData(data []byte, param *AudioFrameParam, streamID string)
}

// AudioMixingHandler supplies PCM to be mixed into the published stream.
type AudioMixingHandler interface {
	OnAudioMixingCopyData(data *AudioMixingData)
}

// MediaPlayerFrameHandler receives decoded frames of local media players.
type MediaPlayerFrameHandler interface {
	OnMediaPlayerVideoFrame(player arena.Handle, data [][]byte, param VideoFrameParam)
	OnMediaPlayerAudioFrame(player arena.Handle, data []byte, param AudioFrameParam)
}

// NopVideoRenderHandler can be embedded to implement only part of CustomVideoRenderHandler.
type NopVideoRenderHandler struct{}

func (NopVideoRenderHandler) OnCapturedVideoFrameRawData([][]byte, VideoFrameParam, FlipMode, event.PublishChannel) {
}
func (NopVideoRenderHandler) OnRemoteVideoFrameRawData([][]byte, VideoFrameParam, string) {}
func (NopVideoRenderHandler) OnRemoteVideoFrameEncodedData([]byte, EncodedFrameParam, uint64, string) {
}

// NopAudioDataHandler can be embedded to implement only part of AudioDataHandler.
type NopAudioDataHandler struct{}

func (NopAudioDataHandler) OnCapturedAudioData([]byte, AudioFrameParam)       {}
func (NopAudioDataHandler) OnPlaybackAudioData([]byte, AudioFrameParam)       {}
func (NopAudioDataHandler) OnMixedAudioData([]byte, AudioFrameParam)          {}
func (NopAudioDataHandler) OnPlayerAudioData([]byte, AudioFrameParam, string) {}
