// Package relay passes raw media frames from the media collaborator to
// registered handlers.
//
// Delivery is a synchronous pass-through on the caller's thread. Handler
// tables are copy-on-write snapshots, so no lock shared with the control
// domain is taken on the delivery path and a slow handler stalls only the
// media thread that called it. Buffers handed to a handler are valid only
// for the duration of the call; handlers that need a frame afterwards copy
// it, for example through a Mailbox.
package relay

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/rtcevent/arena"
	"github.com/opd-ai/rtcevent/event"
	"github.com/sirupsen/logrus"
)

// AudioDataMask selects which AudioDataHandler callbacks are delivered.
type AudioDataMask uint32

const (
	AudioDataCaptured AudioDataMask = 1 << iota
	AudioDataPlayback
	AudioDataMixed
	AudioDataPlayer
)

// RemoteVideoMode selects how frames of a remote stream are relayed. Raw
// and encoded delivery are mutually exclusive for a stream.
type RemoteVideoMode int

const (
	RemoteVideoNone RemoteVideoMode = iota
	RemoteVideoRaw
	RemoteVideoEncoded
)

// String returns the string representation of RemoteVideoMode.
func (m RemoteVideoMode) String() string {
	switch m {
	case RemoteVideoNone:
		return "none"
	case RemoteVideoRaw:
		return "raw"
	case RemoteVideoEncoded:
		return "encoded"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// Stats counts relayed frames.
type Stats struct {
	VideoFrames uint64
	AudioFrames uint64
	Skipped     uint64
}

// Relay fans media frames out to handlers.
type Relay struct {
	nextID atomic.Uint64

	captures  subscribers[CustomVideoCaptureHandler]
	renderers subscribers[CustomVideoRenderHandler]
	audio     subscribers[AudioDataHandler]
	process   subscribers[CustomAudioProcessHandler]
	mixing    subscribers[AudioMixingHandler]
	players   subscribers[MediaPlayerFrameHandler]

	audioMask atomic.Uint32

	// captureMu orders capture start/stop notifications with the replay
	// done for a new capture handler
	captureMu sync.Mutex
	capturing [2]atomic.Bool

	modeMu      sync.Mutex
	defaultMode atomic.Int32
	modes       atomic.Pointer[map[string]RemoteVideoMode]

	videoFrames atomic.Uint64
	audioFrames atomic.Uint64
	skipped     atomic.Uint64
}

// New creates a relay. Remote video is relayed raw unless configured
// otherwise; no audio flavour is armed.
func New() *Relay {
	r := &Relay{}
	r.defaultMode.Store(int32(RemoteVideoRaw))
	modes := make(map[string]RemoteVideoMode)
	r.modes.Store(&modes)
	return r
}

func (r *Relay) id() Subscription {
	return Subscription(r.nextID.Add(1))
}

// SubscribeCapture registers a capture start/stop handler. Channels already
// capturing are reported to it immediately, exactly once.
func (r *Relay) SubscribeCapture(h CustomVideoCaptureHandler) (Subscription, error) {
	if h == nil {
		return 0, ErrNilHandler
	}
	r.captureMu.Lock()
	defer r.captureMu.Unlock()

	id := r.id()
	r.captures.add(id, h)
	for ch := range r.capturing {
		if r.capturing[ch].Load() {
			h.OnStart(event.PublishChannel(ch))
		}
	}
	return id, nil
}

// SubscribeRender registers a video render handler.
func (r *Relay) SubscribeRender(h CustomVideoRenderHandler) (Subscription, error) {
	if h == nil {
		return 0, ErrNilHandler
	}
	id := r.id()
	r.renderers.add(id, h)
	return id, nil
}

// SubscribeAudio registers a read-only PCM handler.
func (r *Relay) SubscribeAudio(h AudioDataHandler) (Subscription, error) {
	if h == nil {
		return 0, ErrNilHandler
	}
	id := r.id()
	r.audio.add(id, h)
	return id, nil
}

// SubscribeAudioProcess registers an in-place PCM processing handler.
func (r *Relay) SubscribeAudioProcess(h CustomAudioProcessHandler) (Subscription, error) {
	if h == nil {
		return 0, ErrNilHandler
	}
	id := r.id()
	r.process.add(id, h)
	return id, nil
}

// SubscribeAudioMixing registers an audio mixing source.
func (r *Relay) SubscribeAudioMixing(h AudioMixingHandler) (Subscription, error) {
	if h == nil {
		return 0, ErrNilHandler
	}
	id := r.id()
	r.mixing.add(id, h)
	return id, nil
}

// SubscribeMediaPlayer registers a media player frame handler.
func (r *Relay) SubscribeMediaPlayer(h MediaPlayerFrameHandler) (Subscription, error) {
	if h == nil {
		return 0, ErrNilHandler
	}
	id := r.id()
	r.players.add(id, h)
	return id, nil
}

// Unsubscribe removes a registration of any kind. A delivery already in
// progress on another thread may still reach the handler once.
func (r *Relay) Unsubscribe(id Subscription) error {
	switch {
	case r.captures.remove(id),
		r.renderers.remove(id),
		r.audio.remove(id),
		r.process.remove(id),
		r.mixing.remove(id),
		r.players.remove(id):
		return nil
	}
	return fmt.Errorf("%w: %d", ErrSubscriptionNotFound, id)
}

// EnableAudioData selects the audio flavours delivered to AudioDataHandlers.
func (r *Relay) EnableAudioData(mask AudioDataMask) {
	r.audioMask.Store(uint32(mask))

	logrus.WithFields(logrus.Fields{
		"function": "EnableAudioData",
		"mask":     fmt.Sprintf("%04b", mask),
	}).Debug("Audio data mask updated")
}

// AudioDataMask returns the armed audio flavours.
func (r *Relay) AudioDataMask() AudioDataMask {
	return AudioDataMask(r.audioMask.Load())
}

// SetDefaultRemoteVideoMode sets the mode of streams without an explicit mode.
func (r *Relay) SetDefaultRemoteVideoMode(mode RemoteVideoMode) {
	r.defaultMode.Store(int32(mode))
}

// SetRemoteVideoMode sets how frames of streamID are relayed.
func (r *Relay) SetRemoteVideoMode(streamID string, mode RemoteVideoMode) {
	r.modeMu.Lock()
	defer r.modeMu.Unlock()

	cur := *r.modes.Load()
	next := make(map[string]RemoteVideoMode, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[streamID] = mode
	r.modes.Store(&next)
}

// ClearRemoteVideoMode reverts streamID to the default mode.
func (r *Relay) ClearRemoteVideoMode(streamID string) {
	r.modeMu.Lock()
	defer r.modeMu.Unlock()

	cur := *r.modes.Load()
	if _, ok := cur[streamID]; !ok {
		return
	}
	next := make(map[string]RemoteVideoMode, len(cur))
	for k, v := range cur {
		if k != streamID {
			next[k] = v
		}
	}
	r.modes.Store(&next)
}

// RemoteVideoMode returns the effective mode of streamID.
func (r *Relay) RemoteVideoMode(streamID string) RemoteVideoMode {
	if mode, ok := (*r.modes.Load())[streamID]; ok {
		return mode
	}
	return RemoteVideoMode(r.defaultMode.Load())
}

// StartCapture marks channel as capturing and notifies capture handlers.
func (r *Relay) StartCapture(channel event.PublishChannel) {
	if !validChannel(channel) {
		return
	}
	r.captureMu.Lock()
	defer r.captureMu.Unlock()

	if r.capturing[channel].Swap(true) {
		return
	}
	logrus.WithFields(logrus.Fields{
		"function": "StartCapture",
		"channel":  channel,
	}).Info("Capture started")
	for _, e := range r.captures.snapshot() {
		e.handler.OnStart(channel)
	}
}

// StopCapture marks channel as not capturing and notifies capture handlers.
func (r *Relay) StopCapture(channel event.PublishChannel) {
	if !validChannel(channel) {
		return
	}
	r.captureMu.Lock()
	defer r.captureMu.Unlock()

	if !r.capturing[channel].Swap(false) {
		return
	}
	logrus.WithFields(logrus.Fields{
		"function": "StopCapture",
		"channel":  channel,
	}).Info("Capture stopped")
	for _, e := range r.captures.snapshot() {
		e.handler.OnStop(channel)
	}
}

// Capturing reports whether channel is capturing.
func (r *Relay) Capturing(channel event.PublishChannel) bool {
	return validChannel(channel) && r.capturing[channel].Load()
}

func validChannel(channel event.PublishChannel) bool {
	return channel == event.PublishChannelMain || channel == event.PublishChannelAux
}

// CapturedVideoFrame relays a captured raw frame of channel. Frames of a
// channel that is not capturing are skipped.
func (r *Relay) CapturedVideoFrame(data [][]byte, param VideoFrameParam, flip FlipMode, channel event.PublishChannel) bool {
	if !r.Capturing(channel) {
		r.skipped.Add(1)
		return false
	}
	for _, e := range r.renderers.snapshot() {
		e.handler.OnCapturedVideoFrameRawData(data, param, flip, channel)
	}
	r.videoFrames.Add(1)
	return true
}

// RemoteVideoFrame relays a decoded frame of streamID if the stream is in
// raw mode.
func (r *Relay) RemoteVideoFrame(data [][]byte, param VideoFrameParam, streamID string) bool {
	if r.RemoteVideoMode(streamID) != RemoteVideoRaw {
		r.skipped.Add(1)
		return false
	}
	for _, e := range r.renderers.snapshot() {
		e.handler.OnRemoteVideoFrameRawData(data, param, streamID)
	}
	r.videoFrames.Add(1)
	return true
}

// RemoteEncodedVideoFrame relays an encoded frame of streamID if the stream
// is in encoded mode.
func (r *Relay) RemoteEncodedVideoFrame(data []byte, param EncodedFrameParam, referenceTimeMillis uint64, streamID string) bool {
	if r.RemoteVideoMode(streamID) != RemoteVideoEncoded {
		r.skipped.Add(1)
		return false
	}
	for _, e := range r.renderers.snapshot() {
		e.handler.OnRemoteVideoFrameEncodedData(data, param, referenceTimeMillis, streamID)
	}
	r.videoFrames.Add(1)
	return true
}

func (r *Relay) audioArmed(flag AudioDataMask) bool {
	if AudioDataMask(r.audioMask.Load())&flag == 0 {
		r.skipped.Add(1)
		return false
	}
	r.audioFrames.Add(1)
	return true
}

// CapturedAudio relays captured PCM when AudioDataCaptured is armed.
func (r *Relay) CapturedAudio(data []byte, param AudioFrameParam) bool {
	if !r.audioArmed(AudioDataCaptured) {
		return false
	}
	for _, e := range r.audio.snapshot() {
		e.handler.OnCapturedAudioData(data, param)
	}
	return true
}

// PlaybackAudio relays the PCM about to be played out when AudioDataPlayback is armed.
func (r *Relay) PlaybackAudio(data []byte, param AudioFrameParam) bool {
	if !r.audioArmed(AudioDataPlayback) {
		return false
	}
	for _, e := range r.audio.snapshot() {
		e.handler.OnPlaybackAudioData(data, param)
	}
	return true
}

// MixedAudio relays captured and remote PCM mixed together when AudioDataMixed is armed.
func (r *Relay) MixedAudio(data []byte, param AudioFrameParam) bool {
	if !r.audioArmed(AudioDataMixed) {
		return false
	}
	for _, e := range r.audio.snapshot() {
		e.handler.OnMixedAudioData(data, param)
	}
	return true
}

// PlayerAudio relays decoded PCM of one remote stream when AudioDataPlayer is armed.
func (r *Relay) PlayerAudio(data []byte, param AudioFrameParam, streamID string) bool {
	if !r.audioArmed(AudioDataPlayer) {
		return false
	}
	for _, e := range r.audio.snapshot() {
		e.handler.OnPlayerAudioData(data, param, streamID)
	}
	return true
}

// ProcessCapturedAudio lets processing handlers modify captured PCM in
// place, in registration order.
func (r *Relay) ProcessCapturedAudio(data []byte, param *AudioFrameParam) {
	for _, e := range r.process.snapshot() {
		e.handler.OnProcessCapturedAudioData(data, param)
	}
}

// ProcessRemoteAudio lets processing handlers modify PCM of streamID in place.
func (r *Relay) ProcessRemoteAudio(data []byte, param *AudioFrameParam, streamID string) {
	for _, e := range r.process.snapshot() {
		e.handler.OnProcessRemoteAudioData(data, param, streamID)
	}
}

// CopyAudioMixingData asks the mixing handlers, in registration order, for
// PCM to mix. It stops at the first handler that writes data and reports
// whether any did.
func (r *Relay) CopyAudioMixingData(data *AudioMixingData) bool {
	for _, e := range r.mixing.snapshot() {
		data.Length = 0
		e.handler.OnAudioMixingCopyData(data)
		if data.Length > len(data.Data) {
			data.Length = len(data.Data)
		}
		if data.Length > 0 {
			return true
		}
	}
	return false
}

// MediaPlayerVideoFrame relays a decoded video frame of a media player.
func (r *Relay) MediaPlayerVideoFrame(player arena.Handle, data [][]byte, param VideoFrameParam) {
	for _, e := range r.players.snapshot() {
		e.handler.OnMediaPlayerVideoFrame(player, data, param)
	}
	r.videoFrames.Add(1)
}

// MediaPlayerAudioFrame relays a decoded audio frame of a media player.
func (r *Relay) MediaPlayerAudioFrame(player arena.Handle, data []byte, param AudioFrameParam) {
	for _, e := range r.players.snapshot() {
		e.handler.OnMediaPlayerAudioFrame(player, data, param)
	}
	r.audioFrames.Add(1)
}

// Stats returns frame counters.
func (r *Relay) Stats() Stats {
	return Stats{
		VideoFrames: r.videoFrames.Load(),
		AudioFrames: r.audioFrames.Load(),
		Skipped:     r.skipped.Load(),
	}
}

// Subscribers returns the number of registered handlers of every kind.
func (r *Relay) Subscribers() int {
	return r.captures.len() + r.renderers.len() + r.audio.len() +
		r.process.len() + r.mixing.len() + r.players.len()
}
