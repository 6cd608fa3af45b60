package webrtcbridge

import (
	"encoding/binary"
	"errors"
	"strings"
	"sync"

	"github.com/opd-ai/rtcevent/clock"
	"github.com/opd-ai/rtcevent/event"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
)

// Codes reported for transport-level failures.
const (
	// CodeTransportDisconnected accompanies a recoverable connectivity loss
	CodeTransportDisconnected = 1002001

	// CodeTransportFailed accompanies an unrecoverable transport failure
	CodeTransportFailed = 1002002
)

// ErrAlreadyAttached is returned when attaching a second peer connection.
var ErrAlreadyAttached = errors.New("peer connection already attached")

// SessionSignals receives connectivity reports for one room.
type SessionSignals interface {
	SignalConnected(roomID string) error
	SignalLost(roomID string, errorCode int) error
	SignalFatal(roomID string, errorCode int) error
}

// StreamSignals receives publish and play progress reports.
type StreamSignals interface {
	PublishEstablished(streamID string) error
	PublishRetrying(streamID string, errorCode int) error
	PlayEstablished(streamID string) error
	PlayRetrying(streamID string, errorCode int) error
	ReceivedAudioFrame(streamID string) error
	ReceivedVideoFrame(streamID string, width, height int) error
}

// AudioMeter measures encoded remote audio.
type AudioMeter interface {
	Observe(streamID string, payload []byte) error
	Forget(streamID string)
}

// Options configures a Bridge.
type Options struct {
	// RoomID is the room the peer connection carries
	RoomID string
	// Meter, when set, receives the payload of every remote Opus packet
	Meter AudioMeter
	// TimeProvider drives quality windows; nil uses the real clock
	TimeProvider clock.TimeProvider
}

type statsKey struct {
	streamID string
	audio    bool
}

type videoSize struct {
	width, height int
}

// Bridge translates one peer connection into collaborator reports.
type Bridge struct {
	roomID   string
	sessions SessionSignals
	streams  StreamSignals
	meter    AudioMeter
	clock    clock.TimeProvider

	mu          sync.Mutex
	pc          *webrtc.PeerConnection
	state       webrtc.PeerConnectionState
	published   map[string]bool
	established map[string]bool
	sizes       map[string]videoSize
	incoming    map[statsKey]*streamStats
	outgoing    map[statsKey]*streamStats

	readers conc.WaitGroup
}

// New creates a bridge reporting to sessions and streams.
func New(sessions SessionSignals, streams StreamSignals, opts Options) *Bridge {
	return &Bridge{
		roomID:      opts.RoomID,
		sessions:    sessions,
		streams:     streams,
		meter:       opts.Meter,
		clock:       clock.Resolve(opts.TimeProvider),
		published:   make(map[string]bool),
		established: make(map[string]bool),
		sizes:       make(map[string]videoSize),
		incoming:    make(map[statsKey]*streamStats),
		outgoing:    make(map[statsKey]*streamStats),
	}
}

// Attach installs the bridge's callbacks on pc. Remote tracks are read on
// their own goroutines until the track ends.
func (b *Bridge) Attach(pc *webrtc.PeerConnection) error {
	b.mu.Lock()
	if b.pc != nil {
		b.mu.Unlock()
		return ErrAlreadyAttached
	}
	b.pc = pc
	b.mu.Unlock()

	pc.OnConnectionStateChange(b.HandleConnectionState)
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		logrus.WithFields(logrus.Fields{
			"function":  "Bridge.OnTrack",
			"room_id":   b.roomID,
			"stream_id": track.StreamID(),
			"kind":      track.Kind().String(),
			"codec":     track.Codec().MimeType,
		}).Info("Remote track received")
		b.readers.Go(func() { b.readTrack(track) })
	})
	return nil
}

func (b *Bridge) readTrack(track *webrtc.TrackRemote) {
	streamID := track.StreamID()
	mimeType := track.Codec().MimeType
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":  "Bridge.readTrack",
				"stream_id": streamID,
				"error":     err.Error(),
			}).Debug("Remote track ended")
			return
		}
		b.ObserveIncoming(streamID, mimeType, pkt)
	}
}

// Close closes the attached peer connection and waits for the track readers.
func (b *Bridge) Close() error {
	b.mu.Lock()
	pc := b.pc
	b.mu.Unlock()

	var err error
	if pc != nil {
		err = pc.Close()
	}
	b.readers.Wait()
	return err
}

// AddPublishedStream marks streamID as carried by this connection, so
// connectivity changes are reported for it.
func (b *Bridge) AddPublishedStream(streamID string) {
	b.mu.Lock()
	b.published[streamID] = true
	connected := b.state == webrtc.PeerConnectionStateConnected
	b.mu.Unlock()

	if connected {
		b.report("PublishEstablished", streamID, b.streams.PublishEstablished(streamID))
	}
}

// RemovePublishedStream stops tracking streamID.
func (b *Bridge) RemovePublishedStream(streamID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.published, streamID)
	delete(b.outgoing, statsKey{streamID, true})
	delete(b.outgoing, statsKey{streamID, false})
}

// Forget drops every record of a remote stream.
func (b *Bridge) Forget(streamID string) {
	b.mu.Lock()
	delete(b.established, streamID)
	delete(b.sizes, streamID)
	delete(b.incoming, statsKey{streamID, true})
	delete(b.incoming, statsKey{streamID, false})
	b.mu.Unlock()

	if b.meter != nil {
		b.meter.Forget(streamID)
	}
}

// HandleConnectionState maps a peer connection state onto session and
// stream reports. Repeated states are ignored.
func (b *Bridge) HandleConnectionState(state webrtc.PeerConnectionState) {
	b.mu.Lock()
	if state == b.state {
		b.mu.Unlock()
		return
	}
	b.state = state
	published := make([]string, 0, len(b.published))
	for id := range b.published {
		published = append(published, id)
	}
	var playing []string
	if state == webrtc.PeerConnectionStateDisconnected {
		for id := range b.established {
			playing = append(playing, id)
		}
		// the next packet of each stream re-establishes it
		b.established = make(map[string]bool)
	}
	b.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Bridge.HandleConnectionState",
		"room_id":  b.roomID,
		"state":    state.String(),
	}).Info("Peer connection state changed")

	switch state {
	case webrtc.PeerConnectionStateConnected:
		b.report("SignalConnected", b.roomID, b.sessions.SignalConnected(b.roomID))
		for _, id := range published {
			b.report("PublishEstablished", id, b.streams.PublishEstablished(id))
		}
	case webrtc.PeerConnectionStateDisconnected:
		b.report("SignalLost", b.roomID, b.sessions.SignalLost(b.roomID, CodeTransportDisconnected))
		for _, id := range published {
			b.report("PublishRetrying", id, b.streams.PublishRetrying(id, CodeTransportDisconnected))
		}
		for _, id := range playing {
			b.report("PlayRetrying", id, b.streams.PlayRetrying(id, CodeTransportDisconnected))
		}
	case webrtc.PeerConnectionStateFailed:
		// session termination cancels the room's instances
		b.report("SignalFatal", b.roomID, b.sessions.SignalFatal(b.roomID, CodeTransportFailed))
	}
}

// ObserveIncoming accounts one remote RTP packet of streamID.
func (b *Bridge) ObserveIncoming(streamID, mimeType string, pkt *rtp.Packet) {
	audio := isAudio(mimeType)

	b.mu.Lock()
	stats := b.statsLocked(b.incoming, streamID, audio)
	first := !b.established[streamID]
	b.established[streamID] = true
	var size videoSize
	var sizeKnown bool
	if !audio && strings.EqualFold(mimeType, webrtc.MimeTypeVP8) {
		if w, h, ok := vp8KeyFrameSize(pkt.Payload); ok {
			b.sizes[streamID] = videoSize{w, h}
		}
	}
	size, sizeKnown = b.sizes[streamID]
	b.mu.Unlock()

	stats.observe(pkt)

	if first {
		b.report("PlayEstablished", streamID, b.streams.PlayEstablished(streamID))
	}
	if audio {
		b.report("ReceivedAudioFrame", streamID, b.streams.ReceivedAudioFrame(streamID))
		if b.meter != nil && strings.EqualFold(mimeType, webrtc.MimeTypeOpus) && len(pkt.Payload) > 0 {
			b.report("Meter.Observe", streamID, b.meter.Observe(streamID, pkt.Payload))
		}
		return
	}
	if pkt.Marker && sizeKnown {
		b.report("ReceivedVideoFrame", streamID, b.streams.ReceivedVideoFrame(streamID, size.width, size.height))
	}
}

// ObserveOutgoing accounts one local RTP packet sent for streamID.
func (b *Bridge) ObserveOutgoing(streamID, mimeType string, pkt *rtp.Packet) {
	b.mu.Lock()
	stats := b.statsLocked(b.outgoing, streamID, isAudio(mimeType))
	b.mu.Unlock()
	stats.observe(pkt)
}

func (b *Bridge) statsLocked(m map[statsKey]*streamStats, streamID string, audio bool) *streamStats {
	key := statsKey{streamID, audio}
	s, ok := m[key]
	if !ok {
		s = newStreamStats(audio, b.clock.Now())
		m[key] = s
	}
	return s
}

// PublishQuality returns the quality of the packets sent for streamID
// since the previous call.
func (b *Bridge) PublishQuality(streamID string) (event.QualitySample, bool) {
	return b.quality(b.outgoing, streamID)
}

// PlayQuality returns the quality of the packets received for streamID
// since the previous call.
func (b *Bridge) PlayQuality(streamID string) (event.QualitySample, bool) {
	return b.quality(b.incoming, streamID)
}

func (b *Bridge) quality(m map[statsKey]*streamStats, streamID string) (event.QualitySample, bool) {
	b.mu.Lock()
	audio := m[statsKey{streamID, true}]
	video := m[statsKey{streamID, false}]
	b.mu.Unlock()

	now := b.clock.Now()
	var a, v event.QualitySample
	var hasAudio, hasVideo bool
	if audio != nil {
		a, hasAudio = audio.sample(streamID, now)
	}
	if video != nil {
		v, hasVideo = video.sample(streamID, now)
	}
	switch {
	case hasAudio && hasVideo:
		return merge(a, v), true
	case hasAudio:
		return a, true
	case hasVideo:
		return v, true
	}
	return event.QualitySample{}, false
}

func (b *Bridge) report(call, id string, err error) {
	if err == nil {
		return
	}
	logrus.WithFields(logrus.Fields{
		"function": "Bridge." + call,
		"room_id":  b.roomID,
		"id":       id,
		"error":    err.Error(),
	}).Debug("Collaborator report rejected")
}

func isAudio(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(mimeType), "audio/")
}

// vp8KeyFrameSize extracts the frame size from the first packet of a VP8
// key frame.
func vp8KeyFrameSize(payload []byte) (width, height int, ok bool) {
	var pkt codecs.VP8Packet
	frame, err := pkt.Unmarshal(payload)
	if err != nil || pkt.S != 1 || pkt.PID != 0 {
		return 0, 0, false
	}
	if len(frame) < 10 || frame[0]&0x01 != 0 {
		return 0, 0, false
	}
	if frame[3] != 0x9d || frame[4] != 0x01 || frame[5] != 0x2a {
		return 0, 0, false
	}
	width = int(binary.LittleEndian.Uint16(frame[6:8]) & 0x3fff)
	height = int(binary.LittleEndian.Uint16(frame[8:10]) & 0x3fff)
	return width, height, true
}
