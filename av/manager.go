package av

import (
	"fmt"
	"sync"

	"github.com/opd-ai/rtcevent/arena"
	"github.com/opd-ai/rtcevent/event"
	"github.com/opd-ai/rtcevent/limits"
	"github.com/opd-ai/rtcevent/registry"
	"github.com/sirupsen/logrus"
)

// CaptureController starts and stops the capture side of a publish channel.
// The media frame relay implements it.
type CaptureController interface {
	StartCapture(channel event.PublishChannel)
	StopCapture(channel event.PublishChannel)
}

type captureAction struct {
	channel event.PublishChannel
	start   bool
}

// Manager owns every publish and play state machine.
//
// Structural changes (start, supersede, cancel, release) serialize on the
// manager mutex; transitions of one instance serialize on the instance
// mutex. Every event is published while the instance mutex is held, so the
// order observers see equals the transition order.
type Manager struct {
	mu            sync.Mutex
	reg           *registry.Registry
	sink          event.Sink
	capture       CaptureController
	live          int
	engineRunning bool
}

// NewManager creates a manager recording instances in reg and emitting to sink.
func NewManager(reg *registry.Registry, sink event.Sink) *Manager {
	logrus.WithFields(logrus.Fields{
		"function": "av.NewManager",
	}).Debug("Creating publish/play manager")

	return &Manager{reg: reg, sink: sink}
}

// SetCaptureController installs the component notified when a channel starts
// or stops capturing.
func (m *Manager) SetCaptureController(c CaptureController) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capture = c
}

// StartPublishing creates a publisher for streamID on channel within roomID.
//
// A live publisher with the same stream ID or on the same channel is
// superseded: it moves to Idle carrying event.CodeSuperseded before the new
// publisher reports Requesting.
//
// Parameters:
//   - roomID: The logged-in room the stream belongs to
//   - streamID: The stream to publish
//   - channel: The publish channel to use
//
// Returns:
//   - error: ErrNoSession, ErrInvalidChannel or an identifier validation error
func (m *Manager) StartPublishing(roomID, streamID string, channel event.PublishChannel) error {
	if err := limits.ValidateStreamID(streamID); err != nil {
		return err
	}
	if channel != event.PublishChannelMain && channel != event.PublishChannelAux {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}

	m.mu.Lock()
	session, ok := m.reg.Session(roomID)
	if !ok {
		m.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function":  "StartPublishing",
			"room_id":   roomID,
			"stream_id": streamID,
		}).Warn("Publish rejected: room not logged in")
		return fmt.Errorf("%w: %s", ErrNoSession, roomID)
	}

	p := newPublisher(roomID, streamID, channel)
	p.mu.Lock()
	h, superseded := m.reg.AttachPublisher(session, streamID, channel, p)
	p.handle = h

	var actions []captureAction
	for _, ref := range superseded {
		actions = append(actions, m.cancelLocked(ref.Instance, event.CodeSuperseded)...)
	}
	m.live++
	m.syncEngineLocked()
	p.transitionLocked(m.sink, event.PublisherStateRequesting, event.CodeOK)
	p.mu.Unlock()
	capture := m.capture
	m.mu.Unlock()

	runCapture(capture, actions)

	logrus.WithFields(logrus.Fields{
		"function":   "StartPublishing",
		"room_id":    roomID,
		"stream_id":  streamID,
		"channel":    channel,
		"handle":     h.String(),
		"superseded": len(superseded),
	}).Info("Publishing requested")
	return nil
}

// StopPublishing stops the publisher on channel. It reports Idle with code zero.
func (m *Manager) StopPublishing(channel event.PublishChannel) error {
	return m.withPublisherOnChannel(channel, func(p *Publisher) error {
		return m.publishSignalLocked(p, publishStop, event.CodeOK)
	})
}

// PublishEstablished reports that the transport is sending streamID.
func (m *Manager) PublishEstablished(streamID string) error {
	return m.withPublisher(streamID, func(p *Publisher) error {
		return m.publishSignalLocked(p, publishEstablished, event.CodeOK)
	})
}

// PublishRetrying reports a renegotiation or retry attempt with the
// transport's error code. Repeated retries are only reported when the code
// is non-zero.
func (m *Manager) PublishRetrying(streamID string, errorCode int) error {
	return m.withPublisher(streamID, func(p *Publisher) error {
		return m.publishSignalLocked(p, publishRetry, errorCode)
	})
}

// PublishFailed reports that the transport gave up on streamID.
func (m *Manager) PublishFailed(streamID string, errorCode int) error {
	return m.withPublisher(streamID, func(p *Publisher) error {
		return m.publishSignalLocked(p, publishStop, errorCode)
	})
}

func (m *Manager) publishSignalLocked(p *Publisher, signal publishSignal, code int) error {
	next, err := nextPublisherState(p.state, signal)
	if err != nil {
		return err
	}
	p.transitionLocked(m.sink, next, code)
	return nil
}

// CapturedAudioFrame reports a captured audio frame on channel. The first
// one while Publishing fires the first-frame event.
func (m *Manager) CapturedAudioFrame(channel event.PublishChannel) error {
	return m.withPublisherOnChannel(channel, func(p *Publisher) error {
		if p.state != event.PublisherStatePublishing {
			return ErrInactive
		}
		if p.audioLatch.Fire() {
			m.sink.Publish(event.PublisherCapturedAudioFirstFrame{StreamID: p.streamID})
		}
		return nil
	})
}

// CapturedVideoFrame reports a captured video frame on channel with its
// dimensions. It fires the first-frame event once, and a size-change event
// whenever the dimensions differ from the last reported ones.
func (m *Manager) CapturedVideoFrame(channel event.PublishChannel, width, height int) error {
	return m.withPublisherOnChannel(channel, func(p *Publisher) error {
		if p.state != event.PublisherStatePublishing {
			return ErrInactive
		}
		if p.videoLatch.Fire() {
			m.sink.Publish(event.PublisherCapturedVideoFirstFrame{StreamID: p.streamID, Channel: channel})
		}
		if p.size.observe(width, height) {
			m.sink.Publish(event.PublisherVideoSizeChanged{
				StreamID: p.streamID,
				Width:    width,
				Height:   height,
				Channel:  channel,
			})
		}
		return nil
	})
}

// RelayCDNStateChanged records one relay endpoint report for streamID and
// emits the full endpoint list when anything changed.
func (m *Manager) RelayCDNStateChanged(streamID string, info event.RelayCDNInfo) error {
	return m.withPublisher(streamID, func(p *Publisher) error {
		if p.cdn.update(info) {
			m.sink.Publish(event.PublisherRelayCDNStateUpdate{StreamID: streamID, Infos: p.cdn.list()})
		}
		return nil
	})
}

// Publisher returns the live publisher of streamID.
func (m *Manager) Publisher(streamID string) (*Publisher, bool) {
	ref, ok := m.reg.Publisher(streamID)
	if !ok {
		return nil, false
	}
	p, ok := ref.Instance.(*Publisher)
	return p, ok
}

// Player returns the live player of streamID.
func (m *Manager) Player(streamID string) (*Player, bool) {
	ref, ok := m.reg.Player(streamID)
	if !ok {
		return nil, false
	}
	p, ok := ref.Instance.(*Player)
	return p, ok
}

func (m *Manager) withPublisher(streamID string, fn func(p *Publisher) error) error {
	p, ok := m.Publisher(streamID)
	if !ok {
		return fmt.Errorf("%w: stream %s", ErrNotPublishing, streamID)
	}
	return m.runPublisher(p, fn)
}

func (m *Manager) withPublisherOnChannel(channel event.PublishChannel, fn func(p *Publisher) error) error {
	ref, ok := m.reg.PublisherOnChannel(channel)
	if !ok {
		return fmt.Errorf("%w: channel %d", ErrNotPublishing, channel)
	}
	p, ok := ref.Instance.(*Publisher)
	if !ok {
		return fmt.Errorf("%w: channel %d", ErrNotPublishing, channel)
	}
	return m.runPublisher(p, fn)
}

func (m *Manager) runPublisher(p *Publisher, fn func(p *Publisher) error) error {
	p.mu.Lock()
	if p.state == event.PublisherStateIdle {
		p.mu.Unlock()
		return fmt.Errorf("%w: stream %s", ErrNotPublishing, p.streamID)
	}
	err := fn(p)
	terminal := p.state == event.PublisherStateIdle
	start, stop := p.captureChangeLocked()
	p.mu.Unlock()

	if terminal {
		m.release(p)
	}
	m.mu.Lock()
	capture := m.capture
	m.mu.Unlock()
	if start {
		runCapture(capture, []captureAction{{channel: p.channel, start: true}})
	}
	if stop {
		runCapture(capture, []captureAction{{channel: p.channel}})
	}
	return err
}

// StartPlaying creates a player for streamID within roomID, superseding a
// live player of the same stream.
func (m *Manager) StartPlaying(roomID, streamID string, opts PlayOptions) error {
	if err := limits.ValidateStreamID(streamID); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.reg.Session(roomID)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"function":  "StartPlaying",
			"room_id":   roomID,
			"stream_id": streamID,
		}).Warn("Play rejected: room not logged in")
		return fmt.Errorf("%w: %s", ErrNoSession, roomID)
	}

	p := newPlayer(roomID, streamID, opts)
	p.mu.Lock()
	defer p.mu.Unlock()

	h, superseded := m.reg.AttachPlayer(session, streamID, p)
	p.handle = h
	for _, ref := range superseded {
		m.cancelLocked(ref.Instance, event.CodeSuperseded)
	}
	m.live++
	m.syncEngineLocked()
	p.transitionLocked(m.sink, event.PlayerStateRequesting, event.CodeOK)

	logrus.WithFields(logrus.Fields{
		"function":   "StartPlaying",
		"room_id":    roomID,
		"stream_id":  streamID,
		"audio_only": opts.AudioOnly,
		"handle":     h.String(),
	}).Info("Playing requested")
	return nil
}

// StopPlaying stops the player of streamID. It reports Idle with code zero.
func (m *Manager) StopPlaying(streamID string) error {
	return m.withPlayer(streamID, func(p *Player) error {
		return m.playSignalLocked(p, playStop, event.CodeOK)
	})
}

// PlayEstablished reports that the transport is receiving streamID.
func (m *Manager) PlayEstablished(streamID string) error {
	return m.withPlayer(streamID, func(p *Player) error {
		return m.playSignalLocked(p, playEstablished, event.CodeOK)
	})
}

// PlayRetrying reports a retry attempt with the transport's error code.
func (m *Manager) PlayRetrying(streamID string, errorCode int) error {
	return m.withPlayer(streamID, func(p *Player) error {
		return m.playSignalLocked(p, playRetry, errorCode)
	})
}

// PlayFailed reports that the transport gave up on streamID.
func (m *Manager) PlayFailed(streamID string, errorCode int) error {
	return m.withPlayer(streamID, func(p *Player) error {
		return m.playSignalLocked(p, playStop, errorCode)
	})
}

func (m *Manager) playSignalLocked(p *Player, signal playSignal, code int) error {
	next, err := nextPlayerState(p.state, signal)
	if err != nil {
		return err
	}
	p.transitionLocked(m.sink, next, code)
	return nil
}

// ReceivedAudioFrame reports a decoded audio frame for streamID.
func (m *Manager) ReceivedAudioFrame(streamID string) error {
	return m.withPlayingPlayer(streamID, func(p *Player) {
		if p.recvAudioLatch.Fire() {
			m.sink.Publish(event.PlayerRecvAudioFirstFrame{StreamID: streamID})
		}
	})
}

// ReceivedVideoFrame reports a decoded video frame for streamID with its
// dimensions. Size changes are not reported for audio-only streams.
func (m *Manager) ReceivedVideoFrame(streamID string, width, height int) error {
	return m.withPlayingPlayer(streamID, func(p *Player) {
		if p.recvVideoLatch.Fire() {
			m.sink.Publish(event.PlayerRecvVideoFirstFrame{StreamID: streamID})
		}
		if !p.opts.AudioOnly && p.size.observe(width, height) {
			m.sink.Publish(event.PlayerVideoSizeChanged{StreamID: streamID, Width: width, Height: height})
		}
	})
}

// RenderedVideoFrame reports a rendered video frame for streamID.
func (m *Manager) RenderedVideoFrame(streamID string) error {
	return m.withPlayingPlayer(streamID, func(p *Player) {
		if p.renderVideoLatch.Fire() {
			m.sink.Publish(event.PlayerRenderVideoFirstFrame{StreamID: streamID})
		}
	})
}

// MediaEvent reports a stall or recovery on a Playing stream.
func (m *Manager) MediaEvent(streamID string, mediaEvent event.PlayerMediaEvent) error {
	return m.withPlayingPlayer(streamID, func(*Player) {
		m.sink.Publish(event.PlayerMediaEventOccurred{StreamID: streamID, MediaEvent: mediaEvent})
	})
}

// ReceivedSEI reports one out-of-band data unit. The payload is copied
// before the call returns; units are neither batched nor retried.
func (m *Manager) ReceivedSEI(streamID string, data []byte) error {
	if err := limits.ValidateSEI(data); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "ReceivedSEI",
			"stream_id": streamID,
			"size":      len(data),
			"error":     err.Error(),
		}).Warn("Dropping out-of-band data unit")
		return err
	}
	return m.withPlayingPlayer(streamID, func(*Player) {
		payload := make([]byte, len(data))
		copy(payload, data)
		m.sink.Publish(event.PlayerRecvSEI{StreamID: streamID, Data: payload})
	})
}

func (m *Manager) withPlayingPlayer(streamID string, fn func(p *Player)) error {
	return m.withPlayer(streamID, func(p *Player) error {
		if p.state != event.PlayerStatePlaying {
			return ErrInactive
		}
		fn(p)
		return nil
	})
}

func (m *Manager) withPlayer(streamID string, fn func(p *Player) error) error {
	p, ok := m.Player(streamID)
	if !ok {
		return fmt.Errorf("%w: stream %s", ErrNotPlaying, streamID)
	}

	p.mu.Lock()
	if p.state == event.PlayerStateIdle {
		p.mu.Unlock()
		return fmt.Errorf("%w: stream %s", ErrNotPlaying, streamID)
	}
	err := fn(p)
	terminal := p.state == event.PlayerStateIdle
	p.mu.Unlock()

	if terminal {
		m.release(p)
	}
	return err
}

// CancelSession moves every publisher and player started under the session
// addressed by session to Idle carrying code. Used when that session ends.
// Instances of a later login to the same room are left alone.
func (m *Manager) CancelSession(session arena.Handle, code int) {
	m.mu.Lock()
	refs := m.reg.InstancesOfSession(session)
	var actions []captureAction
	for _, ref := range refs {
		m.reg.Detach(ref.Handle)
		actions = append(actions, m.cancelLocked(ref.Instance, code)...)
	}
	m.syncEngineLocked()
	capture := m.capture
	m.mu.Unlock()

	runCapture(capture, actions)

	if len(refs) > 0 {
		logrus.WithFields(logrus.Fields{
			"function": "CancelSession",
			"room_id":  refs[0].RoomID,
			"session":  session.String(),
			"canceled": len(refs),
			"code":     code,
		}).Info("Canceled publish and play instances of session")
	}
}

// LiveInstances returns the number of publishers and players not yet released.
func (m *Manager) LiveInstances() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

// cancelLocked forces inst to Idle with code and releases it. The registry
// entry must already be detached. Callers hold m.mu and resync the engine
// state once all cancellations are done.
func (m *Manager) cancelLocked(inst any, code int) []captureAction {
	var actions []captureAction
	switch v := inst.(type) {
	case *Publisher:
		v.mu.Lock()
		if v.state != event.PublisherStateIdle {
			v.transitionLocked(m.sink, event.PublisherStateIdle, code)
		}
		if _, stop := v.captureChangeLocked(); stop {
			actions = append(actions, captureAction{channel: v.channel})
		}
		v.mu.Unlock()
		if !v.released {
			v.released = true
			m.live--
		}
	case *Player:
		v.mu.Lock()
		if v.state != event.PlayerStateIdle {
			v.transitionLocked(m.sink, event.PlayerStateIdle, code)
		}
		v.mu.Unlock()
		if !v.released {
			v.released = true
			m.live--
		}
	}
	return actions
}

// release detaches an instance that reached Idle through a signal.
func (m *Manager) release(inst any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch v := inst.(type) {
	case *Publisher:
		if v.released {
			return
		}
		v.released = true
		m.reg.Detach(v.handle)
	case *Player:
		if v.released {
			return
		}
		v.released = true
		m.reg.Detach(v.handle)
	default:
		return
	}
	m.live--
	m.syncEngineLocked()
}

// syncEngineLocked reports the engine starting with the first live
// instance and stopping when none remain. Callers hold m.mu.
func (m *Manager) syncEngineLocked() {
	switch {
	case m.live > 0 && !m.engineRunning:
		m.engineRunning = true
		m.sink.Publish(event.EngineStateUpdate{State: event.EngineStateStart})
		logrus.WithFields(logrus.Fields{
			"function": "syncEngine",
		}).Info("Engine started")
	case m.live == 0 && m.engineRunning:
		m.engineRunning = false
		m.sink.Publish(event.EngineStateUpdate{State: event.EngineStateStop})
		logrus.WithFields(logrus.Fields{
			"function": "syncEngine",
		}).Info("Engine stopped")
	}
}

func runCapture(c CaptureController, actions []captureAction) {
	if c == nil {
		return
	}
	for _, a := range actions {
		if a.start {
			c.StartCapture(a.channel)
		} else {
			c.StopCapture(a.channel)
		}
	}
}
