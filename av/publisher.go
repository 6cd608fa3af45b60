package av

import (
	"sync"
	"sync/atomic"

	"github.com/opd-ai/rtcevent/arena"
	"github.com/opd-ai/rtcevent/event"
	"github.com/opd-ai/rtcevent/registry"
)

// publishSignal is an input to the publish state machine after creation.
type publishSignal int

const (
	publishEstablished publishSignal = iota
	publishRetry
	publishStop
)

// nextPublisherState returns the state reached from current on signal.
// Idle is terminal: a publisher never leaves it.
func nextPublisherState(current event.PublisherState, signal publishSignal) (event.PublisherState, error) {
	if current == event.PublisherStateIdle {
		return current, ErrInvalidTransition
	}
	switch signal {
	case publishEstablished:
		return event.PublisherStatePublishing, nil
	case publishRetry:
		return event.PublisherStateRequesting, nil
	case publishStop:
		return event.PublisherStateIdle, nil
	}
	return current, ErrInvalidTransition
}

// Publisher is the state machine of one publish operation.
//
// A Publisher is created in Requesting and destroyed on reaching Idle. Its
// first-frame latches are armed the first time it reaches Publishing and are
// never reset, so each first-frame event fires at most once per Publisher.
type Publisher struct {
	mu       sync.Mutex
	roomID   string
	streamID string
	channel  event.PublishChannel
	handle   arena.Handle

	state     event.PublisherState
	lastCode  int
	active    atomic.Bool
	capturing bool

	audioLatch Latch
	videoLatch Latch
	size       sizeTracker
	cdn        cdnTable

	// guarded by Manager.mu
	released bool
}

func newPublisher(roomID, streamID string, channel event.PublishChannel) *Publisher {
	return &Publisher{
		roomID:   roomID,
		streamID: streamID,
		channel:  channel,
		state:    event.PublisherStateIdle,
		cdn:      newCDNTable(),
	}
}

// Kind implements registry.Instance.
func (p *Publisher) Kind() registry.Kind { return registry.KindPublisher }

// Key returns the stream ID.
func (p *Publisher) Key() string { return p.streamID }

// Active reports whether the publisher is Publishing.
func (p *Publisher) Active() bool { return p.active.Load() }

// StreamID returns the published stream ID.
func (p *Publisher) StreamID() string { return p.streamID }

// RoomID returns the room the publisher is scoped to.
func (p *Publisher) RoomID() string { return p.roomID }

// Channel returns the publish channel.
func (p *Publisher) Channel() event.PublishChannel { return p.channel }

// Handle returns the registry handle of the publisher.
func (p *Publisher) Handle() arena.Handle { return p.handle }

// State returns the current state and the code of the last transition.
func (p *Publisher) State() (event.PublisherState, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.lastCode
}

// LatchStates returns the audio and video first-frame latch states.
func (p *Publisher) LatchStates() (audio, video LatchState) {
	return p.audioLatch.State(), p.videoLatch.State()
}

// transitionLocked moves to next and emits the state update unless it
// repeats the current state without an error. Callers hold p.mu.
func (p *Publisher) transitionLocked(sink event.Sink, next event.PublisherState, code int) {
	emit := next != p.state || code != event.CodeOK
	p.state = next
	p.lastCode = code
	p.active.Store(next == event.PublisherStatePublishing)
	if next == event.PublisherStatePublishing {
		p.audioLatch.Arm()
		p.videoLatch.Arm()
	}
	if emit {
		sink.Publish(event.PublisherStateUpdate{
			StreamID:     p.streamID,
			State:        next,
			ErrorCode:    code,
			ExtendedData: event.EmptyDocument(),
		})
	}
}

// captureChangeLocked reports whether capture must be started or stopped
// after the latest transition. Callers hold p.mu.
func (p *Publisher) captureChangeLocked() (start, stop bool) {
	switch {
	case !p.capturing && p.state == event.PublisherStatePublishing:
		p.capturing = true
		return true, false
	case p.capturing && p.state == event.PublisherStateIdle:
		p.capturing = false
		return false, true
	}
	return false, false
}
