package av

import (
	"sync"
	"sync/atomic"

	"github.com/opd-ai/rtcevent/arena"
	"github.com/opd-ai/rtcevent/event"
	"github.com/opd-ai/rtcevent/registry"
)

// PlayOptions configures one play operation.
type PlayOptions struct {
	// AudioOnly suppresses video size-change events for the stream
	AudioOnly bool
}

type playSignal int

const (
	playEstablished playSignal = iota
	playRetry
	playStop
)

// nextPlayerState returns the state reached from current on signal.
// Idle is terminal: a player never leaves it.
func nextPlayerState(current event.PlayerState, signal playSignal) (event.PlayerState, error) {
	if current == event.PlayerStateIdle {
		return current, ErrInvalidTransition
	}
	switch signal {
	case playEstablished:
		return event.PlayerStatePlaying, nil
	case playRetry:
		return event.PlayerStateRequesting, nil
	case playStop:
		return event.PlayerStateIdle, nil
	}
	return current, ErrInvalidTransition
}

// Player is the state machine of one play operation. It mirrors Publisher
// with three first-frame latches: received audio, received video and
// rendered video.
type Player struct {
	mu       sync.Mutex
	roomID   string
	streamID string
	opts     PlayOptions
	handle   arena.Handle

	state    event.PlayerState
	lastCode int
	active   atomic.Bool

	recvAudioLatch   Latch
	recvVideoLatch   Latch
	renderVideoLatch Latch
	size             sizeTracker

	// guarded by Manager.mu
	released bool
}

func newPlayer(roomID, streamID string, opts PlayOptions) *Player {
	return &Player{
		roomID:   roomID,
		streamID: streamID,
		opts:     opts,
		state:    event.PlayerStateIdle,
	}
}

// Kind implements registry.Instance.
func (p *Player) Kind() registry.Kind { return registry.KindPlayer }

// Key returns the stream ID.
func (p *Player) Key() string { return p.streamID }

// Active reports whether the player is Playing.
func (p *Player) Active() bool { return p.active.Load() }

// StreamID returns the played stream ID.
func (p *Player) StreamID() string { return p.streamID }

// RoomID returns the room the player is scoped to.
func (p *Player) RoomID() string { return p.roomID }

// AudioOnly reports whether the stream was started audio-only.
func (p *Player) AudioOnly() bool { return p.opts.AudioOnly }

// Handle returns the registry handle of the player.
func (p *Player) Handle() arena.Handle { return p.handle }

// State returns the current state and the code of the last transition.
func (p *Player) State() (event.PlayerState, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.lastCode
}

func (p *Player) transitionLocked(sink event.Sink, next event.PlayerState, code int) {
	emit := next != p.state || code != event.CodeOK
	p.state = next
	p.lastCode = code
	p.active.Store(next == event.PlayerStatePlaying)
	if next == event.PlayerStatePlaying {
		p.recvAudioLatch.Arm()
		p.recvVideoLatch.Arm()
		p.renderVideoLatch.Arm()
	}
	if emit {
		sink.Publish(event.PlayerStateUpdate{
			StreamID:     p.streamID,
			State:        next,
			ErrorCode:    code,
			ExtendedData: event.EmptyDocument(),
		})
	}
}
