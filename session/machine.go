package session

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/rtcevent/arena"
	"github.com/opd-ai/rtcevent/event"
	"github.com/opd-ai/rtcevent/registry"
)

// Signal is one input to the session state machine.
type Signal int

const (
	// SignalLogin is the local login request
	SignalLogin Signal = iota
	// SignalConnected is the signaling collaborator confirming connectivity
	SignalConnected
	// SignalLost is a recoverable transport connectivity loss
	SignalLost
	// SignalFatal is an unrecoverable failure
	SignalFatal
	// SignalLogout is the local logout request
	SignalLogout
)

// String returns the string representation of Signal.
func (s Signal) String() string {
	switch s {
	case SignalLogin:
		return "login"
	case SignalConnected:
		return "connected"
	case SignalLost:
		return "lost"
	case SignalFatal:
		return "fatal"
	case SignalLogout:
		return "logout"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// Next returns the state reached from current on signal.
func Next(current event.RoomState, signal Signal) (event.RoomState, error) {
	switch signal {
	case SignalLogout, SignalFatal:
		return event.RoomStateDisconnected, nil
	case SignalLogin:
		if current == event.RoomStateDisconnected {
			return event.RoomStateConnecting, nil
		}
		return current, ErrLoginConflict
	case SignalConnected:
		if current == event.RoomStateDisconnected {
			return current, ErrInvalidTransition
		}
		return event.RoomStateConnected, nil
	case SignalLost:
		switch current {
		case event.RoomStateConnected, event.RoomStateReconnecting:
			return event.RoomStateReconnecting, nil
		case event.RoomStateConnecting:
			// the first connection attempt keeps retrying in Connecting
			return event.RoomStateConnecting, nil
		}
		return current, ErrInvalidTransition
	}
	return current, ErrInvalidTransition
}

// Machine is the session state machine of one room login.
type Machine struct {
	mu       sync.Mutex
	roomID   string
	user     event.User
	state    event.RoomState
	lastCode int
	handle   arena.Handle
	active   atomic.Bool
}

func newMachine(roomID string, user event.User) *Machine {
	return &Machine{roomID: roomID, user: user, state: event.RoomStateDisconnected}
}

// Kind implements registry.Instance.
func (m *Machine) Kind() registry.Kind { return registry.KindSession }

// Key returns the room ID.
func (m *Machine) Key() string { return m.roomID }

// Active reports whether the session is Connected.
func (m *Machine) Active() bool { return m.active.Load() }

// State returns the current state and the error code of the last transition.
func (m *Machine) State() (event.RoomState, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.lastCode
}

// User returns the local user the room was logged in with.
func (m *Machine) User() event.User { return m.user }

// apply runs one transition. It reports whether an event must be emitted:
// a repeated state is only reported when it carries an error.
// Callers hold m.mu.
func (m *Machine) apply(signal Signal, code int) (emit bool, err error) {
	next, err := Next(m.state, signal)
	if err != nil {
		return false, err
	}
	emit = next != m.state || code != event.CodeOK
	m.state = next
	m.lastCode = code
	m.active.Store(next == event.RoomStateConnected)
	return emit, nil
}
