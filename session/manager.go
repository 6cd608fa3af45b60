// Package session implements the membership and connectivity lifecycle of the
// local participant in a room.
//
// States move Disconnected → Connecting → Connected, Connected ⇄
// Reconnecting, and any state → Disconnected on logout or fatal failure. A
// session reaching Disconnected is destroyed; the room can then be logged in
// again. Room deltas (users, streams, extra info, messages) are applied to the
// registry and reported under the same per-room lock as state transitions, so
// every event of one room is produced in order.
package session

import (
	"errors"
	"fmt"

	"github.com/opd-ai/rtcevent/arena"
	"github.com/opd-ai/rtcevent/event"
	"github.com/opd-ai/rtcevent/limits"
	"github.com/opd-ai/rtcevent/registry"
	"github.com/sirupsen/logrus"
)

// TerminateFunc is called after a session reaches Disconnected, outside of
// any session lock, with the handle the session was registered under and the
// code of the terminal transition. A new session of the same room may already
// exist when it runs; it has a different handle.
type TerminateFunc func(roomID string, session arena.Handle, errorCode int)

// Manager owns the session machines of every logged-in room.
type Manager struct {
	reg         *registry.Registry
	sink        event.Sink
	onTerminate TerminateFunc
}

// NewManager creates a manager that records sessions in reg and emits events to sink.
func NewManager(reg *registry.Registry, sink event.Sink) *Manager {
	return &Manager{reg: reg, sink: sink}
}

// OnTerminate installs the hook run after every terminal transition. Used to
// cancel publish and play instances started under the ended session.
func (m *Manager) OnTerminate(fn TerminateFunc) {
	m.onTerminate = fn
}

// Login starts a session for roomID and emits Connecting. It fails with
// ErrLoginConflict while the room already has a live session.
func (m *Manager) Login(roomID string, user event.User) error {
	if err := limits.ValidateRoomID(roomID); err != nil {
		return err
	}
	if err := limits.ValidateUserID(user.UserID); err != nil {
		return err
	}
	if err := limits.ValidateUserName(user.UserName); err != nil {
		return err
	}

	machine := newMachine(roomID, user)
	machine.mu.Lock()
	defer machine.mu.Unlock()

	h, err := m.reg.AttachSession(roomID, machine)
	if err != nil {
		if errors.Is(err, registry.ErrRoomExists) {
			logrus.WithFields(logrus.Fields{
				"function": "Manager.Login",
				"room_id":  roomID,
			}).Warn("Login rejected: room already has a live session")
			return fmt.Errorf("%w: %s", ErrLoginConflict, roomID)
		}
		return err
	}
	machine.handle = h

	logrus.WithFields(logrus.Fields{
		"function": "Manager.Login",
		"room_id":  roomID,
		"user_id":  user.UserID,
	}).Info("Logging in to room")

	return m.transitionLocked(machine, SignalLogin, event.CodeOK)
}

// SignalConnected reports that the signaling collaborator established or
// restored connectivity for roomID.
func (m *Manager) SignalConnected(roomID string) error {
	return m.signal(roomID, SignalConnected, event.CodeOK)
}

// SignalLost reports a recoverable connectivity loss with the transport's code.
func (m *Manager) SignalLost(roomID string, errorCode int) error {
	return m.signal(roomID, SignalLost, errorCode)
}

// SignalFatal reports an unrecoverable failure. The session ends in
// Disconnected carrying errorCode.
func (m *Manager) SignalFatal(roomID string, errorCode int) error {
	return m.signal(roomID, SignalFatal, errorCode)
}

// Logout ends the session of roomID in Disconnected with code zero.
func (m *Manager) Logout(roomID string) error {
	return m.signal(roomID, SignalLogout, event.CodeOK)
}

// LogoutAll ends every live session.
func (m *Manager) LogoutAll() {
	for _, roomID := range m.reg.Rooms() {
		if err := m.Logout(roomID); err != nil && !errors.Is(err, ErrNotLoggedIn) {
			logrus.WithFields(logrus.Fields{
				"function": "Manager.LogoutAll",
				"room_id":  roomID,
				"error":    err.Error(),
			}).Error("Logout failed")
		}
	}
}

// State returns the current state of roomID.
func (m *Manager) State(roomID string) (event.RoomState, error) {
	machine, err := m.machine(roomID)
	if err != nil {
		return event.RoomStateDisconnected, err
	}
	state, _ := machine.State()
	return state, nil
}

func (m *Manager) signal(roomID string, signal Signal, code int) error {
	machine, err := m.machine(roomID)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Manager.signal",
			"room_id":  roomID,
			"signal":   signal.String(),
		}).Warn("Signal for a room without a live session ignored")
		return err
	}

	machine.mu.Lock()
	err = m.transitionLocked(machine, signal, code)
	terminal := err == nil && machine.state == event.RoomStateDisconnected
	handle := machine.handle
	machine.mu.Unlock()

	if terminal && m.onTerminate != nil {
		m.onTerminate(roomID, handle, code)
	}
	return err
}

func (m *Manager) transitionLocked(machine *Machine, signal Signal, code int) error {
	if _, live := m.reg.Instance(machine.handle); !live {
		// lost a race with a terminal transition
		return fmt.Errorf("%w: %s", ErrNotLoggedIn, machine.roomID)
	}

	prev := machine.state
	emit, err := machine.apply(signal, code)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Manager.transition",
			"room_id":  machine.roomID,
			"state":    prev.String(),
			"signal":   signal.String(),
		}).Warn("Session transition rejected")
		return err
	}

	doc := event.EmptyDocument()
	if machine.state == event.RoomStateDisconnected {
		m.reg.Detach(machine.handle)
	} else if err := m.reg.SetRoomState(machine.roomID, machine.state, code, doc); err != nil {
		return err
	}

	if !emit {
		logrus.WithFields(logrus.Fields{
			"function": "Manager.transition",
			"room_id":  machine.roomID,
			"state":    machine.state.String(),
		}).Debug("Repeated session state suppressed")
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Manager.transition",
		"room_id":    machine.roomID,
		"from":       prev.String(),
		"to":         machine.state.String(),
		"error_code": code,
	}).Info("Room state changed")

	m.sink.Publish(event.RoomStateUpdate{
		RoomID:       machine.roomID,
		State:        machine.state,
		ErrorCode:    code,
		ExtendedData: doc,
	})
	return nil
}

func (m *Manager) machine(roomID string) (*Machine, error) {
	ref, ok := m.reg.Session(roomID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotLoggedIn, roomID)
	}
	machine, ok := ref.Instance.(*Machine)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotLoggedIn, roomID)
	}
	return machine, nil
}

// withRoom runs fn under the room's session lock so deltas are ordered with
// state transitions of the same room.
func (m *Manager) withRoom(roomID string, fn func(machine *Machine) error) error {
	machine, err := m.machine(roomID)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Manager.withRoom",
			"room_id":  roomID,
		}).Warn("Room delta for a room without a live session ignored")
		return err
	}
	machine.mu.Lock()
	defer machine.mu.Unlock()

	if _, live := m.reg.Instance(machine.handle); !live {
		return fmt.Errorf("%w: %s", ErrNotLoggedIn, roomID)
	}
	return fn(machine)
}
