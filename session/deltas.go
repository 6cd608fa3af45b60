package session

import (
	"fmt"

	"github.com/opd-ai/rtcevent/event"
	"github.com/opd-ai/rtcevent/limits"
	"github.com/sirupsen/logrus"
)

// UpdateUsers applies a participant delta and reports it.
func (m *Manager) UpdateUsers(roomID string, updateType event.UpdateType, users []event.User) error {
	return m.withRoom(roomID, func(*Machine) error {
		if err := m.reg.ApplyUsers(roomID, updateType, users); err != nil {
			return err
		}
		m.sink.Publish(event.RoomUserUpdate{RoomID: roomID, UpdateType: updateType, Users: copyUsers(users)})
		return nil
	})
}

// UpdateStreams applies a remote stream delta and reports it.
func (m *Manager) UpdateStreams(roomID string, updateType event.UpdateType, streams []event.Stream) error {
	if err := validateStreams(streams); err != nil {
		return err
	}
	return m.withRoom(roomID, func(*Machine) error {
		if err := m.reg.ApplyStreams(roomID, updateType, streams); err != nil {
			return err
		}
		m.sink.Publish(event.RoomStreamUpdate{RoomID: roomID, UpdateType: updateType, Streams: copyStreams(streams)})
		return nil
	})
}

// UpdateStreamExtraInfo replaces stream extra-info sidecars and reports them.
func (m *Manager) UpdateStreamExtraInfo(roomID string, streams []event.Stream) error {
	if err := validateStreams(streams); err != nil {
		return err
	}
	return m.withRoom(roomID, func(*Machine) error {
		if err := m.reg.UpdateStreamExtraInfo(roomID, streams); err != nil {
			return err
		}
		m.sink.Publish(event.RoomStreamExtraInfoUpdate{RoomID: roomID, Streams: copyStreams(streams)})
		return nil
	})
}

// UpdateRoomExtraInfo stores room extra-info entries and reports them.
func (m *Manager) UpdateRoomExtraInfo(roomID string, infos []event.RoomExtraInfo) error {
	for _, info := range infos {
		if err := limits.ValidateExtraInfo(info.Value); err != nil {
			return fmt.Errorf("room extra info %q: %w", info.Key, err)
		}
	}
	return m.withRoom(roomID, func(*Machine) error {
		if err := m.reg.UpdateRoomExtraInfo(roomID, infos); err != nil {
			return err
		}
		out := make([]event.RoomExtraInfo, len(infos))
		copy(out, infos)
		m.sink.Publish(event.RoomExtraInfoUpdate{RoomID: roomID, Infos: out})
		return nil
	})
}

// SetOnlineCount records the room's online participant count. The count is
// reported by the periodic sampler, not here.
func (m *Manager) SetOnlineCount(roomID string, count int) error {
	return m.withRoom(roomID, func(*Machine) error {
		return m.reg.SetOnlineCount(roomID, count)
	})
}

// ReceiveBroadcast reports broadcast messages. Oversized messages are dropped.
func (m *Manager) ReceiveBroadcast(roomID string, messages []event.BroadcastMessage) error {
	return m.withRoom(roomID, func(*Machine) error {
		kept := make([]event.BroadcastMessage, 0, len(messages))
		for _, msg := range messages {
			if keepMessage(roomID, msg.Message) {
				kept = append(kept, msg)
			}
		}
		if len(kept) > 0 {
			m.sink.Publish(event.BroadcastMessageReceived{RoomID: roomID, Messages: kept})
		}
		return nil
	})
}

// ReceiveBarrage reports barrage messages. Oversized messages are dropped.
func (m *Manager) ReceiveBarrage(roomID string, messages []event.BarrageMessage) error {
	return m.withRoom(roomID, func(*Machine) error {
		kept := make([]event.BarrageMessage, 0, len(messages))
		for _, msg := range messages {
			if keepMessage(roomID, msg.Message) {
				kept = append(kept, msg)
			}
		}
		if len(kept) > 0 {
			m.sink.Publish(event.BarrageMessageReceived{RoomID: roomID, Messages: kept})
		}
		return nil
	})
}

// ReceiveCustomCommand reports a custom command from another participant.
func (m *Manager) ReceiveCustomCommand(roomID string, fromUser event.User, command string) error {
	return m.withRoom(roomID, func(*Machine) error {
		if !keepMessage(roomID, command) {
			return limits.ValidateMessage(command)
		}
		m.sink.Publish(event.CustomCommandReceived{RoomID: roomID, FromUser: fromUser, Command: command})
		return nil
	})
}

func keepMessage(roomID, message string) bool {
	if err := limits.ValidateMessage(message); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "session.keepMessage",
			"room_id":  roomID,
			"size":     len(message),
			"error":    err.Error(),
		}).Warn("Dropping room message")
		return false
	}
	return true
}

func validateStreams(streams []event.Stream) error {
	for _, s := range streams {
		if err := limits.ValidateStreamID(s.StreamID); err != nil {
			return err
		}
		if err := limits.ValidateExtraInfo(s.ExtraInfo); err != nil {
			return fmt.Errorf("stream %s: %w", s.StreamID, err)
		}
	}
	return nil
}

func copyUsers(users []event.User) []event.User {
	out := make([]event.User, len(users))
	copy(out, users)
	return out
}

func copyStreams(streams []event.Stream) []event.Stream {
	out := make([]event.Stream, len(streams))
	copy(out, streams)
	return out
}
