package session

import (
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/opd-ai/rtcevent/arena"
	"github.com/opd-ai/rtcevent/event"
	"github.com/opd-ai/rtcevent/limits"
	"github.com/opd-ai/rtcevent/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceSink struct {
	mu     sync.Mutex
	events []event.Event
}

func (s *sliceSink) Publish(ev event.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *sliceSink) roomStates() []event.RoomStateUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.RoomStateUpdate
	for _, ev := range s.events {
		if u, ok := ev.(event.RoomStateUpdate); ok {
			out = append(out, u)
		}
	}
	return out
}

func newManager() (*Manager, *registry.Registry, *sliceSink) {
	reg := registry.New()
	sink := &sliceSink{}
	return NewManager(reg, sink), reg, sink
}

var alice = event.User{UserID: "u1", UserName: "alice"}

func TestNext(t *testing.T) {
	tests := []struct {
		name    string
		current event.RoomState
		signal  Signal
		want    event.RoomState
		wantErr error
	}{
		{"login from disconnected", event.RoomStateDisconnected, SignalLogin, event.RoomStateConnecting, nil},
		{"login while connected", event.RoomStateConnected, SignalLogin, event.RoomStateConnected, ErrLoginConflict},
		{"connected from connecting", event.RoomStateConnecting, SignalConnected, event.RoomStateConnected, nil},
		{"connected from reconnecting", event.RoomStateReconnecting, SignalConnected, event.RoomStateConnected, nil},
		{"connected while disconnected", event.RoomStateDisconnected, SignalConnected, event.RoomStateDisconnected, ErrInvalidTransition},
		{"lost while connected", event.RoomStateConnected, SignalLost, event.RoomStateReconnecting, nil},
		{"lost while connecting", event.RoomStateConnecting, SignalLost, event.RoomStateConnecting, nil},
		{"lost while disconnected", event.RoomStateDisconnected, SignalLost, event.RoomStateDisconnected, ErrInvalidTransition},
		{"fatal from anywhere", event.RoomStateReconnecting, SignalFatal, event.RoomStateDisconnected, nil},
		{"logout from anywhere", event.RoomStateConnecting, SignalLogout, event.RoomStateDisconnected, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.current, tt.signal)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoginConflictAndLogoutScenario(t *testing.T) {
	m, reg, sink := newManager()
	var terminated []string
	m.OnTerminate(func(roomID string, _ arena.Handle, code int) {
		terminated = append(terminated, roomID)
		assert.Equal(t, event.CodeOK, code)
	})

	require.NoError(t, m.Login("sessionA", alice))
	require.NoError(t, m.SignalConnected("sessionA"))

	err := m.Login("sessionA", alice)
	assert.ErrorIs(t, err, ErrLoginConflict)

	require.NoError(t, m.Logout("sessionA"))

	states := sink.roomStates()
	require.Len(t, states, 3, "rejected login must not emit")
	assert.Equal(t, event.RoomStateConnecting, states[0].State)
	assert.Equal(t, event.RoomStateConnected, states[1].State)
	assert.Equal(t, 0, states[1].ErrorCode)
	assert.Equal(t, event.RoomStateDisconnected, states[2].State)
	assert.Equal(t, 0, states[2].ErrorCode)
	assert.Equal(t, "{}", states[2].ExtendedData.String())

	assert.Equal(t, []string{"sessionA"}, terminated)
	_, ok := reg.Session("sessionA")
	assert.False(t, ok)

	// the room can be joined again after logout
	require.NoError(t, m.Login("sessionA", alice))
}

func TestReconnectSuppressesRepeatsWithoutError(t *testing.T) {
	m, _, sink := newManager()
	require.NoError(t, m.Login("r1", alice))
	require.NoError(t, m.SignalConnected("r1"))
	require.NoError(t, m.SignalConnected("r1"))
	require.NoError(t, m.SignalLost("r1", 5))
	require.NoError(t, m.SignalLost("r1", 0))
	require.NoError(t, m.SignalLost("r1", 7))
	require.NoError(t, m.SignalConnected("r1"))

	states := sink.roomStates()
	got := make([]event.RoomState, len(states))
	codes := make([]int, len(states))
	for i, s := range states {
		got[i] = s.State
		codes[i] = s.ErrorCode
	}
	assert.Equal(t, []event.RoomState{
		event.RoomStateConnecting,
		event.RoomStateConnected,
		event.RoomStateReconnecting,
		event.RoomStateReconnecting,
		event.RoomStateConnected,
	}, got)
	assert.Equal(t, []int{0, 0, 5, 7, 0}, codes)

	state, err := m.State("r1")
	require.NoError(t, err)
	assert.Equal(t, event.RoomStateConnected, state)
}

func TestFatalEndsSessionWithCode(t *testing.T) {
	m, _, sink := newManager()
	var gotCode int
	m.OnTerminate(func(_ string, _ arena.Handle, code int) { gotCode = code })

	require.NoError(t, m.Login("r1", alice))
	require.NoError(t, m.SignalFatal("r1", 52001))

	states := sink.roomStates()
	last := states[len(states)-1]
	assert.Equal(t, event.RoomStateDisconnected, last.State)
	assert.Equal(t, 52001, last.ErrorCode)
	assert.Equal(t, 52001, gotCode)

	assert.ErrorIs(t, m.SignalConnected("r1"), ErrNotLoggedIn)
	assert.ErrorIs(t, m.Logout("r1"), ErrNotLoggedIn)
	_, err := m.State("r1")
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestLoginValidatesIdentifiers(t *testing.T) {
	m, _, sink := newManager()
	assert.ErrorIs(t, m.Login("", alice), limits.ErrEmpty)
	assert.ErrorIs(t, m.Login(strings.Repeat("r", limits.MaxRoomID+1), alice), limits.ErrTooLarge)
	assert.ErrorIs(t, m.Login("r1", event.User{}), limits.ErrEmpty)
	assert.ErrorIs(t, m.Login("r1", event.User{UserID: "u", UserName: strings.Repeat("n", limits.MaxUserName+1)}), limits.ErrTooLarge)
	assert.Empty(t, sink.roomStates())
}

func TestDeltasRejectOversizedExtraInfo(t *testing.T) {
	m, _, sink := newManager()
	require.NoError(t, m.Login("r1", alice))
	before := len(sink.roomStates())

	big := strings.Repeat("x", limits.MaxExtraInfo+1)
	assert.ErrorIs(t, m.UpdateStreamExtraInfo("r1", []event.Stream{{User: alice, StreamID: "s1", ExtraInfo: big}}), limits.ErrTooLarge)
	assert.ErrorIs(t, m.UpdateRoomExtraInfo("r1", []event.RoomExtraInfo{{Key: "k", Value: big}}), limits.ErrTooLarge)
	assert.ErrorIs(t, m.UpdateStreams("r1", event.UpdateTypeAdd, []event.Stream{{User: alice, StreamID: ""}}), limits.ErrEmpty)

	sink.mu.Lock()
	n := len(sink.events)
	sink.mu.Unlock()
	assert.Equal(t, before, n)
}

func TestRandomSignalSequencesNeverRepeatWithoutError(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	signals := []Signal{SignalConnected, SignalLost, SignalFatal, SignalLogout}

	for run := 0; run < 50; run++ {
		m, _, sink := newManager()
		require.NoError(t, m.Login("r", alice))
		for i := 0; i < 40; i++ {
			sig := signals[rng.Intn(len(signals))]
			code := 0
			if rng.Intn(3) == 0 {
				code = rng.Intn(10) + 1
			}
			var err error
			switch sig {
			case SignalConnected:
				err = m.SignalConnected("r")
			case SignalLost:
				err = m.SignalLost("r", code)
			case SignalFatal:
				err = m.SignalFatal("r", code)
			case SignalLogout:
				err = m.Logout("r")
			}
			if err != nil {
				// session ended; start a new one
				require.ErrorIs(t, err, ErrNotLoggedIn)
				require.NoError(t, m.Login("r", alice))
			}
		}
		require.NoError(t, ignoreNotLoggedIn(m.Logout("r")))

		states := sink.roomStates()
		for i := 1; i < len(states); i++ {
			if states[i].State == states[i-1].State {
				assert.NotZero(t, states[i].ErrorCode, "run %d: repeated %s without error at %d", run, states[i].State, i)
			}
		}
		assert.Equal(t, event.RoomStateDisconnected, states[len(states)-1].State)
	}
}

func ignoreNotLoggedIn(err error) error {
	if errors.Is(err, ErrNotLoggedIn) {
		return nil
	}
	return err
}

func TestRoomDeltasAreRecordedAndReported(t *testing.T) {
	m, reg, sink := newManager()
	require.NoError(t, m.Login("r1", alice))

	bob := event.User{UserID: "u2", UserName: "bob"}
	require.NoError(t, m.UpdateUsers("r1", event.UpdateTypeAdd, []event.User{bob}))
	require.NoError(t, m.UpdateStreams("r1", event.UpdateTypeAdd, []event.Stream{{User: bob, StreamID: "s2"}}))
	require.NoError(t, m.UpdateStreamExtraInfo("r1", []event.Stream{{User: bob, StreamID: "s2", ExtraInfo: "cam"}}))
	require.NoError(t, m.UpdateRoomExtraInfo("r1", []event.RoomExtraInfo{{Key: "k", Value: "v"}}))
	require.NoError(t, m.SetOnlineCount("r1", 2))
	require.NoError(t, m.ReceiveBroadcast("r1", []event.BroadcastMessage{
		{Message: "hi", FromUser: bob},
		{Message: strings.Repeat("x", limits.MaxMessage+1), FromUser: bob},
	}))
	require.NoError(t, m.ReceiveBarrage("r1", []event.BarrageMessage{{Message: strings.Repeat("x", limits.MaxMessage+1)}}))
	require.NoError(t, m.ReceiveCustomCommand("r1", bob, "raise-hand"))
	assert.ErrorIs(t, m.ReceiveCustomCommand("r1", bob, ""), limits.ErrEmpty)

	snap, err := reg.Room("r1")
	require.NoError(t, err)
	assert.Len(t, snap.Participants, 1)
	require.Len(t, snap.Streams, 1)
	assert.Equal(t, "cam", snap.Streams[0].ExtraInfo)
	assert.Equal(t, 2, snap.OnlineCount)

	var kinds []string
	for _, ev := range sink.events {
		kinds = append(kinds, ev.Kind())
	}
	assert.Equal(t, []string{
		"room_state_update",
		"room_user_update",
		"room_stream_update",
		"room_stream_extra_info_update",
		"room_extra_info_update",
		"broadcast_message",
		"custom_command",
	}, kinds)

	broadcast := sink.events[5].(event.BroadcastMessageReceived)
	assert.Len(t, broadcast.Messages, 1, "oversized message is dropped")

	assert.ErrorIs(t, m.UpdateUsers("other", event.UpdateTypeAdd, nil), ErrNotLoggedIn)
}

func TestLogoutAll(t *testing.T) {
	m, reg, _ := newManager()
	require.NoError(t, m.Login("a", alice))
	require.NoError(t, m.Login("b", alice))

	m.LogoutAll()
	assert.Empty(t, reg.Rooms())
}

func TestTerminateHookSeesEndedSessionWhileRoomIsRejoined(t *testing.T) {
	m, reg, sink := newManager()
	require.NoError(t, m.Login("r1", alice))
	first, ok := reg.Session("r1")
	require.True(t, ok)

	var ended arena.Handle
	var rejoined registry.InstanceRef
	m.OnTerminate(func(roomID string, session arena.Handle, _ int) {
		if !ended.IsZero() {
			return
		}
		ended = session
		// a new login of the same room lands before the hook finishes
		require.NoError(t, m.Login(roomID, alice))
		rejoined, ok = reg.Session(roomID)
		require.True(t, ok)
	})

	require.NoError(t, m.Logout("r1"))

	assert.Equal(t, first.Handle, ended)
	assert.NotEqual(t, ended, rejoined.Handle)
	state, err := m.State("r1")
	require.NoError(t, err)
	assert.Equal(t, event.RoomStateConnecting, state)

	states := sink.roomStates()
	require.Len(t, states, 3)
	assert.Equal(t, event.RoomStateDisconnected, states[1].State)
	assert.Equal(t, event.RoomStateConnecting, states[2].State)
}
