package rtcevent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/opd-ai/rtcevent/arena"
	"github.com/opd-ai/rtcevent/av"
	"github.com/opd-ai/rtcevent/event"
	"github.com/opd-ai/rtcevent/relay"
	"github.com/opd-ai/rtcevent/sampler"
	testsim "github.com/opd-ai/rtcevent/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, verbose bool) (*Engine, *testsim.EventRecorder) {
	t.Helper()

	options := NewOptions()
	options.VerboseDiagnostics = verbose
	options.TimeProvider = testsim.NewManualClock(time.Unix(1700000000, 0))

	engine, err := New(options)
	require.NoError(t, err)

	recorder := testsim.NewEventRecorder()
	_, err = engine.RegisterObserver(recorder)
	require.NoError(t, err)
	require.NoError(t, engine.Start())
	t.Cleanup(engine.Stop)

	return engine, recorder
}

func flush(t *testing.T, engine *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, engine.Flush(ctx))
}

func TestEngineStartStop(t *testing.T) {
	engine, err := New(nil)
	require.NoError(t, err)
	assert.False(t, engine.IsRunning())

	require.NoError(t, engine.Start())
	assert.True(t, engine.IsRunning())
	assert.ErrorIs(t, engine.Start(), ErrAlreadyRunning)
	assert.True(t, engine.Sampler().Armed(sampler.PublishQuality))
	assert.True(t, engine.Sampler().Armed(sampler.OnlineCount))

	engine.Stop()
	assert.False(t, engine.IsRunning())
	assert.ErrorIs(t, engine.Start(), ErrNotRunning)

	// idempotent
	engine.Stop()
}

func TestEngineRejectsCallsBeforeStart(t *testing.T) {
	engine, err := New(nil)
	require.NoError(t, err)
	defer engine.Stop()

	assert.ErrorIs(t, engine.LoginRoom("room-1", event.User{UserID: "alice"}), ErrNotRunning)
	assert.ErrorIs(t, engine.StartPublishingStream("s1", "room-1", event.PublishChannelMain), ErrNotRunning)
	assert.ErrorIs(t, engine.StartPlayingStream("s1", "room-1", av.PlayOptions{}), ErrNotRunning)
}

func TestEngineLoginPublishLogout(t *testing.T) {
	engine, recorder := newTestEngine(t, false)

	require.NoError(t, engine.LoginRoom("room-1", event.User{UserID: "alice"}))
	require.NoError(t, engine.Sessions().SignalConnected("room-1"))
	require.NoError(t, engine.StartPublishingStream("alice-main", "room-1", event.PublishChannelMain))
	require.NoError(t, engine.Streams().PublishEstablished("alice-main"))
	require.NoError(t, engine.StartPlayingStream("bob-main", "room-1", av.PlayOptions{}))
	flush(t, engine)

	assert.Equal(t, []string{
		"room_state_update",
		"room_state_update",
		"engine_state_update",
		"publisher_state_update",
		"publisher_state_update",
		"player_state_update",
	}, recorder.Kinds())
	assert.True(t, engine.Relay().Capturing(event.PublishChannelMain))

	recorder.ClearEventLog()
	require.NoError(t, engine.LogoutRoom("room-1"))
	flush(t, engine)

	log := recorder.GetEventLog()
	require.Len(t, log, 4)
	assert.Equal(t, event.RoomStateUpdate{
		RoomID:       "room-1",
		State:        event.RoomStateDisconnected,
		ErrorCode:    event.CodeOK,
		ExtendedData: event.EmptyDocument(),
	}, log[0])
	assert.Equal(t, event.EngineStateUpdate{State: event.EngineStateStop}, log[3])

	for _, ev := range log[1:3] {
		switch v := ev.(type) {
		case event.PublisherStateUpdate:
			assert.Equal(t, event.PublisherStateIdle, v.State)
			assert.Equal(t, event.CodeCanceled, v.ErrorCode)
		case event.PlayerStateUpdate:
			assert.Equal(t, event.PlayerStateIdle, v.State)
			assert.Equal(t, event.CodeCanceled, v.ErrorCode)
		default:
			t.Fatalf("unexpected event %s", ev.Kind())
		}
	}

	assert.Zero(t, engine.Streams().LiveInstances())
	assert.False(t, engine.Relay().Capturing(event.PublishChannelMain))
}

func TestEngineLoginConflict(t *testing.T) {
	engine, recorder := newTestEngine(t, true)

	require.NoError(t, engine.LoginRoom("room-1", event.User{UserID: "alice"}))
	require.NoError(t, engine.Sessions().SignalConnected("room-1"))
	flush(t, engine)
	recorder.ClearEventLog()

	require.Error(t, engine.LoginRoom("room-1", event.User{UserID: "alice"}))
	flush(t, engine)

	// only the debug error, no further room state
	require.Equal(t, []string{"debug_error"}, recorder.Kinds())
	debug := recorder.GetEventLog()[0].(event.DebugError)
	assert.Equal(t, event.CodeInvalidCall, debug.ErrorCode)
	assert.Equal(t, "LoginRoom", debug.FuncName)
	assert.True(t, strings.Contains(debug.Info, "room-1"))
}

func TestEngineDebugErrorsFollowVerboseFlag(t *testing.T) {
	engine, recorder := newTestEngine(t, false)

	assert.Error(t, engine.LoginRoom("", event.User{UserID: "alice"}))
	assert.Error(t, engine.StopPlayingStream("missing"))
	flush(t, engine)
	assert.Empty(t, recorder.OfKind("debug_error"))

	engine.SetVerboseDiagnostics(true)
	assert.Error(t, engine.StopPlayingStream("missing"))
	assert.Error(t, engine.StartPublishingStream("s1", "unknown-room", event.PublishChannelMain))

	errs := recorder.OfKind("debug_error")
	require.Len(t, errs, 2)
	assert.Equal(t, "StopPlayingStream", errs[0].(event.DebugError).FuncName)
	assert.Equal(t, "StartPublishingStream", errs[1].(event.DebugError).FuncName)
}

func TestEngineSupersedeOverFacade(t *testing.T) {
	engine, recorder := newTestEngine(t, false)

	require.NoError(t, engine.LoginRoom("room-1", event.User{UserID: "alice"}))
	require.NoError(t, engine.StartPlayingStream("bob-main", "room-1", av.PlayOptions{}))
	require.NoError(t, engine.StartPlayingStream("bob-main", "room-1", av.PlayOptions{AudioOnly: true}))
	flush(t, engine)

	players := recorder.OfKind("player_state_update")
	require.Len(t, players, 3)
	assert.Equal(t, event.PlayerStateRequesting, players[0].(event.PlayerStateUpdate).State)
	assert.Equal(t, event.PlayerStateIdle, players[1].(event.PlayerStateUpdate).State)
	assert.Equal(t, event.CodeSuperseded, players[1].(event.PlayerStateUpdate).ErrorCode)
	assert.Equal(t, event.PlayerStateRequesting, players[2].(event.PlayerStateUpdate).State)

	// the engine never stopped in between
	assert.Len(t, recorder.OfKind("engine_state_update"), 1)
	assert.Equal(t, 1, engine.Streams().LiveInstances())
}

func TestEngineApplyStreamDeleteForgetsStreamState(t *testing.T) {
	engine, recorder := newTestEngine(t, false)

	require.NoError(t, engine.LoginRoom("room-1", event.User{UserID: "alice"}))
	streams := []event.Stream{{User: event.User{UserID: "bob"}, StreamID: "bob-main"}}
	require.NoError(t, engine.ApplyStreamUpdate("room-1", event.UpdateTypeAdd, streams))

	require.NoError(t, engine.Devices().RemoteCameraState("bob-main", event.RemoteDeviceStateMute))
	engine.SetRemoteVideoMode("bob-main", relay.RemoteVideoEncoded)
	engine.Meter().ObserveRemote("bob-main", []int16{1000, -1000, 1000, -1000})

	require.NoError(t, engine.ApplyStreamUpdate("room-1", event.UpdateTypeDelete, streams))
	flush(t, engine)

	_, hasCamera, _, _ := engine.Devices().RemoteState("bob-main")
	assert.False(t, hasCamera)
	assert.Equal(t, relay.RemoteVideoRaw, engine.Relay().RemoteVideoMode("bob-main"))
	_, measured := engine.Meter().RemoteSoundLevel("bob-main")
	assert.False(t, measured)

	assert.Len(t, recorder.OfKind("room_stream_update"), 2)

	assert.Error(t, engine.ApplyStreamUpdate("room-2", event.UpdateTypeAdd, streams))
}

func TestEngineMonitors(t *testing.T) {
	engine, _ := newTestEngine(t, false)

	require.NoError(t, engine.StartSoundLevelMonitor())
	assert.True(t, engine.Sampler().Armed(sampler.CapturedSoundLevel))
	assert.True(t, engine.Sampler().Armed(sampler.RemoteSoundLevel))
	mask := engine.Relay().AudioDataMask()
	assert.NotZero(t, mask&relay.AudioDataCaptured)
	assert.NotZero(t, mask&relay.AudioDataPlayer)

	require.NoError(t, engine.StartAudioSpectrumMonitor())
	assert.True(t, engine.Sampler().Armed(sampler.CapturedSpectrum))
	require.NoError(t, engine.StartMixerSoundLevelMonitor())
	assert.True(t, engine.Sampler().Armed(sampler.MixerSoundLevel))

	engine.StopSoundLevelMonitor()
	engine.StopAudioSpectrumMonitor()
	engine.StopMixerSoundLevelMonitor()
	assert.False(t, engine.Sampler().Armed(sampler.CapturedSoundLevel))
	assert.False(t, engine.Sampler().Armed(sampler.RemoteSpectrum))
	assert.False(t, engine.Sampler().Armed(sampler.MixerSoundLevel))
	assert.Zero(t, engine.Relay().AudioDataMask())
}

func TestEngineMonitorsReleaseAudioDataTheyEnabled(t *testing.T) {
	engine, _ := newTestEngine(t, false)
	engine.EnableAudioDataCallback(relay.AudioDataMixed)

	require.NoError(t, engine.StartSoundLevelMonitor())
	require.NoError(t, engine.StartAudioSpectrumMonitor())
	assert.Equal(t, relay.AudioDataMixed|relay.AudioDataCaptured|relay.AudioDataPlayer, engine.Relay().AudioDataMask())

	// still needed by the spectrum monitor
	engine.StopSoundLevelMonitor()
	assert.Equal(t, relay.AudioDataMixed|relay.AudioDataCaptured|relay.AudioDataPlayer, engine.Relay().AudioDataMask())

	engine.StopAudioSpectrumMonitor()
	assert.Equal(t, relay.AudioDataMixed, engine.Relay().AudioDataMask())

	// flavours the application asked for survive the monitors
	engine.EnableAudioDataCallback(relay.AudioDataCaptured)
	require.NoError(t, engine.StartSoundLevelMonitor())
	engine.StopSoundLevelMonitor()
	assert.Equal(t, relay.AudioDataCaptured, engine.Relay().AudioDataMask())

	// changing the application mask keeps what a running monitor holds
	require.NoError(t, engine.StartSoundLevelMonitor())
	engine.EnableAudioDataCallback(0)
	assert.Equal(t, relay.AudioDataCaptured|relay.AudioDataPlayer, engine.Relay().AudioDataMask())
	engine.StopSoundLevelMonitor()
	assert.Zero(t, engine.Relay().AudioDataMask())
}

func TestEngineMediaPlayer(t *testing.T) {
	engine, recorder := newTestEngine(t, false)

	h := engine.CreateMediaPlayer()
	require.NoError(t, engine.Streams().MediaPlayerStateChanged(h, event.MediaPlayerStatePlaying, 0))
	require.NoError(t, engine.DestroyMediaPlayer(h))
	assert.Error(t, engine.DestroyMediaPlayer(h))
	flush(t, engine)

	assert.Len(t, recorder.OfKind("media_player_state_update"), 1)
	assert.Empty(t, recorder.OfKind("engine_state_update"))
}

func TestEngineLogoutSparesInstancesOfNewerLogin(t *testing.T) {
	engine, recorder := newTestEngine(t, false)
	alice := event.User{UserID: "alice"}

	require.NoError(t, engine.LoginRoom("room-1", alice))
	require.NoError(t, engine.StartPublishingStream("s1", "room-1", event.PublishChannelMain))

	// the room is joined again and publishes before the ended session's
	// instances are canceled
	engine.Sessions().OnTerminate(func(roomID string, session arena.Handle, code int) {
		require.NoError(t, engine.LoginRoom(roomID, alice))
		require.NoError(t, engine.StartPublishingStream("s2", roomID, event.PublishChannelAux))
		engine.cancelSession(roomID, session, code)
	})
	require.NoError(t, engine.LogoutRoom("room-1"))
	engine.Sessions().OnTerminate(engine.cancelSession)
	flush(t, engine)

	_, ok := engine.Streams().Publisher("s1")
	assert.False(t, ok)
	p, ok := engine.Streams().Publisher("s2")
	require.True(t, ok)
	state, code := p.State()
	assert.Equal(t, event.PublisherStateRequesting, state)
	assert.Equal(t, event.CodeOK, code)

	var s1Idle bool
	for _, ev := range recorder.OfKind("publisher_state_update") {
		u := ev.(event.PublisherStateUpdate)
		if u.StreamID == "s2" {
			assert.NotEqual(t, event.PublisherStateIdle, u.State)
		}
		if u.StreamID == "s1" && u.State == event.PublisherStateIdle {
			assert.Equal(t, event.CodeCanceled, u.ErrorCode)
			s1Idle = true
		}
	}
	assert.True(t, s1Idle)
	assert.Equal(t, 1, engine.Streams().LiveInstances())
}
