package av

import (
	"sync"
	"sync/atomic"
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

func (s *sliceSink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Kind())
	}
	return out
}

func (s *sliceSink) count(kind string) int {
	n := 0
	for _, k := range s.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func (s *sliceSink) publisherStates() []event.PublisherStateUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.PublisherStateUpdate
	for _, ev := range s.events {
		if u, ok := ev.(event.PublisherStateUpdate); ok {
			out = append(out, u)
		}
	}
	return out
}

func (s *sliceSink) playerStates() []event.PlayerStateUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.PlayerStateUpdate
	for _, ev := range s.events {
		if u, ok := ev.(event.PlayerStateUpdate); ok {
			out = append(out, u)
		}
	}
	return out
}

func (s *sliceSink) reset() {
	s.mu.Lock()
	s.events = nil
	s.mu.Unlock()
}

type fakeSession struct {
	room string
}

func (f *fakeSession) Kind() registry.Kind { return registry.KindSession }
func (f *fakeSession) Key() string         { return f.room }
func (f *fakeSession) Active() bool        { return true }

type captureLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *captureLog) StartCapture(ch event.PublishChannel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "start:"+channelName(ch))
}

func (c *captureLog) StopCapture(ch event.PublishChannel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "stop:"+channelName(ch))
}

func (c *captureLog) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func channelName(ch event.PublishChannel) string {
	if ch == event.PublishChannelAux {
		return "aux"
	}
	return "main"
}

func newTestManager(t *testing.T, rooms ...string) (*Manager, *registry.Registry, *sliceSink) {
	t.Helper()
	reg := registry.New()
	for _, room := range rooms {
		_, err := reg.AttachSession(room, &fakeSession{room: room})
		require.NoError(t, err)
	}
	sink := &sliceSink{}
	return NewManager(reg, sink), reg, sink
}

func TestStartPublishingRequiresSession(t *testing.T) {
	m, _, sink := newTestManager(t)

	err := m.StartPublishing("nowhere", "s1", event.PublishChannelMain)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Empty(t, sink.kinds())
}

func TestStartPublishingValidation(t *testing.T) {
	m, _, _ := newTestManager(t, "r1")

	assert.ErrorIs(t, m.StartPublishing("r1", "", event.PublishChannelMain), limits.ErrEmpty)
	assert.ErrorIs(t, m.StartPublishing("r1", "s1", event.PublishChannel(7)), ErrInvalidChannel)
}

func TestPublishRetryWithErrorCode(t *testing.T) {
	m, _, sink := newTestManager(t, "r1")

	require.NoError(t, m.StartPublishing("r1", "s1", event.PublishChannelMain))
	require.NoError(t, m.PublishEstablished("s1"))
	require.NoError(t, m.PublishRetrying("s1", 5))
	require.NoError(t, m.PublishRetrying("s1", 5))
	require.NoError(t, m.PublishRetrying("s1", 0))
	require.NoError(t, m.PublishEstablished("s1"))

	states := sink.publisherStates()
	require.Len(t, states, 5)
	assert.Equal(t, event.PublisherStateRequesting, states[0].State)
	assert.Equal(t, event.PublisherStatePublishing, states[1].State)
	assert.Equal(t, event.PublisherStateRequesting, states[2].State)
	assert.Equal(t, 5, states[2].ErrorCode)
	assert.Equal(t, event.PublisherStateRequesting, states[3].State)
	assert.Equal(t, 5, states[3].ErrorCode)
	assert.Equal(t, event.PublisherStatePublishing, states[4].State)
	for _, s := range states {
		assert.Equal(t, "s1", s.StreamID)
		assert.JSONEq(t, "{}", string(s.ExtendedData))
	}
}

func TestFirstFramesFireOnceAcrossRetries(t *testing.T) {
	m, _, sink := newTestManager(t, "r1")

	require.NoError(t, m.StartPublishing("r1", "s1", event.PublishChannelMain))
	assert.ErrorIs(t, m.CapturedAudioFrame(event.PublishChannelMain), ErrInactive)

	require.NoError(t, m.PublishEstablished("s1"))
	for i := 0; i < 3; i++ {
		require.NoError(t, m.CapturedAudioFrame(event.PublishChannelMain))
		require.NoError(t, m.CapturedVideoFrame(event.PublishChannelMain, 640, 480))
	}
	require.NoError(t, m.PublishRetrying("s1", 0))
	require.NoError(t, m.PublishEstablished("s1"))
	require.NoError(t, m.CapturedAudioFrame(event.PublishChannelMain))
	require.NoError(t, m.CapturedVideoFrame(event.PublishChannelMain, 640, 480))

	assert.Equal(t, 1, sink.count("publisher_captured_audio_first_frame"))
	assert.Equal(t, 1, sink.count("publisher_captured_video_first_frame"))
	assert.Equal(t, 1, sink.count("publisher_video_size_changed"))

	p, ok := m.Publisher("s1")
	require.True(t, ok)
	audio, video := p.LatchStates()
	assert.Equal(t, LatchFired, audio)
	assert.Equal(t, LatchFired, video)
}

func TestPublisherSizeChanges(t *testing.T) {
	m, _, sink := newTestManager(t, "r1")
	require.NoError(t, m.StartPublishing("r1", "s1", event.PublishChannelAux))
	require.NoError(t, m.PublishEstablished("s1"))

	for _, sz := range [][2]int{{640, 480}, {640, 480}, {1280, 720}, {640, 480}} {
		require.NoError(t, m.CapturedVideoFrame(event.PublishChannelAux, sz[0], sz[1]))
	}

	var sizes []event.PublisherVideoSizeChanged
	sink.mu.Lock()
	for _, ev := range sink.events {
		if s, ok := ev.(event.PublisherVideoSizeChanged); ok {
			sizes = append(sizes, s)
		}
	}
	sink.mu.Unlock()

	require.Len(t, sizes, 3)
	assert.Equal(t, 1280, sizes[1].Width)
	assert.Equal(t, event.PublishChannelAux, sizes[2].Channel)
}

func TestStartPublishingSupersedes(t *testing.T) {
	m, reg, sink := newTestManager(t, "r1")

	require.NoError(t, m.StartPublishing("r1", "s1", event.PublishChannelMain))
	require.NoError(t, m.StartPublishing("r1", "s2", event.PublishChannelMain))

	states := sink.publisherStates()
	require.Len(t, states, 3)
	assert.Equal(t, "s1", states[1].StreamID)
	assert.Equal(t, event.PublisherStateIdle, states[1].State)
	assert.Equal(t, event.CodeSuperseded, states[1].ErrorCode)
	assert.Equal(t, "s2", states[2].StreamID)
	assert.Equal(t, event.PublisherStateRequesting, states[2].State)

	_, ok := m.Publisher("s1")
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Count(registry.KindPublisher))
	assert.Equal(t, 1, m.LiveInstances())
	assert.ErrorIs(t, m.PublishEstablished("s1"), ErrNotPublishing)
}

func TestStartPlayingSupersedesSameStream(t *testing.T) {
	m, _, sink := newTestManager(t, "r1")

	require.NoError(t, m.StartPlaying("r1", "s1", PlayOptions{}))
	require.NoError(t, m.PlayEstablished("s1"))
	first, _ := m.Player("s1")
	require.NoError(t, m.StartPlaying("r1", "s1", PlayOptions{AudioOnly: true}))

	states := sink.playerStates()
	require.Len(t, states, 4)
	assert.Equal(t, event.PlayerStateIdle, states[2].State)
	assert.Equal(t, event.CodeSuperseded, states[2].ErrorCode)
	assert.Equal(t, event.PlayerStateRequesting, states[3].State)

	second, ok := m.Player("s1")
	require.True(t, ok)
	assert.NotSame(t, first, second)
	assert.True(t, second.AudioOnly())
	st, code := first.State()
	assert.Equal(t, event.PlayerStateIdle, st)
	assert.Equal(t, event.CodeSuperseded, code)
}

func TestPlayerFirstFramesAndAudioOnly(t *testing.T) {
	m, _, sink := newTestManager(t, "r1")

	require.NoError(t, m.StartPlaying("r1", "v", PlayOptions{}))
	require.NoError(t, m.StartPlaying("r1", "a", PlayOptions{AudioOnly: true}))
	assert.ErrorIs(t, m.ReceivedVideoFrame("v", 320, 240), ErrInactive)

	require.NoError(t, m.PlayEstablished("v"))
	require.NoError(t, m.PlayEstablished("a"))
	for i := 0; i < 2; i++ {
		require.NoError(t, m.ReceivedAudioFrame("v"))
		require.NoError(t, m.ReceivedVideoFrame("v", 320, 240))
		require.NoError(t, m.RenderedVideoFrame("v"))
		require.NoError(t, m.ReceivedVideoFrame("a", 320, 240))
	}

	assert.Equal(t, 1, sink.count("player_recv_audio_first_frame"))
	assert.Equal(t, 2, sink.count("player_recv_video_first_frame"))
	assert.Equal(t, 1, sink.count("player_render_video_first_frame"))
	assert.Equal(t, 1, sink.count("player_video_size_changed"))
}

func TestReceivedSEICopiesPayload(t *testing.T) {
	m, _, sink := newTestManager(t, "r1")
	require.NoError(t, m.StartPlaying("r1", "s1", PlayOptions{}))

	payload := []byte("hello")
	assert.ErrorIs(t, m.ReceivedSEI("s1", payload), ErrInactive)
	require.NoError(t, m.PlayEstablished("s1"))
	require.NoError(t, m.ReceivedSEI("s1", payload))
	require.NoError(t, m.ReceivedSEI("s1", payload))
	payload[0] = 'j'

	assert.ErrorIs(t, m.ReceivedSEI("s1", nil), limits.ErrEmpty)
	assert.ErrorIs(t, m.ReceivedSEI("s1", make([]byte, limits.MaxSEIPayload+1)), limits.ErrTooLarge)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	var units []event.PlayerRecvSEI
	for _, ev := range sink.events {
		if u, ok := ev.(event.PlayerRecvSEI); ok {
			units = append(units, u)
		}
	}
	require.Len(t, units, 2)
	assert.Equal(t, "hello", string(units[0].Data))
	assert.Equal(t, "hello", string(units[1].Data))
}

func TestMediaEventRequiresPlaying(t *testing.T) {
	m, _, sink := newTestManager(t, "r1")
	require.NoError(t, m.StartPlaying("r1", "s1", PlayOptions{}))

	assert.ErrorIs(t, m.MediaEvent("s1", event.PlayerMediaEventVideoBreakOccur), ErrInactive)
	require.NoError(t, m.PlayEstablished("s1"))
	require.NoError(t, m.MediaEvent("s1", event.PlayerMediaEventVideoBreakOccur))
	require.NoError(t, m.MediaEvent("s1", event.PlayerMediaEventVideoBreakResume))
	assert.Equal(t, 2, sink.count("player_media_event"))
}

func TestEngineStartStop(t *testing.T) {
	m, _, sink := newTestManager(t, "r1")

	require.NoError(t, m.StartPublishing("r1", "p1", event.PublishChannelMain))
	require.NoError(t, m.StartPlaying("r1", "s1", PlayOptions{}))
	require.NoError(t, m.StopPublishing(event.PublishChannelMain))
	require.NoError(t, m.PlayFailed("s1", 1002))

	kinds := sink.kinds()
	assert.Equal(t, []string{
		"engine_state_update",
		"publisher_state_update",
		"player_state_update",
		"publisher_state_update",
		"player_state_update",
		"engine_state_update",
	}, kinds)
	assert.Equal(t, 0, m.LiveInstances())

	sink.mu.Lock()
	last := sink.events[len(sink.events)-1].(event.EngineStateUpdate)
	sink.mu.Unlock()
	assert.Equal(t, event.EngineStateStop, last.State)
}

func TestStopIsTerminal(t *testing.T) {
	m, _, sink := newTestManager(t, "r1")

	require.NoError(t, m.StartPlaying("r1", "s1", PlayOptions{}))
	require.NoError(t, m.StopPlaying("s1"))
	assert.ErrorIs(t, m.StopPlaying("s1"), ErrNotPlaying)
	assert.ErrorIs(t, m.PlayEstablished("s1"), ErrNotPlaying)
	assert.Len(t, sink.playerStates(), 2)
}

func sessionHandle(t *testing.T, reg *registry.Registry, room string) arena.Handle {
	t.Helper()
	ref, ok := reg.Session(room)
	require.True(t, ok)
	return ref.Handle
}

func TestCancelSession(t *testing.T) {
	m, reg, sink := newTestManager(t, "r1", "r2")
	capture := &captureLog{}
	m.SetCaptureController(capture)
	r1 := sessionHandle(t, reg, "r1")
	r2 := sessionHandle(t, reg, "r2")

	require.NoError(t, m.StartPublishing("r1", "p1", event.PublishChannelMain))
	require.NoError(t, m.PublishEstablished("p1"))
	require.NoError(t, m.StartPlaying("r1", "s1", PlayOptions{}))
	require.NoError(t, m.StartPlaying("r2", "s2", PlayOptions{}))
	sink.reset()

	m.CancelSession(r1, event.CodeCanceled)

	pubs := sink.publisherStates()
	require.Len(t, pubs, 1)
	assert.Equal(t, event.PublisherStateIdle, pubs[0].State)
	assert.Equal(t, event.CodeCanceled, pubs[0].ErrorCode)
	plays := sink.playerStates()
	require.Len(t, plays, 1)
	assert.Equal(t, "s1", plays[0].StreamID)

	assert.Equal(t, []string{"start:main", "stop:main"}, capture.get())
	assert.Empty(t, reg.InstancesOfSession(r1))
	assert.Len(t, reg.InstancesOfSession(r2), 1)
	assert.Equal(t, 1, m.LiveInstances())
	assert.Equal(t, 0, sink.count("engine_state_update"))

	m.CancelSession(r2, event.CodeCanceled)
	assert.Equal(t, 1, sink.count("engine_state_update"))
}

func TestCancelSessionSparesNewerLoginOfSameRoom(t *testing.T) {
	m, reg, sink := newTestManager(t, "r1")
	old := sessionHandle(t, reg, "r1")

	require.NoError(t, m.StartPublishing("r1", "s1", event.PublishChannelMain))
	require.NoError(t, m.StartPlaying("r1", "remote", PlayOptions{}))

	// the old session ends and the room is joined again before its
	// instances are canceled
	require.True(t, reg.Detach(old))
	_, err := reg.AttachSession("r1", &fakeSession{room: "r1"})
	require.NoError(t, err)
	require.NoError(t, m.StartPublishing("r1", "s2", event.PublishChannelAux))
	sink.reset()

	m.CancelSession(old, event.CodeCanceled)

	_, ok := m.Publisher("s1")
	assert.False(t, ok)
	_, ok = m.Player("remote")
	assert.False(t, ok)
	p, ok := m.Publisher("s2")
	require.True(t, ok)
	state, _ := p.State()
	assert.Equal(t, event.PublisherStateRequesting, state)

	for _, u := range sink.publisherStates() {
		assert.NotEqual(t, "s2", u.StreamID, "newer login's publisher must not be canceled")
	}
	assert.Equal(t, 1, m.LiveInstances())
}

func TestCaptureFollowsPublishing(t *testing.T) {
	m, _, _ := newTestManager(t, "r1")
	capture := &captureLog{}
	m.SetCaptureController(capture)

	require.NoError(t, m.StartPublishing("r1", "p1", event.PublishChannelAux))
	assert.Empty(t, capture.get())
	require.NoError(t, m.PublishEstablished("p1"))
	require.NoError(t, m.PublishRetrying("p1", 0))
	require.NoError(t, m.PublishEstablished("p1"))
	require.NoError(t, m.StartPublishing("r1", "p2", event.PublishChannelAux))

	assert.Equal(t, []string{"start:aux", "stop:aux"}, capture.get())
}

func TestRelayCDNStateChanged(t *testing.T) {
	m, _, sink := newTestManager(t, "r1")
	require.NoError(t, m.StartPublishing("r1", "p1", event.PublishChannelMain))

	a := event.RelayCDNInfo{URL: "rtmp://a", State: event.RelayCDNStateRelayRequesting}
	b := event.RelayCDNInfo{URL: "rtmp://b", State: event.RelayCDNStateRelaying}
	require.NoError(t, m.RelayCDNStateChanged("p1", a))
	require.NoError(t, m.RelayCDNStateChanged("p1", a))
	require.NoError(t, m.RelayCDNStateChanged("p1", b))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	var updates []event.PublisherRelayCDNStateUpdate
	for _, ev := range sink.events {
		if u, ok := ev.(event.PublisherRelayCDNStateUpdate); ok {
			updates = append(updates, u)
		}
	}
	require.Len(t, updates, 2)
	assert.Len(t, updates[1].Infos, 2)
	assert.Equal(t, "rtmp://a", updates[1].Infos[0].URL)
}

func TestMediaPlayerLifecycle(t *testing.T) {
	m, _, sink := newTestManager(t)

	h := m.CreateMediaPlayer()
	assert.ErrorIs(t, m.MediaPlayerProgress(h, 10), ErrInactive)
	require.NoError(t, m.MediaPlayerStateChanged(h, event.MediaPlayerStatePlaying, 0))
	require.NoError(t, m.MediaPlayerStateChanged(h, event.MediaPlayerStatePlaying, 0))
	require.NoError(t, m.MediaPlayerProgress(h, 1000))
	require.NoError(t, m.MediaPlayerNetworkEvent(h, event.MediaPlayerNetworkEventBufferBegin))

	p, ok := m.MediaPlayer(h)
	require.True(t, ok)
	assert.True(t, p.Active())
	assert.Equal(t, uint64(1000), p.Progress())

	require.NoError(t, m.DestroyMediaPlayer(h))
	assert.ErrorIs(t, m.DestroyMediaPlayer(h), ErrMediaPlayerNotFound)
	assert.ErrorIs(t, m.MediaPlayerStateChanged(h, event.MediaPlayerStatePausing, 0), ErrMediaPlayerNotFound)

	h2 := m.CreateMediaPlayer()
	assert.Equal(t, h.Index, h2.Index)
	assert.NotEqual(t, h.Generation, h2.Generation)

	assert.Equal(t, []string{
		"media_player_state_update",
		"media_player_playing_progress",
		"media_player_network_event",
	}, sink.kinds())
}

func TestConcurrentSignalsKeepSingleInstance(t *testing.T) {
	m, reg, sink := newTestManager(t, "r1")

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if err := m.StartPlaying("r1", "s1", PlayOptions{}); err != nil {
					failures.Add(1)
				}
				_ = m.PlayEstablished("s1")
				_ = m.ReceivedAudioFrame("s1")
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, failures.Load())
	assert.Equal(t, 1, reg.Count(registry.KindPlayer))
	assert.Equal(t, 1, m.LiveInstances())
	assert.Equal(t, 1, sink.count("engine_state_update"))
}
