package sampler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opd-ai/rtcevent/event"
	"github.com/opd-ai/rtcevent/registry"
	testsim "github.com/opd-ai/rtcevent/testing"
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

func (s *sliceSink) snapshot() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Event(nil), s.events...)
}

func (s *sliceSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type fakeInstance struct {
	kind   registry.Kind
	key    string
	active atomic.Bool
}

func (f *fakeInstance) Kind() registry.Kind { return f.kind }
func (f *fakeInstance) Key() string         { return f.key }
func (f *fakeInstance) Active() bool        { return f.active.Load() }

type fakeQuality struct{}

func (fakeQuality) PublishQuality(streamID string) (event.QualitySample, bool) {
	return event.QualitySample{VideoFPS: 15, Level: 1}, streamID != "unmeasured"
}

func (fakeQuality) PlayQuality(string) (event.QualitySample, bool) {
	return event.QualitySample{AudioKBPS: 48}, true
}

type fakeLevels struct {
	captured float32
	remote   map[string]float32
}

func (f *fakeLevels) CapturedSoundLevel() (float32, bool) { return f.captured, true }

func (f *fakeLevels) CapturedSpectrum() (event.AudioSpectrum, bool) {
	return event.AudioSpectrum{-1, 5, 1 << 31}, true
}

func (f *fakeLevels) RemoteSoundLevel(id string) (float32, bool) {
	v, ok := f.remote[id]
	return v, ok
}

func (f *fakeLevels) RemoteSpectrum(string) (event.AudioSpectrum, bool) { return nil, false }

type fakeMixer struct{}

func (fakeMixer) MixerSoundLevels() (map[uint32]float32, bool) {
	return map[uint32]float32{7: 120}, true
}

type fixture struct {
	reg   *registry.Registry
	sink  *sliceSink
	clock *testsim.ManualClock
	s     *Sampler
}

func newFixture(t *testing.T, probes Probes) *fixture {
	t.Helper()
	f := &fixture{
		reg:   registry.New(),
		sink:  &sliceSink{},
		clock: testsim.NewManualClock(time.Unix(1700000000, 0)),
	}
	f.s = New(f.reg, f.sink, Options{Probes: probes, TimeProvider: f.clock})
	t.Cleanup(f.s.Close)
	return f
}

func (f *fixture) session(t *testing.T, room string, connected bool) *fakeInstance {
	t.Helper()
	inst := &fakeInstance{kind: registry.KindSession, key: room}
	inst.active.Store(connected)
	_, err := f.reg.AttachSession(room, inst)
	require.NoError(t, err)
	return inst
}

func (f *fixture) publisher(room, stream string, ch event.PublishChannel, active bool) *fakeInstance {
	inst := &fakeInstance{kind: registry.KindPublisher, key: stream}
	inst.active.Store(active)
	session, _ := f.reg.Session(room)
	f.reg.AttachPublisher(session, stream, ch, inst)
	return inst
}

func (f *fixture) player(room, stream string, active bool) *fakeInstance {
	inst := &fakeInstance{kind: registry.KindPlayer, key: stream}
	inst.active.Store(active)
	session, _ := f.reg.Session(room)
	f.reg.AttachPlayer(session, stream, inst)
	return inst
}

func TestDefaultIntervals(t *testing.T) {
	f := newFixture(t, Probes{})
	assert.Equal(t, 3*time.Second, f.s.Interval(PublishQuality))
	assert.Equal(t, 3*time.Second, f.s.Interval(PlayQuality))
	assert.Equal(t, 30*time.Second, f.s.Interval(OnlineCount))
	assert.Equal(t, 100*time.Millisecond, f.s.Interval(CapturedSoundLevel))
	assert.Equal(t, 100*time.Millisecond, f.s.Interval(RemoteSpectrum))
	assert.Equal(t, 100*time.Millisecond, f.s.Interval(MixerSoundLevel))
}

func TestArmValidation(t *testing.T) {
	f := newFixture(t, Probes{})
	assert.ErrorIs(t, f.s.Arm(Producer(42)), ErrUnknownProducer)
	assert.ErrorIs(t, f.s.SetInterval(PlayQuality, 0), ErrInvalidInterval)
	assert.False(t, f.s.Armed(PlayQuality))

	require.NoError(t, f.s.Arm(PlayQuality))
	require.NoError(t, f.s.Arm(PlayQuality))
	assert.True(t, f.s.Armed(PlayQuality))
	assert.Equal(t, 1, f.clock.Tickers())

	require.NoError(t, f.s.Disarm(PlayQuality))
	assert.Equal(t, 0, f.clock.Tickers())

	f.s.Close()
	assert.ErrorIs(t, f.s.Arm(PlayQuality), ErrClosed)
}

func TestPublishQualityOnlyForPublishingStreams(t *testing.T) {
	f := newFixture(t, Probes{Quality: fakeQuality{}})
	f.session(t, "r1", true)
	f.publisher("r1", "live", event.PublishChannelMain, true)
	f.publisher("r1", "pending", event.PublishChannelAux, false)

	now := f.clock.Now()
	f.s.Tick(PublishQuality, now)

	events := f.sink.snapshot()
	require.Len(t, events, 1)
	q := events[0].(event.PublisherQualityUpdate)
	assert.Equal(t, "live", q.StreamID)
	assert.Equal(t, "live", q.Quality.StreamID)
	assert.Equal(t, now, q.Quality.Timestamp)
	assert.Equal(t, event.QualityLevel(1), q.Quality.Level)
}

func TestQualityWithoutProbeOrMeasurement(t *testing.T) {
	f := newFixture(t, Probes{})
	f.session(t, "r1", true)
	f.publisher("r1", "unmeasured", event.PublishChannelMain, true)

	f.s.Tick(PublishQuality, f.clock.Now())
	assert.Zero(t, f.sink.len())

	f.s.SetProbes(Probes{Quality: fakeQuality{}})
	f.s.Tick(PublishQuality, f.clock.Now())
	assert.Zero(t, f.sink.len())
}

func TestOnlineCountNeedsConnectedSession(t *testing.T) {
	f := newFixture(t, Probes{})
	f.session(t, "up", true)
	f.session(t, "down", false)
	require.NoError(t, f.reg.SetOnlineCount("up", 12))
	require.NoError(t, f.reg.SetOnlineCount("down", 3))

	f.s.Tick(OnlineCount, f.clock.Now())

	events := f.sink.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, event.RoomOnlineUserCountUpdate{RoomID: "up", Count: 12}, events[0])
}

func TestRemoteSoundLevelCoversExactlyPlayingStreams(t *testing.T) {
	levels := &fakeLevels{remote: map[string]float32{"a": 40, "b": 250, "gone": 10}}
	f := newFixture(t, Probes{Level: levels})
	f.session(t, "r1", true)

	f.s.Tick(RemoteSoundLevel, f.clock.Now())
	assert.Zero(t, f.sink.len(), "no playing stream, no event")

	f.player("r1", "a", true)
	f.player("r1", "b", true)
	f.player("r1", "c", true)
	f.player("r1", "waiting", false)
	f.s.Tick(RemoteSoundLevel, f.clock.Now())

	events := f.sink.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, map[string]float32{"a": 40, "b": 100, "c": 0},
		events[0].(event.RemoteSoundLevelUpdate).SoundLevels)

	f.s.Tick(RemoteSpectrum, f.clock.Now())
	events = f.sink.snapshot()
	require.Len(t, events, 2)
	spectrums := events[1].(event.RemoteAudioSpectrumUpdate).Spectrums
	assert.Len(t, spectrums, 3)
	assert.Empty(t, spectrums["c"])
}

func TestCapturedLevelsNeedPublishing(t *testing.T) {
	f := newFixture(t, Probes{Level: &fakeLevels{captured: -3}})
	f.session(t, "r1", true)
	pub := f.publisher("r1", "p", event.PublishChannelMain, false)

	f.s.Tick(CapturedSoundLevel, f.clock.Now())
	f.s.Tick(CapturedSpectrum, f.clock.Now())
	assert.Zero(t, f.sink.len())

	pub.active.Store(true)
	f.s.Tick(CapturedSoundLevel, f.clock.Now())
	f.s.Tick(CapturedSpectrum, f.clock.Now())

	events := f.sink.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, float32(0), events[0].(event.CapturedSoundLevelUpdate).SoundLevel)
	assert.Equal(t, event.AudioSpectrum{0, 5, event.MaxSpectrumValue},
		events[1].(event.CapturedAudioSpectrumUpdate).Spectrum)
}

func TestMixerSoundLevelClamped(t *testing.T) {
	f := newFixture(t, Probes{Mixer: fakeMixer{}})
	f.s.Tick(MixerSoundLevel, f.clock.Now())

	events := f.sink.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, map[uint32]float32{7: 100}, events[0].(event.MixerSoundLevelUpdate).SoundLevels)
}

func TestArmedProducerFiresAtCadence(t *testing.T) {
	f := newFixture(t, Probes{Quality: fakeQuality{}})
	f.session(t, "r1", true)
	f.player("r1", "s1", true)

	require.NoError(t, f.s.Arm(PlayQuality))
	f.clock.Advance(2 * time.Second)
	assert.Zero(t, f.sink.len())

	f.clock.Advance(10 * time.Second)
	assert.Eventually(t, func() bool { return f.sink.len() == 4 }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.s.Disarm(PlayQuality))
	f.clock.Advance(time.Minute)
	assert.Equal(t, 4, f.sink.len())
}

func TestSetIntervalRestartsArmedProducer(t *testing.T) {
	f := newFixture(t, Probes{Mixer: fakeMixer{}})

	require.NoError(t, f.s.Arm(MixerSoundLevel))
	require.NoError(t, f.s.SetInterval(MixerSoundLevel, time.Second))
	assert.Equal(t, 1, f.clock.Tickers())

	f.clock.Advance(500 * time.Millisecond)
	assert.Zero(t, f.sink.len())
	f.clock.Advance(500 * time.Millisecond)
	assert.Eventually(t, func() bool { return f.sink.len() == 1 }, time.Second, 5*time.Millisecond)
}
