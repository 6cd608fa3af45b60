package level

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/rtcevent/event"
	"github.com/opd-ai/rtcevent/relay"
)

type measurement struct {
	level    atomic.Uint32
	hasLevel atomic.Bool
	spectrum atomic.Pointer[event.AudioSpectrum]
}

func (m *measurement) observe(samples []int16, withSpectrum bool) {
	m.level.Store(math.Float32bits(soundLevel(samples)))
	m.hasLevel.Store(true)
	if withSpectrum {
		s := spectrum(samples)
		m.spectrum.Store(&s)
	}
}

func (m *measurement) soundLevel() (float32, bool) {
	if !m.hasLevel.Load() {
		return 0, false
	}
	return math.Float32frombits(m.level.Load()), true
}

func (m *measurement) audioSpectrum() (event.AudioSpectrum, bool) {
	s := m.spectrum.Load()
	if s == nil {
		return nil, false
	}
	out := make(event.AudioSpectrum, len(*s))
	copy(out, *s)
	return out, true
}

// Meter keeps the latest sound level and spectrum of captured audio and of
// each remote stream. It implements relay.AudioDataHandler; only captured
// and per-stream player audio are measured.
type Meter struct {
	relay.NopAudioDataHandler

	spectrumEnabled atomic.Bool
	captured        measurement
	remote          sync.Map // stream ID -> *measurement

	mixerMu sync.Mutex
	mixer   map[uint32]float32
}

// NewMeter creates a meter. Spectrum analysis is off until EnableSpectrum.
func NewMeter() *Meter {
	return &Meter{}
}

// EnableSpectrum turns spectrum analysis on or off.
func (m *Meter) EnableSpectrum(enabled bool) {
	m.spectrumEnabled.Store(enabled)
}

// OnCapturedAudioData measures captured PCM.
func (m *Meter) OnCapturedAudioData(data []byte, _ relay.AudioFrameParam) {
	m.captured.observe(pcm16(data), m.spectrumEnabled.Load())
}

// OnPlayerAudioData measures decoded PCM of one remote stream.
func (m *Meter) OnPlayerAudioData(data []byte, _ relay.AudioFrameParam, streamID string) {
	m.ObserveRemote(streamID, pcm16(data))
}

// ObserveRemote measures decoded samples of streamID.
func (m *Meter) ObserveRemote(streamID string, samples []int16) {
	v, ok := m.remote.Load(streamID)
	if !ok {
		v, _ = m.remote.LoadOrStore(streamID, &measurement{})
	}
	v.(*measurement).observe(samples, m.spectrumEnabled.Load())
}

// Forget drops the measurements of streamID.
func (m *Meter) Forget(streamID string) {
	m.remote.Delete(streamID)
}

// SetMixerSoundLevels records the per-source levels reported by the stream
// mixer, keyed by sound level ID.
func (m *Meter) SetMixerSoundLevels(levels map[uint32]float32) {
	next := make(map[uint32]float32, len(levels))
	for id, v := range levels {
		next[id] = event.ClampSoundLevel(v)
	}
	m.mixerMu.Lock()
	m.mixer = next
	m.mixerMu.Unlock()
}

// CapturedSoundLevel returns the latest captured level.
func (m *Meter) CapturedSoundLevel() (float32, bool) {
	return m.captured.soundLevel()
}

// CapturedSpectrum returns the latest captured spectrum.
func (m *Meter) CapturedSpectrum() (event.AudioSpectrum, bool) {
	return m.captured.audioSpectrum()
}

// RemoteSoundLevel returns the latest level of streamID.
func (m *Meter) RemoteSoundLevel(streamID string) (float32, bool) {
	v, ok := m.remote.Load(streamID)
	if !ok {
		return 0, false
	}
	return v.(*measurement).soundLevel()
}

// RemoteSpectrum returns the latest spectrum of streamID.
func (m *Meter) RemoteSpectrum(streamID string) (event.AudioSpectrum, bool) {
	v, ok := m.remote.Load(streamID)
	if !ok {
		return nil, false
	}
	return v.(*measurement).audioSpectrum()
}

// MixerSoundLevels returns a copy of the last mixer levels, or false if the
// mixer never reported.
func (m *Meter) MixerSoundLevels() (map[uint32]float32, bool) {
	m.mixerMu.Lock()
	defer m.mixerMu.Unlock()
	if m.mixer == nil {
		return nil, false
	}
	out := make(map[uint32]float32, len(m.mixer))
	for id, v := range m.mixer {
		out[id] = v
	}
	return out, true
}
