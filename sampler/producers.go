package sampler

import (
	"time"

	"github.com/opd-ai/rtcevent/event"
	"github.com/opd-ai/rtcevent/registry"
)

func (s *Sampler) tickPublishQuality(q QualityProbe, now time.Time) {
	if q == nil {
		return
	}
	for _, ref := range s.reg.ActiveInstances(registry.KindPublisher) {
		streamID := ref.Instance.Key()
		sample, ok := q.PublishQuality(streamID)
		if !ok {
			continue
		}
		s.sink.Publish(event.PublisherQualityUpdate{StreamID: streamID, Quality: stamp(sample, streamID, now)})
	}
}

func (s *Sampler) tickPlayQuality(q QualityProbe, now time.Time) {
	if q == nil {
		return
	}
	for _, ref := range s.reg.ActiveInstances(registry.KindPlayer) {
		streamID := ref.Instance.Key()
		sample, ok := q.PlayQuality(streamID)
		if !ok {
			continue
		}
		s.sink.Publish(event.PlayerQualityUpdate{StreamID: streamID, Quality: stamp(sample, streamID, now)})
	}
}

func stamp(sample event.QualitySample, streamID string, now time.Time) event.QualitySample {
	sample.StreamID = streamID
	if sample.Timestamp.IsZero() {
		sample.Timestamp = now
	}
	return sample
}

func (s *Sampler) tickOnlineCount() {
	for _, ref := range s.reg.ActiveInstances(registry.KindSession) {
		roomID := ref.Instance.Key()
		count, err := s.reg.OnlineCount(roomID)
		if err != nil {
			continue
		}
		s.sink.Publish(event.RoomOnlineUserCountUpdate{RoomID: roomID, Count: count})
	}
}

func (s *Sampler) publishing() bool {
	return len(s.reg.ActiveInstances(registry.KindPublisher)) > 0
}

func (s *Sampler) playingStreams() []string {
	refs := s.reg.ActiveInstances(registry.KindPlayer)
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ref.Instance.Key())
	}
	return out
}

func (s *Sampler) tickCapturedSoundLevel(l LevelProbe) {
	if l == nil || !s.publishing() {
		return
	}
	if v, ok := l.CapturedSoundLevel(); ok {
		s.sink.Publish(event.CapturedSoundLevelUpdate{SoundLevel: event.ClampSoundLevel(v)})
	}
}

func (s *Sampler) tickCapturedSpectrum(l LevelProbe) {
	if l == nil || !s.publishing() {
		return
	}
	if v, ok := l.CapturedSpectrum(); ok {
		s.sink.Publish(event.CapturedAudioSpectrumUpdate{Spectrum: event.ClampSpectrum(v)})
	}
}

// tickRemoteSoundLevel emits one map holding exactly the Playing streams.
// Streams without a measurement report 0.
func (s *Sampler) tickRemoteSoundLevel(l LevelProbe) {
	streams := s.playingStreams()
	if l == nil || len(streams) == 0 {
		return
	}
	levels := make(map[string]float32, len(streams))
	for _, id := range streams {
		v, _ := l.RemoteSoundLevel(id)
		levels[id] = event.ClampSoundLevel(v)
	}
	s.sink.Publish(event.RemoteSoundLevelUpdate{SoundLevels: levels})
}

func (s *Sampler) tickRemoteSpectrum(l LevelProbe) {
	streams := s.playingStreams()
	if l == nil || len(streams) == 0 {
		return
	}
	spectrums := make(map[string]event.AudioSpectrum, len(streams))
	for _, id := range streams {
		v, _ := l.RemoteSpectrum(id)
		spectrums[id] = event.ClampSpectrum(v)
	}
	s.sink.Publish(event.RemoteAudioSpectrumUpdate{Spectrums: spectrums})
}

func (s *Sampler) tickMixerSoundLevel(m MixerProbe) {
	if m == nil {
		return
	}
	levels, ok := m.MixerSoundLevels()
	if !ok {
		return
	}
	out := make(map[uint32]float32, len(levels))
	for id, v := range levels {
		out[id] = event.ClampSoundLevel(v)
	}
	s.sink.Publish(event.MixerSoundLevelUpdate{SoundLevels: out})
}
