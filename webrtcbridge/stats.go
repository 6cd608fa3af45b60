package webrtcbridge

import (
	"sync"
	"time"

	"github.com/opd-ai/rtcevent/event"
	"github.com/pion/rtp"
)

// Quality levels derived from the packet loss rate of a window.
const (
	QualityExcellent event.QualityLevel = iota
	QualityGood
	QualityMedium
	QualityBad
	QualityDie
)

func qualityFor(lossRate float64, packets uint64) event.QualityLevel {
	switch {
	case packets == 0:
		return QualityDie
	case lossRate < 0.01:
		return QualityExcellent
	case lossRate < 0.03:
		return QualityGood
	case lossRate < 0.08:
		return QualityMedium
	case lossRate < 0.15:
		return QualityBad
	default:
		return QualityDie
	}
}

// streamStats accumulates RTP counters of one stream over a sampling window.
type streamStats struct {
	mu    sync.Mutex
	audio bool
	since time.Time

	packets uint64
	bytes   uint64
	frames  uint64

	started bool
	lastSeq uint16
	cycles  int64
	baseSeq int64
	maxSeq  int64
}

func newStreamStats(audio bool, now time.Time) *streamStats {
	return &streamStats{audio: audio, since: now}
}

func (s *streamStats) observe(pkt *rtp.Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.packets++
	s.bytes += uint64(len(pkt.Payload))
	if s.audio || pkt.Marker {
		s.frames++
	}

	seq := pkt.SequenceNumber
	if !s.started {
		s.started = true
		s.lastSeq = seq
		s.baseSeq = int64(seq)
		s.maxSeq = int64(seq)
		return
	}
	if seq < s.lastSeq && s.lastSeq-seq > 0x8000 {
		s.cycles++
	}
	s.lastSeq = seq
	if ext := s.cycles<<16 | int64(seq); ext > s.maxSeq {
		s.maxSeq = ext
	}
}

// sample returns the window's measurements and starts a new window. It
// reports false when no time has elapsed.
func (s *streamStats) sample(streamID string, now time.Time) (event.QualitySample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := now.Sub(s.since).Seconds()
	if elapsed <= 0 {
		return event.QualitySample{}, false
	}

	var lossRate float64
	if s.started {
		expected := s.maxSeq - s.baseSeq + 1
		if lost := expected - int64(s.packets); expected > 0 && lost > 0 {
			lossRate = float64(lost) / float64(expected)
		}
	}

	q := event.QualitySample{
		StreamID:       streamID,
		Timestamp:      now,
		PacketLossRate: lossRate,
		Level:          qualityFor(lossRate, s.packets),
	}
	fps := float64(s.frames) / elapsed
	kbps := float64(s.bytes) * 8 / 1000 / elapsed
	if s.audio {
		q.AudioFPS, q.AudioKBPS = fps, kbps
	} else {
		q.VideoFPS, q.VideoKBPS = fps, kbps
	}

	s.since = now
	s.packets, s.bytes, s.frames = 0, 0, 0
	s.started = false
	s.cycles = 0
	return q, true
}

// merge combines the audio and video samples of one stream.
func merge(a, v event.QualitySample) event.QualitySample {
	out := a
	out.VideoFPS, out.VideoKBPS = v.VideoFPS, v.VideoKBPS
	if v.PacketLossRate > out.PacketLossRate {
		out.PacketLossRate = v.PacketLossRate
	}
	if v.Level > out.Level {
		out.Level = v.Level
	}
	return out
}
