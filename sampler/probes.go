package sampler

import "github.com/opd-ai/rtcevent/event"

// QualityProbe reads per-stream quality measurements from the transport
// collaborator. A false result means no measurement is available yet.
type QualityProbe interface {
	PublishQuality(streamID string) (event.QualitySample, bool)
	PlayQuality(streamID string) (event.QualitySample, bool)
}

// LevelProbe reads the latest sound level and spectrum measurements.
type LevelProbe interface {
	CapturedSoundLevel() (float32, bool)
	CapturedSpectrum() (event.AudioSpectrum, bool)
	RemoteSoundLevel(streamID string) (float32, bool)
	RemoteSpectrum(streamID string) (event.AudioSpectrum, bool)
}

// MixerProbe reads the per-source levels of the stream mixer.
type MixerProbe interface {
	MixerSoundLevels() (map[uint32]float32, bool)
}

// Probes groups the measurement sources. Nil members disable the
// producers that depend on them.
type Probes struct {
	Quality QualityProbe
	Level   LevelProbe
	Mixer   MixerProbe
}
