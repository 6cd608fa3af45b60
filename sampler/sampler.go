// Package sampler runs the fixed-period producers of quality, online-count,
// sound level and spectrum events.
//
// Each producer has its own ticker and goroutine. On every tick it checks
// that it is armed and that its precondition holds (a Publishing or Playing
// stream, or a Connected session) and otherwise does nothing. Values are
// read from probes and the registry at tick time; levels and spectra are
// clamped before they are emitted.
package sampler

import (
	"fmt"
	"sync"
	"time"

	"github.com/opd-ai/rtcevent/clock"
	"github.com/opd-ai/rtcevent/event"
	"github.com/opd-ai/rtcevent/registry"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
)

// Producer identifies one periodic producer.
type Producer int

const (
	PublishQuality Producer = iota
	PlayQuality
	OnlineCount
	CapturedSoundLevel
	CapturedSpectrum
	RemoteSoundLevel
	RemoteSpectrum
	MixerSoundLevel
	producerCount
)

// String returns the string representation of Producer.
func (p Producer) String() string {
	switch p {
	case PublishQuality:
		return "publish_quality"
	case PlayQuality:
		return "play_quality"
	case OnlineCount:
		return "online_count"
	case CapturedSoundLevel:
		return "captured_sound_level"
	case CapturedSpectrum:
		return "captured_spectrum"
	case RemoteSoundLevel:
		return "remote_sound_level"
	case RemoteSpectrum:
		return "remote_spectrum"
	case MixerSoundLevel:
		return "mixer_sound_level"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// Intervals holds the period of every producer.
type Intervals struct {
	PublishQuality time.Duration
	PlayQuality    time.Duration
	OnlineCount    time.Duration
	SoundLevel     time.Duration
	Spectrum       time.Duration
	MixerLevel     time.Duration
}

// DefaultIntervals returns the standard producer periods.
func DefaultIntervals() Intervals {
	return Intervals{
		PublishQuality: 3 * time.Second,
		PlayQuality:    3 * time.Second,
		OnlineCount:    30 * time.Second,
		SoundLevel:     100 * time.Millisecond,
		Spectrum:       100 * time.Millisecond,
		MixerLevel:     100 * time.Millisecond,
	}
}

func (iv Intervals) of(p Producer) time.Duration {
	switch p {
	case PublishQuality:
		return iv.PublishQuality
	case PlayQuality:
		return iv.PlayQuality
	case OnlineCount:
		return iv.OnlineCount
	case CapturedSoundLevel, RemoteSoundLevel:
		return iv.SoundLevel
	case CapturedSpectrum, RemoteSpectrum:
		return iv.Spectrum
	case MixerSoundLevel:
		return iv.MixerLevel
	}
	return 0
}

// Options configures a Sampler.
type Options struct {
	Intervals    Intervals
	Probes       Probes
	TimeProvider clock.TimeProvider
}

type producer struct {
	interval time.Duration
	ticker   clock.Ticker
	done     chan struct{}
}

// Sampler owns the periodic producers.
type Sampler struct {
	reg   *registry.Registry
	sink  event.Sink
	clock clock.TimeProvider

	probeMu sync.RWMutex
	probes  Probes

	mu        sync.Mutex
	producers [producerCount]*producer
	intervals [producerCount]time.Duration
	closed    bool
	wg        conc.WaitGroup
}

// New creates a sampler with no producer armed.
func New(reg *registry.Registry, sink event.Sink, opts Options) *Sampler {
	s := &Sampler{
		reg:    reg,
		sink:   sink,
		clock:  clock.Resolve(opts.TimeProvider),
		probes: opts.Probes,
	}
	defaults := DefaultIntervals()
	for p := Producer(0); p < producerCount; p++ {
		d := opts.Intervals.of(p)
		if d <= 0 {
			d = defaults.of(p)
		}
		s.intervals[p] = d
	}

	logrus.WithFields(logrus.Fields{
		"function":          "sampler.New",
		"publish_quality":   s.intervals[PublishQuality].String(),
		"online_count":      s.intervals[OnlineCount].String(),
		"sound_level":       s.intervals[CapturedSoundLevel].String(),
		"spectrum":          s.intervals[CapturedSpectrum].String(),
		"mixer_sound_level": s.intervals[MixerSoundLevel].String(),
	}).Debug("Sampler created")
	return s
}

// SetProbes replaces the measurement sources.
func (s *Sampler) SetProbes(p Probes) {
	s.probeMu.Lock()
	defer s.probeMu.Unlock()
	s.probes = p
}

func (s *Sampler) currentProbes() Probes {
	s.probeMu.RLock()
	defer s.probeMu.RUnlock()
	return s.probes
}

// Arm starts producer p. Arming an armed producer is a no-op.
func (s *Sampler) Arm(p Producer) error {
	if p < 0 || p >= producerCount {
		return fmt.Errorf("%w: %d", ErrUnknownProducer, p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.producers[p] != nil {
		return nil
	}
	s.startLocked(p)

	logrus.WithFields(logrus.Fields{
		"function": "Arm",
		"producer": p.String(),
		"interval": s.intervals[p].String(),
	}).Info("Sampler producer armed")
	return nil
}

// Disarm stops producer p. A tick already running completes.
func (s *Sampler) Disarm(p Producer) error {
	if p < 0 || p >= producerCount {
		return fmt.Errorf("%w: %d", ErrUnknownProducer, p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(p)
	return nil
}

// Armed reports whether producer p is armed.
func (s *Sampler) Armed(p Producer) bool {
	if p < 0 || p >= producerCount {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.producers[p] != nil
}

// SetInterval changes the period of p. An armed producer restarts with the
// new period.
func (s *Sampler) SetInterval(p Producer, d time.Duration) error {
	if p < 0 || p >= producerCount {
		return fmt.Errorf("%w: %d", ErrUnknownProducer, p)
	}
	if d <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, d)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.intervals[p] = d
	if s.producers[p] != nil && !s.closed {
		s.stopLocked(p)
		s.startLocked(p)
	}
	return nil
}

// Interval returns the period of p.
func (s *Sampler) Interval(p Producer) time.Duration {
	if p < 0 || p >= producerCount {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intervals[p]
}

// Close disarms every producer and waits for their goroutines to exit.
func (s *Sampler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for p := Producer(0); p < producerCount; p++ {
		s.stopLocked(p)
	}
	s.mu.Unlock()

	s.wg.Wait()

	logrus.WithFields(logrus.Fields{
		"function": "sampler.Close",
	}).Info("Sampler closed")
}

func (s *Sampler) startLocked(p Producer) {
	pr := &producer{
		interval: s.intervals[p],
		ticker:   s.clock.NewTicker(s.intervals[p]),
		done:     make(chan struct{}),
	}
	s.producers[p] = pr
	s.wg.Go(func() { s.loop(p, pr) })
}

func (s *Sampler) stopLocked(p Producer) {
	pr := s.producers[p]
	if pr == nil {
		return
	}
	s.producers[p] = nil
	pr.ticker.Stop()
	close(pr.done)
}

func (s *Sampler) loop(p Producer, pr *producer) {
	for {
		select {
		case <-pr.done:
			return
		case now := <-pr.ticker.C():
			select {
			case <-pr.done:
				return
			default:
			}
			s.Tick(p, now)
		}
	}
}

// Tick runs producer p once as if its ticker fired at now. Preconditions
// are checked; the armed state is not.
func (s *Sampler) Tick(p Producer, now time.Time) {
	probes := s.currentProbes()
	switch p {
	case PublishQuality:
		s.tickPublishQuality(probes.Quality, now)
	case PlayQuality:
		s.tickPlayQuality(probes.Quality, now)
	case OnlineCount:
		s.tickOnlineCount()
	case CapturedSoundLevel:
		s.tickCapturedSoundLevel(probes.Level)
	case CapturedSpectrum:
		s.tickCapturedSpectrum(probes.Level)
	case RemoteSoundLevel:
		s.tickRemoteSoundLevel(probes.Level)
	case RemoteSpectrum:
		s.tickRemoteSpectrum(probes.Level)
	case MixerSoundLevel:
		s.tickMixerSoundLevel(probes.Mixer)
	}
}
