package rtcevent

import (
	"context"
	"fmt"
	"sync"

	"github.com/opd-ai/rtcevent/arena"
	"github.com/opd-ai/rtcevent/av"
	"github.com/opd-ai/rtcevent/device"
	"github.com/opd-ai/rtcevent/dispatch"
	"github.com/opd-ai/rtcevent/event"
	"github.com/opd-ai/rtcevent/level"
	"github.com/opd-ai/rtcevent/registry"
	"github.com/opd-ai/rtcevent/relay"
	"github.com/opd-ai/rtcevent/sampler"
	"github.com/opd-ai/rtcevent/session"
	"github.com/sirupsen/logrus"
)

// Engine wires the notification core together.
//
// Application calls (login, start/stop publish and play, monitors) go
// through the Engine, which reports malformed calls as debug-error events
// when verbose diagnostics are on. External collaborators report progress
// through the component accessors: Sessions for signaling, Streams for the
// transport, Devices for device drivers, Mixer for the stream mixer and
// Relay for raw media.
type Engine struct {
	options *Options

	dispatcher *dispatch.Dispatcher
	registry   *registry.Registry
	sessions   *session.Manager
	streams    *av.Manager
	mixer      *av.Mixer
	devices    *device.Tracker
	sampler    *sampler.Sampler
	relay      *relay.Relay
	meter      *level.Meter
	opus       *level.OpusMeter

	mu      sync.Mutex
	running bool
	stopped bool

	// audioMu guards the relay audio mask: the flavours the application
	// enabled plus the ones held by a running level or spectrum monitor.
	audioMu         sync.Mutex
	appAudio        relay.AudioDataMask
	levelMonitor    bool
	spectrumMonitor bool
}

// monitorAudio is the PCM the level meter needs while a monitor is on.
const monitorAudio = relay.AudioDataCaptured | relay.AudioDataPlayer

// New creates an engine. A nil options value uses NewOptions.
//
// Parameters:
//   - options: Engine configuration, or nil for defaults
//
// Returns:
//   - *Engine: The new engine, not yet started
//   - error: Any error that occurred while wiring components
func New(options *Options) (*Engine, error) {
	if options == nil {
		options = NewOptions()
	}

	logrus.WithFields(logrus.Fields{
		"function":         "New",
		"verbose":          options.VerboseDiagnostics,
		"queue_warn_depth": options.QueueWarnDepth,
		"arm_quality":      options.ArmQuality,
		"arm_online_count": options.ArmOnlineCount,
	}).Info("Creating engine")

	d := dispatch.New(dispatch.Options{
		VerboseDiagnostics: options.VerboseDiagnostics,
		QueueWarnDepth:     options.QueueWarnDepth,
		TimeProvider:       options.TimeProvider,
	})
	reg := registry.New()
	meter := level.NewMeter()

	e := &Engine{
		options:    options,
		dispatcher: d,
		registry:   reg,
		sessions:   session.NewManager(reg, d),
		streams:    av.NewManager(reg, d),
		mixer:      av.NewMixer(d),
		devices:    device.NewTracker(reg, d),
		relay:      relay.New(),
		meter:      meter,
		opus:       level.NewOpusMeter(meter),
	}
	e.sampler = sampler.New(reg, d, sampler.Options{
		Intervals:    options.Intervals,
		Probes:       sampler.Probes{Level: meter, Mixer: meter},
		TimeProvider: options.TimeProvider,
	})

	e.sessions.OnTerminate(e.cancelSession)
	e.streams.SetCaptureController(e.relay)
	if _, err := e.relay.SubscribeAudio(meter); err != nil {
		return nil, fmt.Errorf("subscribe level meter: %w", err)
	}

	return e, nil
}

// Start begins event delivery and arms the default sampler producers.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return ErrNotRunning
	}
	if e.running {
		return ErrAlreadyRunning
	}
	if err := e.dispatcher.Start(); err != nil {
		return err
	}
	if e.options.ArmQuality {
		if err := e.armLocked(sampler.PublishQuality, sampler.PlayQuality); err != nil {
			return err
		}
	}
	if e.options.ArmOnlineCount {
		if err := e.armLocked(sampler.OnlineCount); err != nil {
			return err
		}
	}
	e.running = true

	logrus.WithFields(logrus.Fields{
		"function": "Start",
	}).Info("Engine started")
	return nil
}

func (e *Engine) armLocked(producers ...sampler.Producer) error {
	for _, p := range producers {
		if err := e.sampler.Arm(p); err != nil {
			return fmt.Errorf("arm %s: %w", p, err)
		}
	}
	return nil
}

// Stop logs out of every room, stops the sampler and delivers every queued
// event before returning. A stopped engine cannot be restarted.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.running = false
	e.mu.Unlock()

	e.sessions.LogoutAll()
	e.sampler.Close()
	e.dispatcher.Stop()

	logrus.WithFields(logrus.Fields{
		"function": "Stop",
	}).Info("Engine stopped")
}

// IsRunning reports whether the engine is started and not stopped.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// RegisterObserver adds an observer implementing one or more of the event
// handler interfaces, or dispatch.EnvelopeObserver. It only receives
// events produced after registration.
func (e *Engine) RegisterObserver(o any) (dispatch.Token, error) {
	return e.dispatcher.Register(o)
}

// UnregisterObserver removes an observer. Queued events are no longer
// delivered to it; a delivery in progress completes.
func (e *Engine) UnregisterObserver(token dispatch.Token) error {
	return e.dispatcher.Unregister(token)
}

// SetVerboseDiagnostics turns debug-error events on or off.
func (e *Engine) SetVerboseDiagnostics(enabled bool) {
	e.dispatcher.SetVerboseDiagnostics(enabled)
}

// Flush waits until every event produced so far has been delivered.
func (e *Engine) Flush(ctx context.Context) error {
	return e.dispatcher.Flush(ctx)
}

// cancelSession ends the publishers and players started under a session
// that reached Disconnected.
func (e *Engine) cancelSession(_ string, session arena.Handle, _ int) {
	e.streams.CancelSession(session, event.CodeCanceled)
}

// check reports a failed application call as a debug error.
func (e *Engine) check(funcName string, err error) error {
	if err == nil {
		return nil
	}
	logrus.WithFields(logrus.Fields{
		"function": funcName,
		"error":    err.Error(),
	}).Warn("Application call rejected")
	e.dispatcher.ReportDebugError(event.CodeInvalidCall, funcName, err.Error())
	return err
}

func (e *Engine) requireRunning(funcName string) error {
	if !e.IsRunning() {
		return e.check(funcName, ErrNotRunning)
	}
	return nil
}

// LoginRoom starts a session. The signaling collaborator reports the
// outcome through Sessions().
func (e *Engine) LoginRoom(roomID string, user event.User) error {
	if err := e.requireRunning("LoginRoom"); err != nil {
		return err
	}
	return e.check("LoginRoom", e.sessions.Login(roomID, user))
}

// LogoutRoom ends a session and cancels its publish and play instances.
func (e *Engine) LogoutRoom(roomID string) error {
	return e.check("LogoutRoom", e.sessions.Logout(roomID))
}

// LogoutAllRooms ends every session.
func (e *Engine) LogoutAllRooms() {
	e.sessions.LogoutAll()
}

// StartPublishingStream starts publishing streamID on channel in roomID.
func (e *Engine) StartPublishingStream(streamID, roomID string, channel event.PublishChannel) error {
	if err := e.requireRunning("StartPublishingStream"); err != nil {
		return err
	}
	return e.check("StartPublishingStream", e.streams.StartPublishing(roomID, streamID, channel))
}

// StopPublishingStream stops the publisher on channel.
func (e *Engine) StopPublishingStream(channel event.PublishChannel) error {
	return e.check("StopPublishingStream", e.streams.StopPublishing(channel))
}

// StartPlayingStream starts playing streamID in roomID.
func (e *Engine) StartPlayingStream(streamID, roomID string, opts av.PlayOptions) error {
	if err := e.requireRunning("StartPlayingStream"); err != nil {
		return err
	}
	return e.check("StartPlayingStream", e.streams.StartPlaying(roomID, streamID, opts))
}

// StopPlayingStream stops playing streamID.
func (e *Engine) StopPlayingStream(streamID string) error {
	return e.check("StopPlayingStream", e.streams.StopPlaying(streamID))
}

// CreateMediaPlayer allocates a local media player.
func (e *Engine) CreateMediaPlayer() arena.Handle {
	return e.streams.CreateMediaPlayer()
}

// DestroyMediaPlayer releases a local media player.
func (e *Engine) DestroyMediaPlayer(h arena.Handle) error {
	return e.check("DestroyMediaPlayer", e.streams.DestroyMediaPlayer(h))
}

// StartSoundLevelMonitor arms the captured and remote sound level producers.
func (e *Engine) StartSoundLevelMonitor() error {
	e.setMonitor(&e.levelMonitor, true)
	for _, p := range []sampler.Producer{sampler.CapturedSoundLevel, sampler.RemoteSoundLevel} {
		if err := e.sampler.Arm(p); err != nil {
			e.StopSoundLevelMonitor()
			return e.check("StartSoundLevelMonitor", err)
		}
	}
	return nil
}

// StopSoundLevelMonitor disarms the sound level producers.
func (e *Engine) StopSoundLevelMonitor() {
	_ = e.sampler.Disarm(sampler.CapturedSoundLevel)
	_ = e.sampler.Disarm(sampler.RemoteSoundLevel)
	e.setMonitor(&e.levelMonitor, false)
}

// StartAudioSpectrumMonitor arms the captured and remote spectrum producers.
func (e *Engine) StartAudioSpectrumMonitor() error {
	e.meter.EnableSpectrum(true)
	e.setMonitor(&e.spectrumMonitor, true)
	for _, p := range []sampler.Producer{sampler.CapturedSpectrum, sampler.RemoteSpectrum} {
		if err := e.sampler.Arm(p); err != nil {
			e.StopAudioSpectrumMonitor()
			return e.check("StartAudioSpectrumMonitor", err)
		}
	}
	return nil
}

// StopAudioSpectrumMonitor disarms the spectrum producers.
func (e *Engine) StopAudioSpectrumMonitor() {
	e.meter.EnableSpectrum(false)
	_ = e.sampler.Disarm(sampler.CapturedSpectrum)
	_ = e.sampler.Disarm(sampler.RemoteSpectrum)
	e.setMonitor(&e.spectrumMonitor, false)
}

// setMonitor records whether a level monitor is on and republishes the relay
// audio mask. Captured and player PCM stay enabled while either monitor is
// on, or while the application asked for them.
func (e *Engine) setMonitor(flag *bool, on bool) {
	e.audioMu.Lock()
	defer e.audioMu.Unlock()
	*flag = on
	e.syncAudioLocked()
}

func (e *Engine) syncAudioLocked() {
	mask := e.appAudio
	if e.levelMonitor || e.spectrumMonitor {
		mask |= monitorAudio
	}
	e.relay.EnableAudioData(mask)
}

// StartMixerSoundLevelMonitor arms the mixer sound level producer.
func (e *Engine) StartMixerSoundLevelMonitor() error {
	return e.check("StartMixerSoundLevelMonitor", e.sampler.Arm(sampler.MixerSoundLevel))
}

// StopMixerSoundLevelMonitor disarms the mixer sound level producer.
func (e *Engine) StopMixerSoundLevelMonitor() {
	_ = e.sampler.Disarm(sampler.MixerSoundLevel)
}

// EnableAudioDataCallback selects the PCM flavours relayed to
// relay.AudioDataHandler subscribers.
func (e *Engine) EnableAudioDataCallback(mask relay.AudioDataMask) {
	e.audioMu.Lock()
	defer e.audioMu.Unlock()
	e.appAudio = mask
	e.syncAudioLocked()
}

// SetRemoteVideoMode selects raw or encoded relay for streamID.
func (e *Engine) SetRemoteVideoMode(streamID string, mode relay.RemoteVideoMode) {
	e.relay.SetRemoteVideoMode(streamID, mode)
}

// SetQualityProbe installs the source of publish and play quality samples.
func (e *Engine) SetQualityProbe(q sampler.QualityProbe) {
	e.sampler.SetProbes(sampler.Probes{Quality: q, Level: e.meter, Mixer: e.meter})
}

// ApplyStreamUpdate applies a remote stream delta for roomID. Removed
// streams also lose their remote device states, level measurements and
// video relay mode.
func (e *Engine) ApplyStreamUpdate(roomID string, updateType event.UpdateType, streams []event.Stream) error {
	if err := e.sessions.UpdateStreams(roomID, updateType, streams); err != nil {
		return err
	}
	if updateType == event.UpdateTypeDelete {
		for _, s := range streams {
			e.devices.ForgetStream(s.StreamID)
			e.opus.Forget(s.StreamID)
			e.relay.ClearRemoteVideoMode(s.StreamID)
		}
	}
	return nil
}

// Sessions returns the session manager for the signaling collaborator.
func (e *Engine) Sessions() *session.Manager { return e.sessions }

// Streams returns the publish/play manager for the transport collaborator.
func (e *Engine) Streams() *av.Manager { return e.streams }

// Mixer returns the mixing task tracker.
func (e *Engine) Mixer() *av.Mixer { return e.mixer }

// Devices returns the device tracker for device drivers.
func (e *Engine) Devices() *device.Tracker { return e.devices }

// Relay returns the media frame relay.
func (e *Engine) Relay() *relay.Relay { return e.relay }

// Meter returns the sound level meter.
func (e *Engine) Meter() *level.Meter { return e.meter }

// OpusMeter returns the meter fed with encoded remote audio.
func (e *Engine) OpusMeter() *level.OpusMeter { return e.opus }

// Sampler returns the periodic sampler.
func (e *Engine) Sampler() *sampler.Sampler { return e.sampler }

// Registry returns the entity registry.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Stats returns the dispatcher counters.
func (e *Engine) Stats() dispatch.Stats { return e.dispatcher.Stats() }
