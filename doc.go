// Package rtcevent implements the event and state-notification core of a
// real-time audio/video engine.
//
// The core owns no media transport of its own. Signaling, transport, device
// drivers and the stream mixer are external collaborators that report what
// happened; the core turns those reports into state-machine transitions and
// delivers the resulting notifications to registered observers in the order
// they were produced. Raw media frames are relayed on the caller's goroutine.
//
// # Getting Started
//
// Create an engine, register an observer and start it:
//
//	options := rtcevent.NewOptions()
//	options.VerboseDiagnostics = true
//
//	engine, err := rtcevent.New(options)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
//	type observer struct {
//	    event.NopObserver
//	}
//
//	func (observer) OnRoomStateUpdate(roomID string, state event.RoomState, code int, _ event.Document) {
//	    fmt.Printf("room %s is %s (%d)\n", roomID, state, code)
//	}
//
//	engine.RegisterObserver(observer{})
//	if err := engine.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Rooms, Publishing and Playing
//
// LoginRoom starts a session in Connecting. The signaling collaborator then
// drives it through engine.Sessions():
//
//	engine.LoginRoom("room-1", event.User{UserID: "alice"})
//	engine.Sessions().SignalConnected("room-1")
//
//	engine.StartPublishingStream("alice-main", "room-1", event.PublishChannelMain)
//	engine.Streams().PublishEstablished("alice-main")
//
// Logging out of a room cancels every publish and play instance scoped to
// it; each canceled instance reports Idle carrying event.CodeCanceled.
//
// # Observers
//
// An observer is any value implementing one or more of the handler groups
// in package event (EngineHandler, RoomHandler, PublisherHandler and so
// on). Embed event.NopObserver, or the per-group Nop types, to implement
// only the callbacks of interest. Observers registered late receive only
// events produced after registration.
//
// Raw media frames use a separate set of handlers in package relay; those
// run on real-time goroutines and must return quickly.
//
// # Diagnostics
//
// With VerboseDiagnostics enabled, malformed application calls (unknown
// rooms, oversized identifiers, conflicting logins) are reported as
// debug-error events carrying event.CodeInvalidCall, in addition to the
// returned error.
//
// # Periodic Samples
//
// Quality, online user count, sound level, spectrum and mixer level
// notifications are produced by package sampler at configurable intervals.
// Quality and online count are armed at Start; the level monitors are armed
// with StartSoundLevelMonitor, StartAudioSpectrumMonitor and
// StartMixerSoundLevelMonitor.
package rtcevent
