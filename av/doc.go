// Package av implements the publish and play state machines of the
// notification core, together with local media player instances.
//
// A Manager owns every Publisher and Player. Each instance is created in
// Requesting by StartPublishing or StartPlaying, moves between Requesting
// and Publishing (or Playing) as the transport collaborator reports
// progress, and is released on reaching Idle. Starting a stream over a live
// instance of the same stream, or a publisher over a live publisher of the
// same channel, supersedes the older instance: it reports Idle carrying
// event.CodeSuperseded before the new instance reports Requesting.
//
// Example:
//
//	reg := registry.New()
//	avm := av.NewManager(reg, dispatcher)
//	if err := avm.StartPublishing("room-1", "stream-1", event.PublishChannelMain); err != nil {
//	    log.Fatal(err)
//	}
//	avm.PublishEstablished("stream-1")
//	avm.CapturedAudioFrame(event.PublishChannelMain) // first-frame event, once
//
// First-frame notifications are driven by a tri-state Latch per kind of
// frame. The latch is armed when the instance first becomes active and fires
// at most once for the lifetime of the instance, so a Publishing → Requesting
// → Publishing retry loop never repeats a first-frame event.
package av
