// Package webrtcbridge adapts a pion WebRTC peer connection into the
// collaborator reports the notification core consumes.
//
// The bridge maps peer connection state onto session connectivity signals
// and publish/play retries, reads remote RTP tracks to drive play
// establishment and first-frame reports, feeds Opus payloads to a sound
// level meter and derives per-stream quality samples from the RTP packets
// it sees. Video sizes are taken from VP8 key frames.
//
// Example:
//
//	bridge := webrtcbridge.New(engine.Sessions(), engine.Streams(), webrtcbridge.Options{
//	    RoomID: "room-1",
//	    Meter:  engine.OpusMeter(),
//	})
//	engine.SetQualityProbe(bridge)
//	bridge.Attach(pc)
//	defer bridge.Close()
package webrtcbridge
