// Package event defines the typed notification contract of the engine: the
// shared value types (states, users, streams, quality samples, devices), the
// observer handler groups with their no-op defaults, and one Event value per
// notification kind.
//
// # Observers
//
// An observer is any value that implements one or more handler groups:
//
//	type roomLogger struct {
//	    event.NopRoomHandler
//	}
//
//	func (roomLogger) OnRoomStateUpdate(roomID string, state event.RoomState, code int, _ event.Document) {
//	    log.Printf("room %s -> %s (%d)", roomID, state, code)
//	}
//
// Groups the observer does not implement are skipped for it.
//
// # Events
//
// Every Event carries a Key naming the entity it concerns. The dispatcher
// preserves production order for all events, and therefore for all events
// sharing a Key.
//
// # Error Codes
//
// Error codes come from an external versioned catalog and are passed through
// unchanged; zero means success. CodeCanceled and CodeSuperseded are the only
// codes the core originates for state updates.
package event
