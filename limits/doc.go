// Package limits provides centralized identifier and payload size constants
// and validation functions for the notification core.
//
// # Identifier Limits
//
//   - MaxRoomID (128 bytes): room identifiers carried by every session event.
//   - MaxStreamID (256 bytes): stream identifiers carried by publish/play events.
//   - MaxUserID (64 bytes): participant identifiers in membership deltas.
//   - MaxUserName (256 bytes): participant display names.
//
// # Payload Limits
//
//   - MaxExtraInfo (1024 bytes): stream and room extra-info documents.
//   - MaxMessage (1024 bytes): broadcast, barrage and custom command payloads.
//   - MaxSEIPayload (4096 bytes): one out-of-band data unit received with media.
//
// # Validation Functions
//
// Each validation function checks for empty values and size limit violations.
// ValidateUserName and ValidateExtraInfo accept empty values:
//
//	if err := limits.ValidateStreamID(streamID); err != nil {
//	    // errors.Is(err, limits.ErrEmpty) or errors.Is(err, limits.ErrTooLarge)
//	}
//
// For custom size limits, use the generic ValidateSize function:
//
//	err := limits.ValidateSize(data, 4096)
package limits
