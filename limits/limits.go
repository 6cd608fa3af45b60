// Package limits provides centralized identifier and payload size limits for
// the notification core. This ensures consistent validation across the
// registry, the state machines and the dispatcher.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxRoomID is the maximum room identifier length in bytes
	MaxRoomID = 128

	// MaxStreamID is the maximum stream identifier length in bytes
	MaxStreamID = 256

	// MaxUserID is the maximum user identifier length in bytes
	MaxUserID = 64

	// MaxUserName is the maximum display name length in bytes
	MaxUserName = 256

	// MaxExtraInfo is the maximum size of a stream or room extra-info document
	MaxExtraInfo = 1024

	// MaxMessage is the maximum size of a broadcast, barrage or custom command payload
	MaxMessage = 1024

	// MaxSEIPayload is the maximum size of one out-of-band data unit attached to media
	MaxSEIPayload = 4096
)

var (
	// ErrEmpty indicates an empty identifier or payload was provided
	ErrEmpty = errors.New("empty value")

	// ErrTooLarge indicates an identifier or payload exceeds its maximum size
	ErrTooLarge = errors.New("value too large")
)

// ValidateSize validates data against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidateSize(data []byte, maxSize int) error {
	if len(data) == 0 {
		return ErrEmpty
	}
	if len(data) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrTooLarge, len(data), maxSize)
	}
	return nil
}

func validateID(kind, id string, maxLen int) error {
	if id == "" {
		return fmt.Errorf("%w: %s id", ErrEmpty, kind)
	}
	if len(id) > maxLen {
		return fmt.Errorf("%w: %s id length %d exceeds limit %d", ErrTooLarge, kind, len(id), maxLen)
	}
	return nil
}

// ValidateRoomID validates a room identifier against MaxRoomID.
func ValidateRoomID(id string) error {
	return validateID("room", id, MaxRoomID)
}

// ValidateStreamID validates a stream identifier against MaxStreamID.
func ValidateStreamID(id string) error {
	return validateID("stream", id, MaxStreamID)
}

// ValidateUserID validates a user identifier against MaxUserID.
func ValidateUserID(id string) error {
	return validateID("user", id, MaxUserID)
}

// ValidateSEI validates one out-of-band data unit against MaxSEIPayload.
func ValidateSEI(payload []byte) error {
	return ValidateSize(payload, MaxSEIPayload)
}

// ValidateMessage validates a room message or command against MaxMessage.
func ValidateMessage(message string) error {
	if message == "" {
		return ErrEmpty
	}
	if len(message) > MaxMessage {
		return fmt.Errorf("%w: message size %d exceeds limit %d", ErrTooLarge, len(message), MaxMessage)
	}
	return nil
}

// ValidateUserName validates a display name against MaxUserName. Display
// names may be empty.
func ValidateUserName(name string) error {
	if len(name) > MaxUserName {
		return fmt.Errorf("%w: user name length %d exceeds limit %d", ErrTooLarge, len(name), MaxUserName)
	}
	return nil
}

// ValidateExtraInfo validates a stream or room extra-info value against
// MaxExtraInfo. An empty value clears the extra info and is allowed.
func ValidateExtraInfo(info string) error {
	if len(info) > MaxExtraInfo {
		return fmt.Errorf("%w: extra info size %d exceeds limit %d", ErrTooLarge, len(info), MaxExtraInfo)
	}
	return nil
}
