package av

import "errors"

// Sentinel errors for av package operations.
// These errors enable reliable error classification using errors.Is().

// Start errors.
var (
	// ErrNoSession indicates the room has no live session to scope the stream to.
	ErrNoSession = errors.New("room has no live session")

	// ErrInvalidChannel indicates an unknown publish channel.
	ErrInvalidChannel = errors.New("invalid publish channel")
)

// Lookup errors.
var (
	// ErrNotPublishing indicates no live publisher for the stream or channel.
	ErrNotPublishing = errors.New("no live publisher")

	// ErrNotPlaying indicates no live player for the stream.
	ErrNotPlaying = errors.New("no live player")

	// ErrMediaPlayerNotFound indicates a stale or unknown media player handle.
	ErrMediaPlayerNotFound = errors.New("media player not found")
)

// Transition errors.
var (
	// ErrInvalidTransition indicates a signal the current state cannot accept.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInactive indicates a media observation outside the Publishing or Playing state.
	ErrInactive = errors.New("instance is not active")
)
