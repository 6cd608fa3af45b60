package session

import "errors"

// Transition errors returned synchronously to the caller. None of them
// produces an event.
var (
	// ErrLoginConflict indicates a login for a room whose session is not Disconnected.
	ErrLoginConflict = errors.New("room already logged in")

	// ErrNotLoggedIn indicates a signal or delta for a room without a live session.
	ErrNotLoggedIn = errors.New("room not logged in")

	// ErrInvalidTransition indicates a signal the current state cannot accept.
	ErrInvalidTransition = errors.New("invalid session transition")
)
