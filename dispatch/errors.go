package dispatch

import "errors"

// Registration errors.
var (
	// ErrNotObserver indicates the value implements no handler group.
	ErrNotObserver = errors.New("value implements no observer handler group")

	// ErrObserverNotFound indicates the token is unknown or already unregistered.
	ErrObserverNotFound = errors.New("observer not registered")
)

// Lifecycle errors.
var (
	// ErrAlreadyRunning indicates Start was called on a running dispatcher.
	ErrAlreadyRunning = errors.New("dispatcher is already running")

	// ErrClosed indicates the dispatcher has been stopped.
	ErrClosed = errors.New("dispatcher is closed")
)
