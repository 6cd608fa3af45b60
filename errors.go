package rtcevent

import "errors"

var (
	// ErrNotRunning indicates the engine has not been started or was stopped.
	ErrNotRunning = errors.New("engine is not running")

	// ErrAlreadyRunning indicates Start was called on a running engine.
	ErrAlreadyRunning = errors.New("engine is already running")
)
