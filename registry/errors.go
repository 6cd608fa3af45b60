package registry

import "errors"

var (
	// ErrRoomExists indicates a live session is already registered for the room.
	ErrRoomExists = errors.New("room already has a live session")

	// ErrRoomNotFound indicates no live session is registered for the room.
	ErrRoomNotFound = errors.New("room not found")

	// ErrStaleHandle indicates the handle no longer addresses a live instance.
	ErrStaleHandle = errors.New("stale instance handle")
)
