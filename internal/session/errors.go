package session

import "errors"

// Room lifecycle errors. Handlers translate these to HTTP statuses.
var (
	ErrProtectedRoom = errors.New("the Default room cannot be renamed or deleted")
	ErrLastRoom      = errors.New("cannot delete the only remaining room")
	ErrInvalidName   = errors.New("invalid room name")
	ErrRoomExists    = errors.New("a room with that name already exists")
	ErrRoomNotFound  = errors.New("room not found")
)
