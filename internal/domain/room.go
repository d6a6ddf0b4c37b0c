package domain

import "github.com/google/uuid"

type RoomName string

// NewRoomName generates an opaque room name. Clients never choose it.
func NewRoomName() RoomName {
	return RoomName(uuid.NewString())
}
