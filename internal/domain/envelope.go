package domain

import "fmt"

type MessageType int32

const (
	MessageServerInfo MessageType = iota
	MessageServerError
	MessageRoom
	MessageJoinRoom
)

func (t MessageType) String() string {
	switch t {
	case MessageServerInfo:
		return "server_info"
	case MessageServerError:
		return "server_error"
	case MessageRoom:
		return "room"
	case MessageJoinRoom:
		return "join_room"
	default:
		return fmt.Sprintf("message_type(%d)", int32(t))
	}
}

// Envelope is the unit every codec encodes. UID and RoomID are set on
// join acknowledgements only.
type Envelope struct {
	Type    MessageType `json:"type" cbor:"type"`
	Content string      `json:"content" cbor:"content"`
	UID     UID         `json:"uid,omitempty" cbor:"uid,omitempty"`
	RoomID  RoomName    `json:"roomId,omitempty" cbor:"roomId,omitempty"`
}

const (
	VoidMessage    = "void"
	TimeoutMessage = "disconnected: idle timeout"
	InvalidJoin    = "invalid join credential"
)

// BroadcastContent tags content with its sender so recipients can attribute it.
func BroadcastContent(from UID, content string) string {
	return string(from) + ";#" + content
}

func JoinedMessage(room RoomName, uid UID) string {
	return fmt.Sprintf("Successfully joined room %s. Your ID: %s", room, uid)
}
