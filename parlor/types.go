package parlor

import "time"

// MessageType discriminates inbound frames.
type MessageType string

const (
	MessageChat       MessageType = "message"
	MessageUserJoined MessageType = "userJoined"
	MessageUserLeft   MessageType = "userLeft"
	MessageSystem     MessageType = "system"
)

// heartbeatFrame is a raw text frame the server sends to keep the connection
// alive. It is not JSON and must be dropped before decoding.
const heartbeatFrame = "ping"

// Message is one inbound chat event. Immutable once received.
type Message struct {
	ID        string      `json:"id"`
	RoomID    string      `json:"roomId"`
	UserID    string      `json:"userId"`
	Username  string      `json:"username"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	Type      MessageType `json:"type"`
}

// SessionIdentity binds a user to a room. Fixed for the lifetime of one
// session engine instance.
type SessionIdentity struct {
	RoomID   string
	UserID   string
	Username string
	RoomName string
}

// outboundMessage is the only frame the client writes.
type outboundMessage struct {
	Content string `json:"content"`
}
