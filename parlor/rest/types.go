package rest

import (
	"fmt"
	"net/http"
	"time"
)

// Room is directory metadata for one room.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Protected bool      `json:"protected"`
	UserCount int       `json:"userCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// RoomUser is a member of a room.
type RoomUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// CreateRoomRequest is the request body for creating a room.
type CreateRoomRequest struct {
	Name     string `json:"name"`
	Password string `json:"password,omitempty"`
}

// JoinRoomRequest is the request body for joining a room.
type JoinRoomRequest struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
}

// JoinResult is returned on a successful join.
type JoinResult struct {
	UserID   string `json:"userId"`
	RoomID   string `json:"roomId"`
	RoomName string `json:"roomName"`
}

// LeaveRoomRequest is the request body for leaving a room.
type LeaveRoomRequest struct {
	UserID string `json:"userId"`
}

// HistoryMessage mirrors one streamed message as served by the history
// endpoint.
type HistoryMessage struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
}

// ErrorResponse is the error body the server returns with >=400 statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// APIError carries a server-reported rejection.
type APIError struct {
	Status int
	Reason string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("server rejected request (status %d): %s", e.Status, e.Reason)
}

// IsUsernameTaken reports whether the server refused a join because the
// username is already in use in the room.
func (e *APIError) IsUsernameTaken() bool {
	return e.Status == http.StatusConflict
}
