package parlor

import (
	"context"

	"github.com/vovakirdan/parlor/parlor/rest"
)

// UI is the terminal surface the coordinator drives. console.Console is the
// production implementation; tests script their own.
type UI interface {
	// ReadLine prompts and blocks for one line of input. It returns the
	// context error when ctx is cancelled while waiting.
	ReadLine(ctx context.Context, prompt string) (string, error)

	// ReadPassword prompts for input that must not echo.
	ReadPassword(ctx context.Context, prompt string) (string, error)

	Notice(text string)
	Errorf(format string, args ...any)

	ShowMessage(m Message)
	ShowRooms(rooms []rest.Room)
	ShowUsers(roomName string, users []rest.RoomUser)
	ShowRoomInfo(room rest.Room)
	ShowHistory(messages []Message)
}

// Directory is the room-directory collaborator. rest.Client implements it.
type Directory interface {
	ListRooms(ctx context.Context) ([]rest.Room, error)
	CreateRoom(ctx context.Context, name, password string) (*rest.Room, error)
	JoinRoom(ctx context.Context, roomID, username, password string) (*rest.JoinResult, error)
	LeaveRoom(ctx context.Context, roomID, userID string) error
	RoomUsers(ctx context.Context, roomID string) ([]rest.RoomUser, error)
	RoomInfo(ctx context.Context, roomID string) (*rest.Room, error)
	MessageHistory(ctx context.Context, roomID string, limit int) ([]rest.HistoryMessage, error)
}
