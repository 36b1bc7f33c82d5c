package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/parlor/parlor"
	"github.com/vovakirdan/parlor/parlor/rest"
)

var (
	timeStyle     = lipgloss.NewStyle().Faint(true)
	usernameStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	joinedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	leftStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	systemStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Italic(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	dimStyle      = lipgloss.NewStyle().Faint(true)
)

// Notice prints an informational line.
func (c *Console) Notice(text string) {
	c.writeLine(noticeStyle.Render(text))
}

// Errorf prints an error line.
func (c *Console) Errorf(format string, args ...any) {
	c.writeLine(errorStyle.Render(fmt.Sprintf(format, args...)))
}

// ShowMessage renders one inbound message.
func (c *Console) ShowMessage(m parlor.Message) {
	c.writeLine(renderMessage(m))
}

// ShowHistory renders a batch of messages with a header.
func (c *Console) ShowHistory(messages []parlor.Message) {
	if len(messages) == 0 {
		c.writeLine(dimStyle.Render("no messages yet"))
		return
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("last %d messages", len(messages))))
	for _, m := range messages {
		b.WriteString("\n")
		b.WriteString(renderMessage(m))
	}
	c.writeLine(b.String())
}

// ShowRooms renders the room directory listing.
func (c *Console) ShowRooms(rooms []rest.Room) {
	if len(rooms) == 0 {
		c.writeLine(dimStyle.Render("no rooms yet, create one"))
		return
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("rooms"))
	for _, r := range rooms {
		lock := ""
		if r.Protected {
			lock = " (password)"
		}
		b.WriteString(fmt.Sprintf("\n  %s  %s%s  %s",
			r.ID,
			usernameStyle.Render(r.Name),
			lock,
			dimStyle.Render(fmt.Sprintf("%d online", r.UserCount))))
	}
	c.writeLine(b.String())
}

// ShowUsers renders the member list of a room.
func (c *Console) ShowUsers(roomName string, users []rest.RoomUser) {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s: %d online", roomName, len(users))))
	for _, u := range users {
		b.WriteString("\n  " + u.Username)
	}
	c.writeLine(b.String())
}

// ShowRoomInfo renders room metadata.
func (c *Console) ShowRoomInfo(room rest.Room) {
	access := "open"
	if room.Protected {
		access = "password protected"
	}
	c.writeLine(fmt.Sprintf("%s\n  id: %s\n  access: %s\n  online: %d\n  created: %s",
		headerStyle.Render(room.Name),
		room.ID,
		access,
		room.UserCount,
		room.CreatedAt.Local().Format("2006-01-02 15:04")))
}

func renderMessage(m parlor.Message) string {
	ts := timeStyle.Render(m.Timestamp.Local().Format("15:04:05"))
	switch m.Type {
	case parlor.MessageUserJoined:
		return fmt.Sprintf("%s %s", ts, joinedStyle.Render("-> "+m.Username+" joined"))
	case parlor.MessageUserLeft:
		return fmt.Sprintf("%s %s", ts, leftStyle.Render("<- "+m.Username+" left"))
	case parlor.MessageSystem:
		return fmt.Sprintf("%s %s", ts, systemStyle.Render(m.Content))
	default:
		return fmt.Sprintf("%s %s %s", ts, usernameStyle.Render(m.Username+":"), m.Content)
	}
}
