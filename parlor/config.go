package parlor

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config controls how the client connects.
type Config struct {
	// ServerURL is the http(s) base URL of the chat server.
	ServerURL string

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	// Reconnection policy for established sessions that drop.
	ReconnectMaxAttempts int
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration

	// Pre-session health probe.
	ProbeAttempts int
	ProbeDelay    time.Duration

	// HistoryCapacity bounds the local message buffer of one session.
	HistoryCapacity int

	// HistoryFetchLimit is how much server-side backlog to render on join.
	HistoryFetchLimit int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ServerURL:            "http://localhost:8080",
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         10 * time.Second,
		ReconnectMaxAttempts: 3,
		ReconnectBaseDelay:   2 * time.Second,
		ReconnectMaxDelay:    10 * time.Second,
		ProbeAttempts:        5,
		ProbeDelay:           2 * time.Second,
		HistoryCapacity:      100,
		HistoryFetchLimit:    50,
	}
}

// APIBaseURL derives the room directory base from the server URL.
func APIBaseURL(serverURL string) string {
	return strings.TrimRight(serverURL, "/") + "/api"
}

// WSBaseURL derives the streaming endpoint base from the server URL by
// swapping the scheme: http becomes ws, https becomes wss.
func WSBaseURL(serverURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q in server url", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}
