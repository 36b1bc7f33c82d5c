package parlor

// ConnectionState represents the current state of a session's streaming
// connection.
type ConnectionState int

const (
	// StateIdle means the engine has not connected yet.
	StateIdle ConnectionState = iota

	// StateConnecting means the engine is establishing a connection.
	StateConnecting

	// StateConnected means the connection is live and ready.
	StateConnected

	// StateReconnecting means the engine is waiting to retry after the
	// transport dropped.
	StateReconnecting

	// StateDisconnected means the session was stopped manually. Terminal.
	StateDisconnected

	// StateFailed means reconnection attempts were exhausted. Terminal.
	StateFailed
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
