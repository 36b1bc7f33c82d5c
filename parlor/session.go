package parlor

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// SessionEngine owns one live connection to a specific room: it runs the
// connect/reconnect state machine, feeds inbound messages into the local
// history and the registered sink, and accepts outbound sends.
//
// All mutable state is guarded by mu; inbound frames and close notifications
// are drained by a single goroutine, so no transport callback ever re-enters
// engine state.
type SessionEngine struct {
	transport Transport
	logger    *slog.Logger
	history   *HistoryBuffer

	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration

	mu              sync.Mutex
	state           ConnectionState
	identity        SessionIdentity
	conn            Conn
	attempts        int
	stopped         bool
	onMessage       func(Message)
	onDisconnect    func()
	disconnectFired bool
	cancelRun       context.CancelFunc
}

// NewSessionEngine constructs an engine for one session. The engine is
// single-use: after Disconnect or a Failed state it cannot be reconnected.
func NewSessionEngine(transport Transport, cfg Config, logger *slog.Logger) *SessionEngine {
	maxAttempts := cfg.ReconnectMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	baseDelay := cfg.ReconnectBaseDelay
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	maxDelay := cfg.ReconnectMaxDelay
	if maxDelay <= 0 {
		maxDelay = 10 * time.Second
	}
	return &SessionEngine{
		transport:   transport,
		logger:      logger,
		history:     NewHistoryBuffer(cfg.HistoryCapacity),
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
		state:       StateIdle,
	}
}

// Connect opens the transport for identity and starts the engine loop.
// The first attempt is never retried implicitly; reconnection applies only
// to sessions that were established and later dropped. onMessage receives
// every decoded inbound message; onDisconnect fires exactly once if and when
// reconnection attempts are exhausted.
func (e *SessionEngine) Connect(ctx context.Context, identity SessionIdentity, onMessage func(Message), onDisconnect func()) error {
	e.mu.Lock()
	switch e.state {
	case StateConnected, StateConnecting, StateReconnecting:
		e.mu.Unlock()
		return NewError(ErrorInvalidInput, "session already active")
	}
	if e.stopped {
		e.mu.Unlock()
		return NewError(ErrorInvalidInput, "engine already stopped")
	}
	e.state = StateConnecting
	e.identity = identity
	e.onMessage = onMessage
	e.onDisconnect = onDisconnect
	e.mu.Unlock()

	conn, err := e.transport.Dial(ctx, identity.RoomID, identity.UserID)
	if err != nil {
		e.mu.Lock()
		if !e.stopped {
			e.state = StateIdle
		}
		e.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	// Disconnect may have landed while the dial was in flight; it wins.
	if e.stopped {
		e.mu.Unlock()
		cancel()
		_ = conn.Close()
		return NewError(ErrorInvalidInput, "engine already stopped")
	}
	e.conn = conn
	e.state = StateConnected
	e.attempts = 0
	e.cancelRun = cancel
	e.mu.Unlock()
	e.logger.Info("session connected", "room", identity.RoomID, "user", identity.Username)

	go e.run(runCtx, conn)
	return nil
}

// Send writes one chat message. Valid only in the Connected state; a write
// failure does not change engine state; the transport's close notification
// is the single trigger for the reconnect path.
func (e *SessionEngine) Send(ctx context.Context, content string) error {
	e.mu.Lock()
	if e.state != StateConnected || e.conn == nil {
		e.mu.Unlock()
		return NewError(ErrorNotConnected, "send requires an active connection")
	}
	conn := e.conn
	e.mu.Unlock()

	if err := conn.Send(ctx, outboundMessage{Content: content}); err != nil {
		return WrapError(ErrorTransport, "send", err)
	}
	return nil
}

// Disconnect stops the session: it suppresses any pending reconnect, closes
// the transport, and drops the registered callbacks. It never fires
// onDisconnect.
func (e *SessionEngine) Disconnect() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.state = StateDisconnected
	e.onMessage = nil
	e.onDisconnect = nil
	conn := e.conn
	e.conn = nil
	cancel := e.cancelRun
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	e.logger.Debug("session disconnected")
}

// State returns the current connection state.
func (e *SessionEngine) State() ConnectionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Identity returns the session identity fixed at Connect.
func (e *SessionEngine) Identity() SessionIdentity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.identity
}

// History returns a snapshot of the locally buffered messages.
func (e *SessionEngine) History() []Message {
	return e.history.Snapshot()
}

// run is the engine's single serialized loop: it drains inbound frames and
// drives reconnection after a close notification.
func (e *SessionEngine) run(ctx context.Context, conn Conn) {
	frames := conn.Frames()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			e.handleFrame(data)
		case err := <-conn.Done():
			e.logger.Warn("connection lost", "error", err)
			next := e.reconnect(ctx)
			if next == nil {
				return
			}
			conn = next
			frames = conn.Frames()
		}
	}
}

// handleFrame decodes one inbound frame. Heartbeats are dropped before
// decoding; undecodable frames are dropped silently.
func (e *SessionEngine) handleFrame(data []byte) {
	if string(data) == heartbeatFrame {
		return
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		e.logger.Debug("dropping undecodable frame", "error", err)
		return
	}
	e.history.Append(msg)

	e.mu.Lock()
	onMessage := e.onMessage
	e.mu.Unlock()
	if onMessage != nil {
		onMessage(msg)
	}
}

// reconnect retries the same identity until a dial succeeds, attempts run
// out, or the engine is stopped. Attempts are strictly sequential. Returns
// the new connection, or nil when the session is over.
func (e *SessionEngine) reconnect(ctx context.Context) Conn {
	for {
		e.mu.Lock()
		if e.stopped {
			e.mu.Unlock()
			return nil
		}
		if e.attempts >= e.maxAttempts {
			e.state = StateFailed
			fire := e.onDisconnect != nil && !e.disconnectFired
			e.disconnectFired = true
			onDisconnect := e.onDisconnect
			e.conn = nil
			e.mu.Unlock()
			e.logger.Error("reconnect attempts exhausted", "attempts", e.maxAttempts)
			if fire {
				onDisconnect()
			}
			return nil
		}
		e.attempts++
		attempt := e.attempts
		identity := e.identity
		e.state = StateReconnecting
		e.conn = nil
		e.mu.Unlock()

		delay := e.backoffDelay(attempt)
		e.logger.Info("reconnecting", "attempt", attempt, "delay", delay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		e.mu.Lock()
		if e.stopped {
			e.mu.Unlock()
			return nil
		}
		e.state = StateConnecting
		e.mu.Unlock()

		conn, err := e.transport.Dial(ctx, identity.RoomID, identity.UserID)
		if err != nil {
			e.logger.Warn("reconnect attempt failed", "attempt", attempt, "error", err)
			continue
		}

		e.mu.Lock()
		if e.stopped {
			e.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		e.conn = conn
		e.state = StateConnected
		e.attempts = 0
		e.mu.Unlock()
		e.logger.Info("reconnected", "room", identity.RoomID)
		return conn
	}
}

// backoffDelay is attempt-indexed and deterministic: attempt * base, capped.
func (e *SessionEngine) backoffDelay(attempt int) time.Duration {
	d := time.Duration(attempt) * e.baseDelay
	if d > e.maxDelay {
		d = e.maxDelay
	}
	return d
}
