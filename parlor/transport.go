package parlor

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/parlor/parlor/internal"
)

// Transport opens streaming connections to the chat server.
type Transport interface {
	Dial(ctx context.Context, roomID, userID string) (Conn, error)
}

// Conn is one live streaming connection. Inbound frames arrive on Frames;
// the close notification arrives on Done once the read pump exits. Both are
// meant to be drained by a single goroutine, never by re-entrant callbacks.
type Conn interface {
	Send(ctx context.Context, v any) error
	Frames() <-chan []byte
	Done() <-chan error
	Close() error
}

type wsTransport struct {
	baseURL          string
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	logger           *slog.Logger
}

// NewWebsocketTransport builds the production transport for the server in
// cfg. Connections are opened at {wsBase}/room/{roomId}/{userId}.
func NewWebsocketTransport(cfg Config, logger *slog.Logger) (Transport, error) {
	base, err := WSBaseURL(cfg.ServerURL)
	if err != nil {
		return nil, err
	}
	return &wsTransport{
		baseURL:          base,
		handshakeTimeout: cfg.HandshakeTimeout,
		writeTimeout:     cfg.WriteTimeout,
		logger:           logger,
	}, nil
}

func (t *wsTransport) Dial(ctx context.Context, roomID, userID string) (Conn, error) {
	target := fmt.Sprintf("%s/room/%s/%s", t.baseURL, url.PathEscape(roomID), url.PathEscape(userID))

	dialCtx := ctx
	if t.handshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, t.handshakeTimeout)
		defer cancel()
	}

	ws, _, err := websocket.Dial(dialCtx, target, nil)
	if err != nil {
		return nil, WrapError(ErrorTransport, "dial "+target, err)
	}
	t.logger.Debug("transport connected", "url", target)

	c := &wsConn{
		conn:   internal.NewConn(ws, t.writeTimeout),
		frames: make(chan []byte, 16),
		done:   make(chan error, 1),
		closed: make(chan struct{}),
	}
	go c.readPump()
	return c, nil
}

type wsConn struct {
	conn      *internal.Conn
	frames    chan []byte
	done      chan error
	closed    chan struct{}
	closeOnce sync.Once
}

// readPump forwards inbound frames until the connection drops, then posts
// the close notification.
func (c *wsConn) readPump() {
	defer close(c.frames)
	for {
		data, err := c.conn.Read(context.Background())
		if err != nil {
			c.done <- err
			return
		}
		select {
		case c.frames <- data:
		case <-c.closed:
			return
		}
	}
}

func (c *wsConn) Send(ctx context.Context, v any) error {
	return c.conn.Write(ctx, v)
}

func (c *wsConn) Frames() <-chan []byte { return c.frames }

func (c *wsConn) Done() <-chan error { return c.done }

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close(websocket.StatusNormalClosure, "client close")
	})
	return err
}
