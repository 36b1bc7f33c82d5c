package parlor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is a channel-backed Conn for engine tests.
type fakeConn struct {
	frames chan []byte
	done   chan error

	mu      sync.Mutex
	sent    []outboundMessage
	sendErr error
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		done:   make(chan error, 1),
	}
}

func (c *fakeConn) Send(_ context.Context, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, v.(outboundMessage))
	return nil
}

func (c *fakeConn) Frames() <-chan []byte { return c.frames }
func (c *fakeConn) Done() <-chan error    { return c.done }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) push(frame string) { c.frames <- []byte(frame) }
func (c *fakeConn) drop()             { c.done <- errors.New("connection reset") }

func (c *fakeConn) sentMessages() []outboundMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]outboundMessage, len(c.sent))
	copy(out, c.sent)
	return out
}

// fakeTransport scripts dial results.
type fakeTransport struct {
	mu       sync.Mutex
	conns    []*fakeConn
	dials    int
	failNext int
	failAll  bool
}

func (t *fakeTransport) Dial(context.Context, string, string) (Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dials++
	if t.failAll || t.failNext > 0 {
		if t.failNext > 0 {
			t.failNext--
		}
		return nil, errors.New("dial refused")
	}
	c := newFakeConn()
	t.conns = append(t.conns, c)
	return c, nil
}

func (t *fakeTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

func (t *fakeTransport) conn(i int) *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conns[i]
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ReconnectBaseDelay = 5 * time.Millisecond
	cfg.ReconnectMaxDelay = 20 * time.Millisecond
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testIdentity() SessionIdentity {
	return SessionIdentity{RoomID: "r1", UserID: "u1", Username: "alice", RoomName: "general"}
}

func connectEngine(t *testing.T, transport *fakeTransport, cfg Config, onMessage func(Message), onDisconnect func()) *SessionEngine {
	t.Helper()
	engine := NewSessionEngine(transport, cfg, testLogger())
	if onMessage == nil {
		onMessage = func(Message) {}
	}
	if onDisconnect == nil {
		onDisconnect = func() {}
	}
	require.NoError(t, engine.Connect(context.Background(), testIdentity(), onMessage, onDisconnect))
	t.Cleanup(engine.Disconnect)
	return engine
}

func TestSendNotConnected(t *testing.T) {
	transport := &fakeTransport{}
	engine := NewSessionEngine(transport, testConfig(), testLogger())

	err := engine.Send(context.Background(), "hi")
	assert.True(t, HasCode(err, ErrorNotConnected))
	assert.Zero(t, transport.dialCount(), "send must never reach the transport")
}

func TestSendReachesTransportWhenConnected(t *testing.T) {
	transport := &fakeTransport{}
	engine := connectEngine(t, transport, testConfig(), nil, nil)

	require.NoError(t, engine.Send(context.Background(), "hello room"))
	assert.Equal(t, []outboundMessage{{Content: "hello room"}}, transport.conn(0).sentMessages())
}

func TestSendWriteFailureKeepsSessionAlive(t *testing.T) {
	transport := &fakeTransport{}
	engine := connectEngine(t, transport, testConfig(), nil, nil)

	conn := transport.conn(0)
	conn.mu.Lock()
	conn.sendErr = errors.New("broken pipe")
	conn.mu.Unlock()

	err := engine.Send(context.Background(), "hi")
	assert.True(t, HasCode(err, ErrorTransport))
	assert.Equal(t, StateConnected, engine.State(), "write failure must not demote to reconnecting")
}

func TestConnectWhileActiveRejected(t *testing.T) {
	transport := &fakeTransport{}
	engine := connectEngine(t, transport, testConfig(), nil, nil)

	err := engine.Connect(context.Background(), testIdentity(), func(Message) {}, func() {})
	assert.True(t, HasCode(err, ErrorInvalidInput))
	assert.Equal(t, 1, transport.dialCount())
}

func TestHeartbeatFrameIgnored(t *testing.T) {
	transport := &fakeTransport{}
	received := make(chan Message, 4)
	engine := connectEngine(t, transport, testConfig(), func(m Message) { received <- m }, nil)

	conn := transport.conn(0)
	conn.push("ping")
	conn.push(`{"id":"1","roomId":"r1","userId":"u2","username":"bob","content":"hi","timestamp":"2024-01-01T00:00:00Z","type":"message"}`)

	select {
	case m := <-received:
		assert.Equal(t, "1", m.ID)
	case <-time.After(time.Second):
		t.Fatal("message never delivered")
	}
	assert.Len(t, engine.History(), 1, "heartbeat must not be buffered")
}

func TestMalformedFrameDroppedSilently(t *testing.T) {
	transport := &fakeTransport{}
	received := make(chan Message, 4)
	engine := connectEngine(t, transport, testConfig(), func(m Message) { received <- m }, nil)

	conn := transport.conn(0)
	conn.push("{not json")
	conn.push(`{"id":"2","roomId":"r1","userId":"u2","username":"bob","content":"ok","timestamp":"2024-01-01T00:00:00Z","type":"message"}`)

	select {
	case m := <-received:
		assert.Equal(t, "2", m.ID)
	case <-time.After(time.Second):
		t.Fatal("valid frame after malformed one never delivered")
	}
	assert.Len(t, engine.History(), 1)
}

func TestReconnectAfterDropResetsCounter(t *testing.T) {
	transport := &fakeTransport{}
	engine := connectEngine(t, transport, testConfig(), nil, nil)

	transport.mu.Lock()
	transport.failNext = 2
	transport.mu.Unlock()
	transport.conn(0).drop()

	// Initial dial + two refused attempts + the successful third.
	require.Eventually(t, func() bool {
		return transport.dialCount() == 4 && engine.State() == StateConnected
	}, time.Second, time.Millisecond)

	engine.mu.Lock()
	attempts := engine.attempts
	engine.mu.Unlock()
	assert.Zero(t, attempts, "counter resets on successful reconnect")
}

func TestReconnectExhaustionFiresOnDisconnectOnce(t *testing.T) {
	transport := &fakeTransport{}
	var fired atomic.Int32
	engine := connectEngine(t, transport, testConfig(), nil, func() { fired.Add(1) })

	transport.mu.Lock()
	transport.failAll = true
	transport.mu.Unlock()
	transport.conn(0).drop()

	require.Eventually(t, func() bool {
		return engine.State() == StateFailed
	}, time.Second, time.Millisecond)

	assert.Equal(t, 1+testConfig().ReconnectMaxAttempts, transport.dialCount())
	assert.Equal(t, int32(1), fired.Load())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load(), "onDisconnect must fire exactly once")
}

func TestDisconnectDuringReconnectCancelsRetry(t *testing.T) {
	cfg := testConfig()
	cfg.ReconnectBaseDelay = 200 * time.Millisecond
	cfg.ReconnectMaxDelay = time.Second

	transport := &fakeTransport{}
	var fired atomic.Int32
	engine := connectEngine(t, transport, cfg, nil, func() { fired.Add(1) })

	transport.mu.Lock()
	transport.failAll = true
	transport.mu.Unlock()
	transport.conn(0).drop()

	require.Eventually(t, func() bool {
		return engine.State() == StateReconnecting
	}, time.Second, time.Millisecond)

	engine.Disconnect()
	assert.Equal(t, StateDisconnected, engine.State())

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, transport.dialCount(), "no further connect attempt after manual disconnect")
	assert.Equal(t, StateDisconnected, engine.State())
	assert.Zero(t, fired.Load(), "manual disconnect never fires onDisconnect")
}

// gatedTransport holds every dial until release is closed.
type gatedTransport struct {
	fakeTransport
	release chan struct{}
}

func (t *gatedTransport) Dial(ctx context.Context, roomID, userID string) (Conn, error) {
	<-t.release
	return t.fakeTransport.Dial(ctx, roomID, userID)
}

func TestDisconnectDuringInitialDialWins(t *testing.T) {
	transport := &gatedTransport{release: make(chan struct{})}
	engine := NewSessionEngine(transport, testConfig(), testLogger())

	done := make(chan error, 1)
	go func() {
		done <- engine.Connect(context.Background(), testIdentity(), func(Message) {}, func() {})
	}()

	require.Eventually(t, func() bool {
		return engine.State() == StateConnecting
	}, time.Second, time.Millisecond)

	engine.Disconnect()
	close(transport.release)

	select {
	case err := <-done:
		assert.True(t, HasCode(err, ErrorInvalidInput))
	case <-time.After(time.Second):
		t.Fatal("connect never returned")
	}

	assert.Equal(t, StateDisconnected, engine.State(), "disconnect issued mid-dial must win")
	conn := transport.conn(0)
	conn.mu.Lock()
	closed := conn.closed
	conn.mu.Unlock()
	assert.True(t, closed, "the late dial result must be closed, not adopted")
}

func TestDisconnectClosesTransport(t *testing.T) {
	transport := &fakeTransport{}
	engine := connectEngine(t, transport, testConfig(), nil, nil)

	engine.Disconnect()

	conn := transport.conn(0)
	conn.mu.Lock()
	closed := conn.closed
	conn.mu.Unlock()
	assert.True(t, closed)
	assert.Equal(t, StateDisconnected, engine.State())

	err := engine.Send(context.Background(), "late")
	assert.True(t, HasCode(err, ErrorNotConnected))
}
