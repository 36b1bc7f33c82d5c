package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/parlor/parlor"
)

func TestReadLine(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader("hello\nworld\n"), &out)

	line, err := c.ReadLine(context.Background(), "> ")
	require.NoError(t, err)
	assert.Equal(t, "hello", line)
	assert.True(t, strings.HasPrefix(out.String(), "> "))

	line, err = c.ReadLine(context.Background(), "> ")
	require.NoError(t, err)
	assert.Equal(t, "world", line)
}

func TestReadLineEOF(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader(""), &out)

	_, err := c.ReadLine(context.Background(), "> ")
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadLineCancelled(t *testing.T) {
	var out bytes.Buffer
	blocked, _ := io.Pipe()
	c := New(blocked, &out)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.ReadLine(ctx, "> ")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPendingReadSurvivesCancelledWait(t *testing.T) {
	var out bytes.Buffer
	pr, pw := io.Pipe()
	c := New(pr, &out)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.ReadLine(ctx, "> ")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	go func() {
		pw.Write([]byte("late line\n"))
	}()

	line, err := c.ReadLine(context.Background(), "> ")
	require.NoError(t, err)
	assert.Equal(t, "late line", line)
}

func TestAbandonedPasswordReadNotReusedAsLine(t *testing.T) {
	var out bytes.Buffer
	pr, pw := io.Pipe()
	c := New(pr, &out)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.ReadPassword(ctx, "password: ")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	go func() {
		pw.Write([]byte("stale secret\nvisible line\n"))
	}()

	// The line typed against the abandoned password read is discarded; the
	// plain read gets fresh input instead of inheriting the masked request.
	line, err := c.ReadLine(context.Background(), "> ")
	require.NoError(t, err)
	assert.Equal(t, "visible line", line)
}

func TestAsyncOutputRedrawsPrompt(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader(""), &out)

	c.mu.Lock()
	c.prompt = "> "
	c.mu.Unlock()

	c.writeLine("incoming")

	s := out.String()
	assert.Contains(t, s, "\r\x1b[K", "in-progress prompt line is cleared")
	assert.Contains(t, s, "incoming\n")
	assert.True(t, strings.HasSuffix(s, "> "), "prompt reprinted after the message")
}

func TestRenderMessageVariants(t *testing.T) {
	base := parlor.Message{
		Username:  "alice",
		Content:   "hi there",
		Timestamp: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}

	chat := base
	chat.Type = parlor.MessageChat
	assert.Contains(t, renderMessage(chat), "alice:")
	assert.Contains(t, renderMessage(chat), "hi there")

	joined := base
	joined.Type = parlor.MessageUserJoined
	assert.Contains(t, renderMessage(joined), "alice joined")

	left := base
	left.Type = parlor.MessageUserLeft
	assert.Contains(t, renderMessage(left), "alice left")

	system := base
	system.Type = parlor.MessageSystem
	assert.Contains(t, renderMessage(system), "hi there")
	assert.NotContains(t, renderMessage(system), "alice")
}
