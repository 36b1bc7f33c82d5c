// Package console owns the terminal for the chat client: a single reader
// goroutine serves line and password requests, and all output funnels
// through the console so an asynchronous message can redraw the prompt a
// reader is currently waiting at. The prompt text belongs to the input side;
// output only reads it.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

type readRequest struct {
	masked bool
	reply  chan readResult
}

type readResult struct {
	line string
	err  error
}

// Console is the production UI implementation.
type Console struct {
	requests chan readRequest

	stdinFD    int
	isTerminal bool

	mu            sync.Mutex
	out           io.Writer
	prompt        string          // current prompt, empty when nobody is waiting
	pending       chan readResult // survives a cancelled wait so the next read reuses it
	pendingMasked bool            // echo mode of the pending read
}

// New builds a console reading from in and writing to out. Password input is
// masked only when in is a terminal; otherwise it falls back to plain lines
// so piped input keeps working.
func New(in io.Reader, out io.Writer) *Console {
	c := &Console{
		requests: make(chan readRequest),
		out:      out,
		stdinFD:  -1,
	}
	if f, ok := in.(*os.File); ok {
		c.stdinFD = int(f.Fd())
		c.isTerminal = term.IsTerminal(c.stdinFD)
	}
	go c.readLoop(in)
	return c
}

// readLoop is the only goroutine that touches the input stream.
func (c *Console) readLoop(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for req := range c.requests {
		if req.masked && c.isTerminal {
			raw, err := term.ReadPassword(c.stdinFD)
			fmt.Fprintln(c.out)
			req.reply <- readResult{line: string(raw), err: err}
			continue
		}
		if scanner.Scan() {
			req.reply <- readResult{line: scanner.Text()}
			continue
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		req.reply <- readResult{err: err}
	}
}

// ReadLine prompts and blocks for one line. If ctx is cancelled while
// waiting, the pending read is kept and handed to the next ReadLine call,
// since a terminal read cannot be withdrawn.
func (c *Console) ReadLine(ctx context.Context, prompt string) (string, error) {
	return c.read(ctx, prompt, false)
}

// ReadPassword prompts for input without echo.
func (c *Console) ReadPassword(ctx context.Context, prompt string) (string, error) {
	return c.read(ctx, prompt, true)
}

func (c *Console) read(ctx context.Context, prompt string, masked bool) (string, error) {
	c.mu.Lock()
	if c.pending != nil && c.pendingMasked != masked {
		// The abandoned read is in the other echo mode; its eventual result
		// drains into its own buffered reply and is discarded.
		c.pending = nil
	}
	c.prompt = prompt
	fmt.Fprint(c.out, prompt)
	if c.pending == nil {
		reply := make(chan readResult, 1)
		c.pending = reply
		c.pendingMasked = masked
		c.mu.Unlock()
		select {
		case c.requests <- readRequest{masked: masked, reply: reply}:
		case <-ctx.Done():
			// Never delivered to the read loop, so it is safe to drop.
			c.mu.Lock()
			c.pending = nil
			c.prompt = ""
			c.mu.Unlock()
			return "", ctx.Err()
		}
		c.mu.Lock()
	}
	pending := c.pending
	c.mu.Unlock()

	select {
	case res := <-pending:
		c.mu.Lock()
		c.pending = nil
		c.prompt = ""
		c.mu.Unlock()
		return res.line, res.err
	case <-ctx.Done():
		c.mu.Lock()
		c.prompt = ""
		c.mu.Unlock()
		return "", ctx.Err()
	}
}

// writeLine prints one finished line, clearing and restoring an in-progress
// prompt around it.
func (c *Console) writeLine(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prompt != "" {
		fmt.Fprint(c.out, "\r\x1b[K")
	}
	fmt.Fprintln(c.out, s)
	if c.prompt != "" {
		fmt.Fprint(c.out, c.prompt)
	}
}
