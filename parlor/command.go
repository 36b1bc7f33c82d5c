package parlor

import (
	"context"
	"errors"
	"strings"
	"unicode"
)

// CommandPrefix marks an input line as a command.
const CommandPrefix = "/"

// Sentinel results that must unwind whatever nested prompt loop is waiting
// for input.
var (
	// ErrQuit terminates the whole application.
	ErrQuit = errors.New("quit requested")

	// ErrLeaveSession ends the active session and returns control to room
	// selection.
	ErrLeaveSession = errors.New("leave session requested")
)

// HandlerFunc handles one dispatched command. args is the remainder of the
// line after the command token.
type HandlerFunc func(ctx context.Context, args string) error

// Outcome classifies what Dispatch did with an input line.
type Outcome int

const (
	// OutcomeChat means the line is not a command and should be forwarded
	// to the session verbatim.
	OutcomeChat Outcome = iota

	// OutcomeEmpty means the line was blank and is ignored.
	OutcomeEmpty

	// OutcomeHandled means a registered handler ran.
	OutcomeHandled

	// OutcomeUnknown means the line looked like a command but matched no
	// handler; no state changed.
	OutcomeUnknown
)

// CommandRouter resolves slash commands in two tiers: global commands are
// recognized at every prompt in the application, session commands only while
// a session is active. Session handlers are rebound per session and shadow a
// global command of the same name while the session lasts.
type CommandRouter struct {
	global  map[string]HandlerFunc
	session map[string]HandlerFunc
}

// NewCommandRouter returns a router with no handlers bound.
func NewCommandRouter() *CommandRouter {
	return &CommandRouter{
		global:  make(map[string]HandlerFunc),
		session: make(map[string]HandlerFunc),
	}
}

// Global registers a command recognized at every prompt.
func (r *CommandRouter) Global(name string, fn HandlerFunc) {
	r.global[strings.ToLower(name)] = fn
}

// Session registers a command valid only while a session is active.
func (r *CommandRouter) Session(name string, fn HandlerFunc) {
	r.session[strings.ToLower(name)] = fn
}

// ResetSession drops all session-scoped handlers.
func (r *CommandRouter) ResetSession() {
	r.session = make(map[string]HandlerFunc)
}

// ParseCommand splits a line into its command token (lower-cased, prefix
// stripped, characters up to the first whitespace) and the remaining
// arguments. ok is false for lines without the command prefix.
func ParseCommand(line string) (name, args string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, CommandPrefix) {
		return "", "", false
	}
	rest := line[len(CommandPrefix):]
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		name, args = rest[:i], strings.TrimSpace(rest[i:])
	} else {
		name = rest
	}
	return strings.ToLower(name), args, true
}

// Dispatch routes one raw input line. Handler errors (including the quit and
// leave sentinels) are returned alongside OutcomeHandled.
func (r *CommandRouter) Dispatch(ctx context.Context, line string, sessionActive bool) (Outcome, error) {
	if strings.TrimSpace(line) == "" {
		return OutcomeEmpty, nil
	}
	name, args, ok := ParseCommand(line)
	if !ok {
		return OutcomeChat, nil
	}
	if sessionActive {
		if fn, found := r.session[name]; found {
			return OutcomeHandled, fn(ctx, args)
		}
	}
	if fn, found := r.global[name]; found {
		return OutcomeHandled, fn(ctx, args)
	}
	return OutcomeUnknown, nil
}
