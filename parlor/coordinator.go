package parlor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/parlor/parlor/rest"
)

const helpText = `commands:
  /help              show this help
  /bye, /quit        quit the application (work at every prompt)
  /rooms             list rooms            (in a session)
  /users             list room members     (in a session)
  /info              show room details     (in a session)
  /history           replay recent messages (in a session)
  /exit, /leave      leave the room        (in a session)
anything else is sent to the room as a message`

// CoordinatorDeps supplies the collaborators the coordinator drives. The
// directory and transport are built through factories so that a
// change-address choice at startup can rebind both.
type CoordinatorDeps struct {
	UI           UI
	Supervisor   *ConnectionSupervisor
	Logger       *slog.Logger
	NewDirectory func(serverURL string) Directory
	NewTransport func(cfg Config) (Transport, error)
}

// Coordinator drives the macro loop: server probe, room selection and
// credential acquisition, one session engine per successful join, and the
// loop back to room selection when a session ends.
type Coordinator struct {
	cfg    Config
	deps   CoordinatorDeps
	ui     UI
	logger *slog.Logger
	router *CommandRouter

	directory Directory
	transport Transport
}

// NewCoordinator wires the coordinator and its global commands.
func NewCoordinator(cfg Config, deps CoordinatorDeps) *Coordinator {
	co := &Coordinator{
		cfg:    cfg,
		deps:   deps,
		ui:     deps.UI,
		logger: deps.Logger,
		router: NewCommandRouter(),
	}
	quit := func(context.Context, string) error { return ErrQuit }
	co.router.Global("help", co.cmdHelp)
	co.router.Global("bye", quit)
	co.router.Global("quit", quit)
	// Outside a session /exit quits; inside one the session handler
	// shadows it and leaves the room instead.
	co.router.Global("exit", quit)
	return co
}

// Run blocks until the user quits, input ends, or ctx is cancelled. Errors
// surfaced by the directory or a session are displayed and the room
// selection loop continues; only a quit or an unrecoverable startup failure
// ends the loop.
func (co *Coordinator) Run(ctx context.Context) error {
	if err := co.ensureServer(ctx); err != nil {
		if errors.Is(err, ErrQuit) || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		err := co.runOnce(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrQuit), errors.Is(err, io.EOF), errors.Is(err, context.Canceled):
			co.ui.Notice("bye!")
			return nil
		default:
			co.ui.Errorf("%v", err)
			// Wait for the user before retrying so a dead directory does
			// not spin the loop.
			if _, perr := co.promptLine(ctx, "press enter to retry: "); perr != nil {
				if errors.Is(perr, ErrQuit) || errors.Is(perr, io.EOF) || errors.Is(perr, context.Canceled) {
					co.ui.Notice("bye!")
					return nil
				}
				return perr
			}
		}
	}
}

// ensureServer runs the pre-session health probe and, on exhaustion, offers
// retry / change address / quit. On success it binds the directory client
// and transport for the chosen address.
func (co *Coordinator) ensureServer(ctx context.Context) error {
	for {
		err := co.deps.Supervisor.WaitForServer(ctx, co.cfg.ServerURL, co.cfg.ProbeAttempts)
		if err == nil {
			return co.bind()
		}
		if ctx.Err() != nil {
			return err
		}
		co.ui.Errorf("%v", err)

		choice, perr := co.promptLine(ctx, "retry, change address, or quit? [r/c/q]: ")
		if perr != nil {
			return perr
		}
		switch strings.ToLower(choice) {
		case "r", "":
		case "c":
			addr, perr := co.promptLine(ctx, "server address: ")
			if perr != nil {
				return perr
			}
			if addr == "" {
				co.ui.Errorf("address unchanged")
				continue
			}
			co.cfg.ServerURL = addr
		case "q":
			return ErrQuit
		default:
			co.ui.Errorf("please answer r, c or q")
		}
	}
}

func (co *Coordinator) bind() error {
	co.directory = co.deps.NewDirectory(co.cfg.ServerURL)
	transport, err := co.deps.NewTransport(co.cfg)
	if err != nil {
		return err
	}
	co.transport = transport
	return nil
}

// runOnce is one pass of the macro loop: room selection, join, session.
func (co *Coordinator) runOnce(ctx context.Context) error {
	rooms, err := co.directory.ListRooms(ctx)
	if err != nil {
		return err
	}
	co.ui.ShowRooms(rooms)

	choice, err := co.promptLine(ctx, "create a room or join one? [c/j]: ")
	if err != nil {
		return err
	}

	var roomID, password string
	switch strings.ToLower(choice) {
	case "c":
		roomID, password, err = co.createRoomFlow(ctx)
		if err != nil {
			return err
		}
	case "j":
		roomID, err = co.promptLine(ctx, "room id: ")
		if err != nil {
			return err
		}
		if roomID == "" {
			return NewError(ErrorInvalidInput, "room id is required")
		}
		password, err = co.ui.ReadPassword(ctx, "room password (empty if none): ")
		if err != nil {
			return err
		}
	case "":
		return nil
	default:
		co.ui.Errorf("please answer c or j")
		return nil
	}

	join, err := co.joinFlow(ctx, roomID, password)
	if err != nil {
		return err
	}

	identity := SessionIdentity{
		RoomID:   join.RoomID,
		UserID:   join.UserID,
		Username: join.Username,
		RoomName: join.RoomName,
	}
	return co.runSession(ctx, identity)
}

func (co *Coordinator) createRoomFlow(ctx context.Context) (roomID, password string, err error) {
	name, err := co.promptLine(ctx, "room name: ")
	if err != nil {
		return "", "", err
	}
	if name == "" {
		return "", "", NewError(ErrorInvalidInput, "room name is required")
	}
	password, err = co.ui.ReadPassword(ctx, "room password (empty for open room): ")
	if err != nil {
		return "", "", err
	}
	room, err := co.directory.CreateRoom(ctx, name, password)
	if err != nil {
		return "", "", err
	}
	co.ui.Notice(fmt.Sprintf("room %q created (id %s)", room.Name, room.ID))
	return room.ID, password, nil
}

// joinResult pairs the directory's answer with the username that earned it.
type joinResult struct {
	RoomID   string
	UserID   string
	Username string
	RoomName string
}

// joinFlow collects a username and joins the room. A username-taken
// rejection re-prompts only for the username, keeping the chosen room and
// password.
func (co *Coordinator) joinFlow(ctx context.Context, roomID, password string) (*joinResult, error) {
	for {
		username, err := co.promptLine(ctx, "username: ")
		if err != nil {
			return nil, err
		}
		if username == "" {
			co.ui.Errorf("username is required")
			continue
		}
		join, err := co.directory.JoinRoom(ctx, roomID, username, password)
		if err == nil {
			res := &joinResult{
				RoomID:   join.RoomID,
				UserID:   join.UserID,
				Username: username,
				RoomName: join.RoomName,
			}
			if res.RoomID == "" {
				res.RoomID = roomID
			}
			return res, nil
		}
		var apiErr *rest.APIError
		if errors.As(err, &apiErr) && apiErr.IsUsernameTaken() {
			co.ui.Errorf("username %q is taken, pick another", username)
			continue
		}
		return nil, err
	}
}

// runSession owns one session from connect to cleanup. It returns nil to
// loop back to room selection and ErrQuit to end the application.
func (co *Coordinator) runSession(ctx context.Context, identity SessionIdentity) error {
	logger := co.logger.With("session_id", uuid.NewString(), "room", identity.RoomID)
	engine := NewSessionEngine(co.transport, co.cfg, logger)

	// Server-side backlog before the live stream starts.
	if backlog, err := co.directory.MessageHistory(ctx, identity.RoomID, co.cfg.HistoryFetchLimit); err != nil {
		logger.Debug("history fetch failed", "error", err)
	} else if len(backlog) > 0 {
		co.ui.ShowHistory(historyMessages(backlog))
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	err := engine.Connect(ctx, identity,
		func(m Message) { co.ui.ShowMessage(m) },
		func() { cancel() })
	if err != nil {
		co.leaveQuietly(identity)
		return err
	}

	// Cleanup order on any exit: stop reading input (we return), cancel a
	// pending reconnect and close the transport, then best-effort notify
	// the directory that the user left.
	defer func() {
		engine.Disconnect()
		co.leaveQuietly(identity)
	}()

	co.bindSessionCommands(engine, identity)
	defer co.router.ResetSession()

	co.ui.Notice(fmt.Sprintf("joined %s as %s, /help for commands", identity.RoomName, identity.Username))

	for {
		line, err := co.ui.ReadLine(sessionCtx, "> ")
		if err != nil {
			if errors.Is(err, context.Canceled) {
				if ctx.Err() != nil {
					return ErrQuit
				}
				if engine.State() == StateFailed {
					co.ui.Errorf("connection lost for good, returning to room selection")
					return nil
				}
				return nil
			}
			return err
		}

		outcome, err := co.router.Dispatch(sessionCtx, line, true)
		switch {
		case errors.Is(err, ErrLeaveSession):
			return nil
		case errors.Is(err, ErrQuit):
			return ErrQuit
		case err != nil:
			co.ui.Errorf("%v", err)
		}

		switch outcome {
		case OutcomeChat:
			if err := engine.Send(sessionCtx, strings.TrimSpace(line)); err != nil {
				// A failed send does not end the session; only a
				// transport close notification does.
				co.ui.Errorf("send failed: %v", err)
			}
		case OutcomeUnknown:
			name, _, _ := ParseCommand(line)
			co.ui.Errorf("unknown command %q, /help lists commands", CommandPrefix+name)
		}
	}
}

func (co *Coordinator) bindSessionCommands(engine *SessionEngine, identity SessionIdentity) {
	co.router.Session("users", func(ctx context.Context, _ string) error {
		users, err := co.directory.RoomUsers(ctx, identity.RoomID)
		if err != nil {
			return err
		}
		co.ui.ShowUsers(identity.RoomName, users)
		return nil
	})
	co.router.Session("rooms", func(ctx context.Context, _ string) error {
		rooms, err := co.directory.ListRooms(ctx)
		if err != nil {
			return err
		}
		co.ui.ShowRooms(rooms)
		return nil
	})
	co.router.Session("info", func(ctx context.Context, _ string) error {
		room, err := co.directory.RoomInfo(ctx, identity.RoomID)
		if err != nil {
			return err
		}
		co.ui.ShowRoomInfo(*room)
		return nil
	})
	co.router.Session("history", func(context.Context, string) error {
		co.ui.ShowHistory(engine.History())
		return nil
	})
	leave := func(context.Context, string) error { return ErrLeaveSession }
	co.router.Session("exit", leave)
	co.router.Session("leave", leave)
}

// promptLine reads one line and lets global commands interrupt the prompt.
// Unknown commands notify and re-prompt; a handled command that isn't a
// sentinel (such as /help) also re-prompts.
func (co *Coordinator) promptLine(ctx context.Context, prompt string) (string, error) {
	for {
		line, err := co.ui.ReadLine(ctx, prompt)
		if err != nil {
			return "", err
		}
		outcome, err := co.router.Dispatch(ctx, line, false)
		switch outcome {
		case OutcomeChat:
			return strings.TrimSpace(line), nil
		case OutcomeEmpty:
			return "", nil
		case OutcomeHandled:
			if err != nil {
				return "", err
			}
		case OutcomeUnknown:
			name, _, _ := ParseCommand(line)
			co.ui.Errorf("unknown command %q, /help lists commands", CommandPrefix+name)
		}
	}
}

func (co *Coordinator) cmdHelp(context.Context, string) error {
	co.ui.Notice(helpText)
	return nil
}

// leaveQuietly tells the directory the user left. Best effort: shutdown must
// not block on it, so failures are only logged.
func (co *Coordinator) leaveQuietly(identity SessionIdentity) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := co.directory.LeaveRoom(ctx, identity.RoomID, identity.UserID); err != nil {
		co.logger.Debug("leave room notification failed", "error", err)
	}
}

func historyMessages(in []rest.HistoryMessage) []Message {
	out := make([]Message, len(in))
	for i, m := range in {
		out[i] = Message{
			ID:        m.ID,
			RoomID:    m.RoomID,
			UserID:    m.UserID,
			Username:  m.Username,
			Content:   m.Content,
			Timestamp: m.Timestamp,
			Type:      MessageType(m.Type),
		}
	}
	return out
}
