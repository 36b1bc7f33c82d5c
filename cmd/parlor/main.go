package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/vovakirdan/parlor/parlor"
	"github.com/vovakirdan/parlor/parlor/console"
	"github.com/vovakirdan/parlor/parlor/rest"
)

func main() {
	server := pflag.StringP("server", "s", "http://localhost:8080", "chat server base URL")
	verbose := pflag.BoolP("verbose", "v", false, "enable debug logging")
	pflag.Parse()

	logger := newLogger(*verbose)
	if err := run(*server, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(server string, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := parlor.DefaultConfig()
	cfg.ServerURL = server

	httpClient := &http.Client{Timeout: 10 * time.Second}

	co := parlor.NewCoordinator(cfg, parlor.CoordinatorDeps{
		UI:         console.New(os.Stdin, os.Stdout),
		Supervisor: parlor.NewConnectionSupervisor(httpClient, cfg.ProbeDelay, logger),
		Logger:     logger,
		NewDirectory: func(serverURL string) parlor.Directory {
			c := rest.NewClient(parlor.APIBaseURL(serverURL))
			c.SetHTTPClient(httpClient)
			return c
		},
		NewTransport: func(cfg parlor.Config) (parlor.Transport, error) {
			return parlor.NewWebsocketTransport(cfg, logger)
		},
	})
	return co.Run(ctx)
}

// newLogger keeps log noise away from the chat surface: warnings only unless
// --verbose, text on a terminal, JSON when stderr is redirected.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}
