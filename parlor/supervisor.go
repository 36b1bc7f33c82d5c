package parlor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ConnectionSupervisor validates server reachability before any session
// exists. It is independent of the session engine's reconnect machine: one
// probe at a time, a fixed delay apart, bounded by the caller's attempt
// budget.
type ConnectionSupervisor struct {
	client *http.Client
	delay  time.Duration
	logger *slog.Logger
}

// NewConnectionSupervisor builds a supervisor probing with client and
// waiting delay between attempts.
func NewConnectionSupervisor(client *http.Client, delay time.Duration, logger *slog.Logger) *ConnectionSupervisor {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if delay <= 0 {
		delay = 2 * time.Second
	}
	return &ConnectionSupervisor{client: client, delay: delay, logger: logger}
}

// WaitForServer probes the health endpoint up to quickAttempts times. It
// never loops forever: after the budget is spent it returns a
// connection_failed error and leaves retry/change-address/quit choices to
// the caller.
func (s *ConnectionSupervisor) WaitForServer(ctx context.Context, serverURL string, quickAttempts int) error {
	if quickAttempts <= 0 {
		quickAttempts = 1
	}
	healthURL := APIBaseURL(serverURL) + "/health"

	var lastErr error
	for attempt := 1; attempt <= quickAttempts; attempt++ {
		err := s.probe(ctx, healthURL)
		if err == nil {
			s.logger.Debug("server reachable", "url", healthURL, "attempt", attempt)
			return nil
		}
		lastErr = err
		if attempt == 1 {
			s.logger.Warn("server unreachable, retrying",
				"url", healthURL,
				"hint", "check the address and that the server is running")
		}
		if attempt == quickAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return WrapError(ErrorConnectionFailed,
		fmt.Sprintf("server unreachable after %d attempts", quickAttempts), lastErr)
}

func (s *ConnectionSupervisor) probe(ctx context.Context, healthURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("health probe: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("health probe: status %d", resp.StatusCode)
	}
	return nil
}
