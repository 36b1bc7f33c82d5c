package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client provides access to the room directory API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new directory client. baseURL should be the API base,
// e.g. "http://localhost:8080/api".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetHTTPClient allows setting a custom HTTP client.
func (c *Client) SetHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

// ListRooms returns all rooms the server advertises.
func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	var resp []Room
	if err := c.get(ctx, "/rooms", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// CreateRoom creates a new room, optionally password-protected.
func (c *Client) CreateRoom(ctx context.Context, name, password string) (*Room, error) {
	var resp Room
	req := CreateRoomRequest{Name: name, Password: password}
	if err := c.post(ctx, "/rooms", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JoinRoom registers username as a member of the room and returns the
// assigned user id. A 409 response means the username is taken.
func (c *Client) JoinRoom(ctx context.Context, roomID, username, password string) (*JoinResult, error) {
	var resp JoinResult
	req := JoinRoomRequest{Username: username, Password: password}
	if err := c.post(ctx, "/rooms/"+url.PathEscape(roomID)+"/join", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LeaveRoom removes the user from the room's member list.
func (c *Client) LeaveRoom(ctx context.Context, roomID, userID string) error {
	req := LeaveRoomRequest{UserID: userID}
	return c.post(ctx, "/rooms/"+url.PathEscape(roomID)+"/leave", req, nil)
}

// RoomUsers returns the current members of the room.
func (c *Client) RoomUsers(ctx context.Context, roomID string) ([]RoomUser, error) {
	var resp []RoomUser
	if err := c.get(ctx, "/rooms/"+url.PathEscape(roomID)+"/users", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// RoomInfo returns metadata for one room.
func (c *Client) RoomInfo(ctx context.Context, roomID string) (*Room, error) {
	var resp Room
	if err := c.get(ctx, "/rooms/"+url.PathEscape(roomID), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MessageHistory retrieves up to limit recent messages for the room.
func (c *Client) MessageHistory(ctx context.Context, roomID string, limit int) ([]HistoryMessage, error) {
	path := "/rooms/" + url.PathEscape(roomID) + "/messages"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var resp []HistoryMessage
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Helper methods

func (c *Client) post(ctx context.Context, path string, body, dest any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, dest)
}

func (c *Client) do(req *http.Request, dest any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Reason: string(bytes.TrimSpace(body))}
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			apiErr.Reason = errResp.Error
		}
		return apiErr
	}

	if dest != nil {
		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
