// Package rest calls the conventional request/response collaborators:
// session create, join-by-code, and the HTTP path of fill-with-bots. These
// are outside the realtime core; they only supply the session id and token
// the channel needs, plus the one command that is reachable both ways.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type Client struct {
	base  string
	token string
	http  *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		base:  baseURL,
		token: token,
		http:  &http.Client{Timeout: 10 * time.Second},
	}
}

type SessionInfo struct {
	ID       string `json:"id"`
	JoinCode string `json:"joinCode"`
	Token    string `json:"token"`
	PlayerID string `json:"playerId"`
}

// CreateSession provisions a fresh session and returns its join handle.
func (c *Client) CreateSession(ctx context.Context, name, playerName string) (SessionInfo, error) {
	return c.postInfo(ctx, "/sessions", map[string]string{"name": name, "playerName": playerName})
}

// JoinByCode resolves a join code into a session id and credentials.
func (c *Client) JoinByCode(ctx context.Context, code, playerName string) (SessionInfo, error) {
	return c.postInfo(ctx, fmt.Sprintf("/sessions/%s/join", code), map[string]string{"playerName": playerName})
}

// FillWithBots is the HTTP twin of the realtime fill-with-bots command.
// Both paths converge on the same roster-delta events from the server.
func (c *Client) FillWithBots(ctx context.Context, sessionID string) error {
	resp, err := c.post(ctx, fmt.Sprintf("/sessions/%s/bots", sessionID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("fill with bots: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) postInfo(ctx context.Context, path string, body any) (SessionInfo, error) {
	resp, err := c.post(ctx, path, body)
	if err != nil {
		return SessionInfo{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return SessionInfo{}, fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}
	var info SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return SessionInfo{}, err
	}
	return info, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(req)
}
