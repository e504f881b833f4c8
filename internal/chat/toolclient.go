package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ToolClient talks to the tool dispatcher mounted under /mcp on the task
// server. Every call returns the raw success/error envelope; transport and
// HTTP-level failures come back as Go errors instead.
type ToolClient struct {
	baseURL string
	client  *http.Client
}

func NewToolClient(baseURL string) *ToolClient {
	return &ToolClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateSession registers the client with the server and returns the session
// id to pass on subsequent tool calls.
func (c *ToolClient) CreateSession(ctx context.Context, clientName string) (string, error) {
	payload, err := json.Marshal(map[string]string{"client_name": clientName})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mcp/session", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create session: %s", readErrorBody(res))
	}

	var sess struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&sess); err != nil {
		return "", fmt.Errorf("decode session response: %w", err)
	}
	if sess.SessionID == "" {
		return "", fmt.Errorf("create session: server returned no session id")
	}
	return sess.SessionID, nil
}

// Call invokes one named tool. sessionID may be empty for sessionless calls.
func (c *ToolClient) Call(ctx context.Context, sessionID, name string, args map[string]any) (map[string]any, error) {
	payload, err := json.Marshal(map[string]any{
		"session_id": sessionID,
		"name":       name,
		"arguments":  args,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mcp/tools/call", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tool call %s: %s", name, readErrorBody(res))
	}

	var envelope map[string]any
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode tool envelope: %w", err)
	}
	return envelope, nil
}

func readErrorBody(res *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	var parsed struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
		return fmt.Sprintf("HTTP %d: %s", res.StatusCode, parsed.Error)
	}
	return fmt.Sprintf("HTTP %d", res.StatusCode)
}
