package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is the HTTP client for the bridge admin API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new bridge API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// AccountStatus mirrors the bridge's account listing entry
type AccountStatus struct {
	Name       string   `json:"name"`
	State      string   `json:"state"`
	Attempts   int      `json:"attempts"`
	Triggers   []string `json:"triggers,omitempty"`
	ForwardAll bool     `json:"forward_all"`
	LastSender string   `json:"last_sender,omitempty"`
}

// Triggers is the trigger set of one account
type Triggers struct {
	Account   string   `json:"account"`
	Effective []string `json:"effective"`
	Added     []string `json:"added"`
}

// TriggersUpdate is applied as clear, then remove, then add
type TriggersUpdate struct {
	Add    []string `json:"add,omitempty"`
	Remove []string `json:"remove,omitempty"`
	Clear  bool     `json:"clear,omitempty"`
}

// ============ Accounts ============

// ListAccounts lists the operator's accounts with their session state
func (c *Client) ListAccounts(ctx context.Context, operatorID int64) ([]AccountStatus, error) {
	var result struct {
		Accounts []AccountStatus `json:"accounts"`
	}
	if err := c.do(ctx, http.MethodGet, accountsPath(operatorID), nil, &result); err != nil {
		return nil, err
	}
	return result.Accounts, nil
}

// Reconnect forces a reconnect of one account's session
func (c *Client) Reconnect(ctx context.Context, operatorID int64, name string) error {
	return c.do(ctx, http.MethodPost, accountPath(operatorID, name)+"/reconnect", nil, nil)
}

// SetForwardAll toggles forwarding of every inbound message
func (c *Client) SetForwardAll(ctx context.Context, operatorID int64, name string, enabled bool) error {
	body := map[string]bool{"enabled": enabled}
	return c.do(ctx, http.MethodPut, accountPath(operatorID, name)+"/forward-all", body, nil)
}

// ============ Triggers ============

// GetTriggers returns an account's trigger words
func (c *Client) GetTriggers(ctx context.Context, operatorID int64, name string) (*Triggers, error) {
	var result Triggers
	if err := c.do(ctx, http.MethodGet, accountPath(operatorID, name)+"/triggers", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateTriggers applies a trigger update and returns the new set
func (c *Client) UpdateTriggers(ctx context.Context, operatorID int64, name string, update TriggersUpdate) (*Triggers, error) {
	var result Triggers
	if err := c.do(ctx, http.MethodPut, accountPath(operatorID, name)+"/triggers", update, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ============ HTTP Helpers ============

func accountsPath(operatorID int64) string {
	return fmt.Sprintf("/api/operators/%d/accounts", operatorID)
}

func accountPath(operatorID int64, name string) string {
	return accountsPath(operatorID) + "/" + url.PathEscape(name)
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiError(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// apiError extracts the "error" field of a JSON error body, falling back to the raw text
func apiError(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
