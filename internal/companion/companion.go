// Package companion talks to the local supervisor process that depends
// on this node's identity. Both calls are best-effort by contract: the
// companion may simply not be running.
package companion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Client calls the companion's local management API over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a Client for the companion at addr (host:port).
// An empty addr yields a disabled client: Alive reports false and
// NotifyIdentity is a no-op.
func NewClient(addr string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		logger: logger,
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
	if addr != "" {
		c.baseURL = "http://" + addr
	}
	return c
}

// Alive reports whether the companion process is running and healthy.
func (c *Client) Alive(ctx context.Context) bool {
	if c.baseURL == "" {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()
	return resp.StatusCode == http.StatusOK
}

// NotifyIdentity informs the companion of the node's (possibly new)
// fully-qualified identity.
func (c *Client) NotifyIdentity(ctx context.Context, nodeName string) error {
	if c.baseURL == "" {
		return nil
	}

	body, err := json.Marshal(struct {
		Node string `json:"node"`
	}{Node: nodeName})
	if err != nil {
		return fmt.Errorf("companion: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/node/identity", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("companion: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("companion: notify: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("companion: notify: unexpected status %d", resp.StatusCode)
	}

	c.logger.Info("notified companion of node identity", "node", nodeName)
	return nil
}
