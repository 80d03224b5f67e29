package httpbus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pagelens/pkg/bus"
)

// Client is the bus.Transport that reaches a remote context's Server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient points a transport at the remote bus endpoint root, e.g.
// "http://127.0.0.1:18890".
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Deliver implements bus.Transport over one HTTP POST round trip.
func (c *Client) Deliver(ctx context.Context, msg bus.Message) (json.RawMessage, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/bus", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deliver message: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var failure wireError
		if jsonErr := json.Unmarshal(raw, &failure); jsonErr == nil && failure.Error != "" {
			return nil, fmt.Errorf("remote context: %s", failure.Error)
		}
		return nil, fmt.Errorf("remote context returned HTTP %d", resp.StatusCode)
	}

	var decoded struct {
		RequestID string          `json:"requestId"`
		Payload   json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return decoded.Payload, nil
}

// Healthy probes the remote context's liveness endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned HTTP %d", resp.StatusCode)
	}

	return nil
}
