// Package metering delivers normalized usage records to the Revenium
// metering backend. Delivery is asynchronous and failures never surface to
// the intercepted call.
package metering

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const completionsPath = "/v2/ai/completions"

// Client submits metering payloads over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a Client from cfg. The base URL is normalized through
// EnsureMeterInURL.
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// BaseURL returns the normalized base URL submissions go to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Submit posts one payload to the completions endpoint. Any non-2xx status
// is an error; the response body is drained so connections can be reused.
func (c *Client) Submit(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post metering payload: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("metering backend returned status %d", resp.StatusCode)
	}
	return nil
}

// SetHTTPClient swaps the underlying HTTP client. Intended for tests.
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	if httpClient != nil {
		c.httpClient = httpClient
	}
}
