// Package vertexai is a metered REST client for the Vertex AI generative
// endpoints: generateContent, streamGenerateContent, and predict for
// embeddings. Responses pass through unchanged; usage is reported out of
// band.
package vertexai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/revenium/revenium-middleware-google-go/metering"
)

const (
	defaultMaxRetries = 2
	retryBaseDelay    = 500 * time.Millisecond
)

// Config holds the connection settings for a Vertex AI project.
type Config struct {
	ProjectID string
	Location  string
	// Endpoint overrides the regional API endpoint, mainly for tests.
	Endpoint string
	// TokenSource supplies OAuth2 access tokens. Optional when the
	// endpoint does its own authentication.
	TokenSource oauth2.TokenSource
	HTTPClient  *http.Client
}

// Client issues Vertex AI requests and meters their usage.
type Client struct {
	projectID   string
	location    string
	endpoint    string
	tokenSource oauth2.TokenSource
	httpClient  *http.Client
	reporter    *metering.Reporter
	maxRetries  int
}

// NewClient validates cfg and builds a client. Project and location are
// required unless a custom endpoint is set.
func NewClient(cfg Config, reporter *metering.Reporter) (*Client, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.ProjectID == "" || cfg.Location == "" {
			return nil, fmt.Errorf("vertexai: project ID and location are required")
		}
		endpoint = fmt.Sprintf("https://%s-aiplatform.googleapis.com", cfg.Location)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{
		projectID:   cfg.ProjectID,
		location:    cfg.Location,
		endpoint:    endpoint,
		tokenSource: cfg.TokenSource,
		httpClient:  httpClient,
		reporter:    reporter,
		maxRetries:  defaultMaxRetries,
	}, nil
}

// APIError is a non-2xx answer from the Vertex AI API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("vertexai: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("vertexai: request failed with status %d", e.StatusCode)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func (c *Client) modelURL(model, verb string) string {
	return fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:%s",
		c.endpoint, c.projectID, c.location, model, verb)
}

// doJSON posts a JSON body and decodes a JSON answer, retrying rate limits
// and server errors with a linear backoff.
func (c *Client) doJSON(ctx context.Context, url string, reqBody, respBody any) error {
	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * retryBaseDelay
			log.Debug().Int("attempt", attempt).Dur("delay", delay).Msg("Retrying Vertex AI request")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		resp, err := c.post(ctx, url, encoded)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			apiErr := parseAPIError(resp.StatusCode, body)
			if retryable(resp.StatusCode) {
				lastErr = apiErr
				continue
			}
			return apiErr
		}
		if err := json.Unmarshal(body, respBody); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return lastErr
}

func (c *Client) post(ctx context.Context, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.tokenSource != nil {
		token, err := c.tokenSource.Token()
		if err != nil {
			return nil, fmt.Errorf("fetch access token: %w", err)
		}
		token.SetAuthHeader(req)
	}
	return c.httpClient.Do(req)
}

func parseAPIError(status int, body []byte) *APIError {
	var wire struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &wire)
	return &APIError{
		StatusCode: status,
		Status:     wire.Error.Status,
		Message:    wire.Error.Message,
	}
}
