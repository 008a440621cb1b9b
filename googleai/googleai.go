// Package googleai wraps the Google AI Gemini SDK client so chat,
// streaming, and embedding calls are metered. Wrapped calls return the
// SDK's results unchanged; usage reporting happens out of band.
package googleai

import (
	"context"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/revenium/revenium-middleware-google-go/metering"
)

// Client wraps a genai.Client and hands out metered model handles.
type Client struct {
	inner    *genai.Client
	reporter *metering.Reporter
}

// NewClient dials the Google AI API and wraps the resulting client.
func NewClient(ctx context.Context, reporter *metering.Reporter, opts ...option.ClientOption) (*Client, error) {
	inner, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return Wrap(inner, reporter), nil
}

// Wrap meters an existing genai.Client.
func Wrap(inner *genai.Client, reporter *metering.Reporter) *Client {
	return &Client{inner: inner, reporter: reporter}
}

// GenerativeModel returns a metered handle on the named generative model.
func (c *Client) GenerativeModel(name string) *GenerativeModel {
	return WrapGenerativeModel(c.inner.GenerativeModel(name), name, c.reporter)
}

// EmbeddingModel returns a metered handle on the named embedding model.
func (c *Client) EmbeddingModel(name string) *EmbeddingModel {
	return WrapEmbeddingModel(c.inner.EmbeddingModel(name), name, c.reporter)
}

// Close releases the underlying SDK client.
func (c *Client) Close() error {
	return c.inner.Close()
}
