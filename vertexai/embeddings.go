package vertexai

import (
	"context"
	"time"

	"github.com/revenium/revenium-middleware-google-go/metering"
	"github.com/revenium/revenium-middleware-google-go/usage"
)

type embedInstance struct {
	Content  string `json:"content"`
	TaskType string `json:"task_type,omitempty"`
}

type embedRequest struct {
	Instances []embedInstance `json:"instances"`
}

type embedStatistics struct {
	TokenCount float64 `json:"token_count"`
	Truncated  bool    `json:"truncated"`
}

type embedValues struct {
	Values     []float64        `json:"values"`
	Statistics *embedStatistics `json:"statistics,omitempty"`
}

type embedPrediction struct {
	Embeddings embedValues `json:"embeddings"`
}

type embedResponse struct {
	Predictions []embedPrediction `json:"predictions"`
	Metadata    *struct {
		BillableCharacterCount int64 `json:"billableCharacterCount"`
	} `json:"metadata,omitempty"`
}

// Embedding is one embedded input with its token accounting.
type Embedding struct {
	Values     []float64
	TokenCount int64
	Truncated  bool
}

// Embeddings embeds texts with the named model via the predict endpoint and
// meters the call. Token counts come from the per-prediction statistics;
// when those are absent the billable character count stands in, at an
// estimated four characters per token.
func (c *Client) Embeddings(ctx context.Context, meta metering.Metadata, model string, texts []string) ([]Embedding, error) {
	start := time.Now().UTC()
	req := embedRequest{Instances: make([]embedInstance, 0, len(texts))}
	for _, text := range texts {
		req.Instances = append(req.Instances, embedInstance{Content: text})
	}

	var resp embedResponse
	if err := c.doJSON(ctx, c.modelURL(model, "predict"), req, &resp); err != nil {
		return nil, err
	}

	out := make([]Embedding, 0, len(resp.Predictions))
	var tokens int64
	for _, p := range resp.Predictions {
		e := Embedding{Values: p.Embeddings.Values}
		if s := p.Embeddings.Statistics; s != nil {
			e.TokenCount = int64(s.TokenCount)
			e.Truncated = s.Truncated
			tokens += e.TokenCount
		}
		out = append(out, e)
	}

	stats := &usage.EmbeddingStatistics{TokenCount: tokens}
	if resp.Metadata != nil {
		stats.BillableCharacterCount = resp.Metadata.BillableCharacterCount
	}
	rec := usage.NewRecord(usage.OperationEmbed, usage.VariantVertexAI, &usage.Response{Statistics: stats}, model, start, time.Now().UTC())
	c.reporter.Report(rec, meta)
	return out, nil
}
