package googleai

import (
	"context"
	"time"

	"github.com/google/generative-ai-go/genai"

	"github.com/revenium/revenium-middleware-google-go/metering"
	"github.com/revenium/revenium-middleware-google-go/usage"
)

// EmbeddingModel meters embedding calls on a genai embedding handle.
type EmbeddingModel struct {
	inner    *genai.EmbeddingModel
	name     string
	reporter *metering.Reporter
}

// WrapEmbeddingModel meters an existing embedding model handle.
func WrapEmbeddingModel(inner *genai.EmbeddingModel, name string, reporter *metering.Reporter) *EmbeddingModel {
	return &EmbeddingModel{inner: inner, name: name, reporter: reporter}
}

// Inner exposes the wrapped SDK handle.
func (m *EmbeddingModel) Inner() *genai.EmbeddingModel {
	return m.inner
}

// EmbedContent embeds the given parts and meters the call. The Google AI
// embedding response carries no usage block, so the record reports zero
// token counts with the model taken from the request side.
func (m *EmbeddingModel) EmbedContent(ctx context.Context, meta metering.Metadata, parts ...genai.Part) (*genai.EmbedContentResponse, error) {
	start := time.Now().UTC()
	resp, err := m.inner.EmbedContent(ctx, parts...)
	if err != nil {
		return nil, err
	}
	m.reportEmbed(meta, start, time.Now().UTC())
	return resp, nil
}

func (m *EmbeddingModel) reportEmbed(meta metering.Metadata, start, end time.Time) {
	defer logReportPanic()
	rec := usage.NewRecord(usage.OperationEmbed, usage.VariantGoogleAI, nil, m.name, start, end)
	m.reporter.Report(rec, meta)
}
