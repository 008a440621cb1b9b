package googleai

import (
	"context"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"

	"github.com/revenium/revenium-middleware-google-go/metering"
	"github.com/revenium/revenium-middleware-google-go/stream"
	"github.com/revenium/revenium-middleware-google-go/usage"
)

// GenerativeModel meters chat and streaming calls on a genai model handle.
// The handle stays fully configurable through Inner.
type GenerativeModel struct {
	inner    *genai.GenerativeModel
	name     string
	reporter *metering.Reporter
}

// WrapGenerativeModel meters an already configured model handle. The name
// is the fallback model reported when a response does not name one.
func WrapGenerativeModel(inner *genai.GenerativeModel, name string, reporter *metering.Reporter) *GenerativeModel {
	return &GenerativeModel{inner: inner, name: name, reporter: reporter}
}

// Inner exposes the wrapped SDK handle for configuration such as
// generation settings and safety options.
func (m *GenerativeModel) Inner() *genai.GenerativeModel {
	return m.inner
}

// GenerateContent runs a chat completion and meters its usage. The SDK
// response and error pass through unchanged; a failed call produces no
// usage record.
func (m *GenerativeModel) GenerateContent(ctx context.Context, meta metering.Metadata, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	start := time.Now().UTC()
	resp, err := m.inner.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, err
	}
	m.reportChat(resp, meta, start, time.Now().UTC())
	return resp, nil
}

// GenerateContentStream starts a streaming completion. The returned stream
// reports usage exactly once, when it is exhausted, fails, or is closed.
func (m *GenerativeModel) GenerateContentStream(ctx context.Context, meta metering.Metadata, parts ...genai.Part) *Stream {
	start := time.Now().UTC()
	iter := m.inner.GenerateContentStream(ctx, parts...)
	meter := stream.New(stream.Config[*genai.GenerateContentResponse]{
		Source:  iter,
		Done:    iterator.Done,
		Observe: observeChunk,
		Report: func(s stream.Summary) {
			m.reportStream(s, meta, start)
		},
	})
	return &Stream{meter: meter}
}

func (m *GenerativeModel) reportChat(resp *genai.GenerateContentResponse, meta metering.Metadata, start, end time.Time) {
	defer logReportPanic()
	rec := usage.NewRecord(usage.OperationChat, usage.VariantGoogleAI, toResponse(resp), m.name, start, end)
	m.reporter.Report(rec, meta)
}

func (m *GenerativeModel) reportStream(s stream.Summary, meta metering.Metadata, start time.Time) {
	defer logReportPanic()
	synth := &usage.Response{
		Model:         s.Model,
		UsageMetadata: s.Usage,
		FinishReason:  s.FinishReason,
	}
	rec := usage.NewRecord(usage.OperationChat, usage.VariantGoogleAI, synth, m.name, start, time.Now().UTC())
	rec.IsStreamed = true
	if !s.FirstChunkAt.IsZero() {
		rec.TimeToFirstToken = s.FirstChunkAt.Sub(start).Milliseconds()
	}
	m.reporter.Report(rec, meta)
}

func logReportPanic() {
	if r := recover(); r != nil {
		log.Error().Interface("panic", r).Msg("Usage reporting panicked")
	}
}

// Stream wraps the SDK response iterator. Next returns chunks and errors
// exactly as the SDK produced them, ending with iterator.Done.
type Stream struct {
	meter *stream.Meter[*genai.GenerateContentResponse]
}

// Next returns the next streamed chunk.
func (s *Stream) Next() (*genai.GenerateContentResponse, error) {
	return s.meter.Next()
}

// Close abandons the stream. Usage observed so far is still reported.
func (s *Stream) Close() error {
	return s.meter.Close()
}
