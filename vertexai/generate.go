package vertexai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/revenium/revenium-middleware-google-go/metering"
	"github.com/revenium/revenium-middleware-google-go/stream"
	"github.com/revenium/revenium-middleware-google-go/usage"
)

// Content is one conversation turn.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is a single content fragment. Only text is supported.
type Part struct {
	Text string `json:"text,omitempty"`
}

// GenerationConfig tunes the completion.
type GenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
}

// GenerateContentRequest is the generateContent request body.
type GenerateContentRequest struct {
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

// Candidate is one generated completion.
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

// UsageMetadata is the token accounting block on generate responses.
type UsageMetadata struct {
	PromptTokenCount        int64 `json:"promptTokenCount"`
	CandidatesTokenCount    int64 `json:"candidatesTokenCount"`
	TotalTokenCount         int64 `json:"totalTokenCount"`
	CachedContentTokenCount int64 `json:"cachedContentTokenCount,omitempty"`
}

// GenerateContentResponse is a full response or one streamed chunk.
type GenerateContentResponse struct {
	Candidates    []Candidate    `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string         `json:"modelVersion,omitempty"`
}

// Text concatenates the text parts of the first candidate.
func (r *GenerateContentResponse) Text() string {
	if r == nil || len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// Prompt builds a single-turn user request.
func Prompt(text string) *GenerateContentRequest {
	return &GenerateContentRequest{
		Contents: []Content{{Role: "user", Parts: []Part{{Text: text}}}},
	}
}

// GenerateContent runs a chat completion against the named model and meters
// its usage. A failed call produces no usage record.
func (c *Client) GenerateContent(ctx context.Context, meta metering.Metadata, model string, req *GenerateContentRequest) (*GenerateContentResponse, error) {
	start := time.Now().UTC()
	var resp GenerateContentResponse
	if err := c.doJSON(ctx, c.modelURL(model, "generateContent"), req, &resp); err != nil {
		return nil, err
	}
	c.reportChat(&resp, meta, model, start, time.Now().UTC())
	return &resp, nil
}

func (c *Client) reportChat(resp *GenerateContentResponse, meta metering.Metadata, model string, start, end time.Time) {
	rec := usage.NewRecord(usage.OperationChat, usage.VariantVertexAI, toResponse(resp), model, start, end)
	c.reporter.Report(rec, meta)
}

func toResponse(resp *GenerateContentResponse) *usage.Response {
	if resp == nil {
		return nil
	}
	out := &usage.Response{ModelVersion: resp.ModelVersion}
	if um := resp.UsageMetadata; um != nil {
		out.UsageMetadata = &usage.TokenUsage{
			PromptTokenCount:        usage.Count(um.PromptTokenCount),
			CandidatesTokenCount:    usage.Count(um.CandidatesTokenCount),
			TotalTokenCount:         usage.Count(um.TotalTokenCount),
			CachedContentTokenCount: usage.Count(um.CachedContentTokenCount),
		}
	}
	for _, cand := range resp.Candidates {
		out.Candidates = append(out.Candidates, usage.Candidate{FinishReason: cand.FinishReason})
	}
	return out
}

func observeChunk(chunk *GenerateContentResponse) stream.Observation {
	var obs stream.Observation
	if chunk == nil {
		return obs
	}
	obs.Model = chunk.ModelVersion
	if um := chunk.UsageMetadata; um != nil {
		obs.Usage = &usage.TokenUsage{
			PromptTokenCount:        usage.Count(um.PromptTokenCount),
			CandidatesTokenCount:    usage.Count(um.CandidatesTokenCount),
			TotalTokenCount:         usage.Count(um.TotalTokenCount),
			CachedContentTokenCount: usage.Count(um.CachedContentTokenCount),
		}
	}
	if len(chunk.Candidates) > 0 && chunk.Candidates[0].FinishReason != "" {
		obs.FinishReason = chunk.Candidates[0].FinishReason
	}
	return obs
}

// StreamGenerateContent starts a server-sent-events completion. The
// returned stream reports usage exactly once however it ends.
func (c *Client) StreamGenerateContent(ctx context.Context, meta metering.Metadata, model string, req *GenerateContentRequest) (*Stream, error) {
	start := time.Now().UTC()
	encoded, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	resp, err := c.post(ctx, c.modelURL(model, "streamGenerateContent")+"?alt=sse", encoded)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, parseAPIError(resp.StatusCode, body)
	}

	src := &sseStream{body: resp.Body, scanner: bufio.NewScanner(resp.Body)}
	src.scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	meter := stream.New(stream.Config[*GenerateContentResponse]{
		Source:  src,
		Done:    io.EOF,
		Observe: observeChunk,
		Report: func(s stream.Summary) {
			c.reportStream(s, meta, model, start)
		},
	})
	return &Stream{meter: meter}, nil
}

func (c *Client) reportStream(s stream.Summary, meta metering.Metadata, model string, start time.Time) {
	synth := &usage.Response{
		Model:         s.Model,
		UsageMetadata: s.Usage,
		FinishReason:  s.FinishReason,
	}
	rec := usage.NewRecord(usage.OperationChat, usage.VariantVertexAI, synth, model, start, time.Now().UTC())
	rec.IsStreamed = true
	if !s.FirstChunkAt.IsZero() {
		rec.TimeToFirstToken = s.FirstChunkAt.Sub(start).Milliseconds()
	}
	c.reporter.Report(rec, meta)
}

// Stream is a metered server-sent-events completion.
type Stream struct {
	meter *stream.Meter[*GenerateContentResponse]
}

// Next returns the next chunk, or io.EOF when the stream is exhausted.
func (s *Stream) Next() (*GenerateContentResponse, error) {
	return s.meter.Next()
}

// Close abandons the stream and releases the connection.
func (s *Stream) Close() error {
	return s.meter.Close()
}

// sseStream decodes data: lines off the response body. Unparseable events
// are skipped rather than failing the stream.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func (s *sseStream) Next() (*GenerateContentResponse, error) {
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}
		var chunk GenerateContentResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			log.Debug().Err(err).Msg("Skipping unparseable stream event")
			continue
		}
		return &chunk, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
