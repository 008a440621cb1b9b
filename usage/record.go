// Package usage converts provider responses into normalized metering records.
package usage

import (
	"time"

	"github.com/google/uuid"
)

const (
	// Provider is the reported vendor name for all records.
	Provider = "Google"
	// ModelSource identifies the model family on the metering side.
	ModelSource = "GOOGLE"
	// UnknownModel is reported when no model name can be resolved.
	UnknownModel = "unknown-model"
)

// OperationType classifies the intercepted call.
type OperationType string

const (
	OperationChat  OperationType = "CHAT"
	OperationEmbed OperationType = "EMBED"
)

// Variant selects which provider surface produced a response. The two
// surfaces report finish reasons with slightly different vocabularies.
type Variant string

const (
	VariantGoogleAI Variant = "google_ai"
	VariantVertexAI Variant = "vertex_ai"
)

// Record is one normalized usage observation for a single provider call.
type Record struct {
	TransactionID string
	Model         string
	Provider      string
	ModelSource   string
	OperationType OperationType
	StopReason    StopReason

	InputTokenCount         int64
	OutputTokenCount        int64
	TotalTokenCount         int64
	CacheCreationTokenCount int64
	CacheReadTokenCount     int64
	ReasoningTokenCount     int64

	RequestTime  time.Time
	ResponseTime time.Time
	IsStreamed   bool
	// TimeToFirstToken is milliseconds from request start to the first
	// streamed chunk. Zero for non-streaming calls.
	TimeToFirstToken int64
}

// Duration returns the request duration in milliseconds.
func (r Record) Duration() int64 {
	if r.ResponseTime.Before(r.RequestTime) {
		return 0
	}
	return r.ResponseTime.Sub(r.RequestTime).Milliseconds()
}

// NewRecord builds a Record from a canonical response. The response may be
// nil, in which case all counts are zero and the fallback model is used.
// Embedding records always carry a zero output count and an END stop reason.
func NewRecord(op OperationType, variant Variant, resp *Response, fallbackModel string, requestTime, responseTime time.Time) Record {
	counts := ExtractCounts(resp, op)
	stop := StopEnd
	if op == OperationChat {
		stop = NormalizeStopReason(finishReason(resp), variant)
	}
	return Record{
		TransactionID:       uuid.NewString(),
		Model:               ResolveModel(resp, fallbackModel),
		Provider:            Provider,
		ModelSource:         ModelSource,
		OperationType:       op,
		StopReason:          stop,
		InputTokenCount:     counts.Input,
		OutputTokenCount:    counts.Output,
		TotalTokenCount:     counts.Total,
		CacheReadTokenCount: counts.Cached,
		RequestTime:         requestTime,
		ResponseTime:        responseTime,
	}
}
