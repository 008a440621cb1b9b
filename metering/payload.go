package metering

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/revenium/revenium-middleware-google-go/usage"
)

// timestampLayout renders UTC timestamps the way the backend expects.
const timestampLayout = "2006-01-02T15:04:05Z"

// MiddlewareSource identifies this integration in submitted payloads.
const MiddlewareSource = "go"

// Metadata carries optional caller-supplied attribution for a single call.
// It is consumed by the metering layer and never forwarded to the provider.
type Metadata map[string]any

// Metadata keys recognized by BuildPayload. Unrecognized keys are ignored.
const (
	MetaTraceID              = "trace_id"
	MetaTaskType             = "task_type"
	MetaOrganizationID       = "organization_id"
	MetaOrganizationIDAlias  = "organizationId"
	MetaSubscriptionID       = "subscription_id"
	MetaProductID            = "product_id"
	MetaAgent                = "agent"
	MetaResponseQualityScore = "response_quality_score"

	// MetaSubscriber holds a nested subscriber object and wins over the
	// flat subscriber keys below.
	MetaSubscriber               = "subscriber"
	MetaSubscriberID             = "subscriber_id"
	MetaSubscriberEmail          = "subscriber_email"
	MetaSubscriberCredential     = "subscriber_credential"
	MetaSubscriberCredentialName = "subscriber_credential_name"
)

var flatSubscriberWarning sync.Once

// BuildPayload flattens a usage record and its caller metadata into the
// submission body for the metering backend.
func BuildPayload(rec usage.Record, meta Metadata) map[string]any {
	payload := map[string]any{
		"transaction_id":             rec.TransactionID,
		"model":                      rec.Model,
		"provider":                   rec.Provider,
		"model_source":               rec.ModelSource,
		"cost_type":                  "AI",
		"middleware_source":          MiddlewareSource,
		"operation_type":             string(rec.OperationType),
		"stop_reason":                string(rec.StopReason),
		"is_streamed":                rec.IsStreamed,
		"input_token_count":          rec.InputTokenCount,
		"output_token_count":         rec.OutputTokenCount,
		"total_token_count":          rec.TotalTokenCount,
		"cache_creation_token_count": rec.CacheCreationTokenCount,
		"cache_read_token_count":     rec.CacheReadTokenCount,
		"reasoning_token_count":      rec.ReasoningTokenCount,
		"input_token_cost":           nil,
		"output_token_cost":          nil,
		"total_cost":                 nil,
		"request_time":               rec.RequestTime.UTC().Format(timestampLayout),
		"response_time":              rec.ResponseTime.UTC().Format(timestampLayout),
		"completion_start_time":      completionStart(rec).Format(timestampLayout),
		"request_duration":           rec.Duration(),
		"time_to_first_token":        rec.TimeToFirstToken,
	}

	setIfPresent(payload, "trace_id", meta, MetaTraceID)
	setIfPresent(payload, "task_type", meta, MetaTaskType)
	setIfPresent(payload, "organization_id", meta, MetaOrganizationID, MetaOrganizationIDAlias)
	setIfPresent(payload, "subscription_id", meta, MetaSubscriptionID)
	setIfPresent(payload, "product_id", meta, MetaProductID)
	setIfPresent(payload, "agent", meta, MetaAgent)
	setIfPresent(payload, "response_quality_score", meta, MetaResponseQualityScore)

	if subscriber := normalizeSubscriber(meta); len(subscriber) > 0 {
		payload["subscriber"] = subscriber
	}
	return payload
}

// completionStart is when the first output became available: the first
// streamed chunk for streams, the response time otherwise.
func completionStart(rec usage.Record) time.Time {
	if rec.IsStreamed && rec.TimeToFirstToken > 0 {
		return rec.RequestTime.UTC().Add(time.Duration(rec.TimeToFirstToken) * time.Millisecond)
	}
	return rec.ResponseTime.UTC()
}

func setIfPresent(payload map[string]any, field string, meta Metadata, keys ...string) {
	for _, key := range keys {
		if v, ok := meta[key]; ok && truthy(v) {
			payload[field] = v
			return
		}
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// normalizeSubscriber folds subscriber attribution into the nested object
// the backend expects. A nested subscriber wins outright; the flat keys are
// a deprecated spelling and trigger a one-time warning.
func normalizeSubscriber(meta Metadata) map[string]any {
	if nested, ok := meta[MetaSubscriber].(map[string]any); ok && len(nested) > 0 {
		out := make(map[string]any, len(nested))
		for k, v := range nested {
			out[k] = v
		}
		return out
	}

	out := map[string]any{}
	var flatKeys []string
	if id, ok := stringValue(meta, MetaSubscriberID); ok {
		out["id"] = id
		flatKeys = append(flatKeys, MetaSubscriberID)
	}
	if email, ok := stringValue(meta, MetaSubscriberEmail); ok {
		out["email"] = email
		flatKeys = append(flatKeys, MetaSubscriberEmail)
	}
	credential := map[string]any{}
	if name, ok := stringValue(meta, MetaSubscriberCredentialName); ok {
		credential["name"] = name
		flatKeys = append(flatKeys, MetaSubscriberCredentialName)
	}
	if value, ok := stringValue(meta, MetaSubscriberCredential); ok {
		credential["value"] = value
		flatKeys = append(flatKeys, MetaSubscriberCredential)
	}
	if len(credential) > 0 {
		out["credential"] = credential
	}
	if len(flatKeys) > 0 {
		sort.Strings(flatKeys)
		flatSubscriberWarning.Do(func() {
			log.Warn().
				Strs("keys", flatKeys).
				Msg("Flat subscriber metadata keys are deprecated; use a nested subscriber object")
		})
	}
	return out
}

func stringValue(meta Metadata, key string) (string, bool) {
	s, ok := meta[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
