package usage

import "strings"

// TokenUsage is the canonical shape of a provider usage block. Each field is
// optional; extraction walks the candidates in order and takes the first
// positive value, so responses from either surface (and either naming
// convention) reduce the same way.
type TokenUsage struct {
	PromptTokenCount        *int64
	PromptTokens            *int64
	InputTokens             *int64
	CandidatesTokenCount    *int64
	CompletionTokens        *int64
	OutputTokens            *int64
	TotalTokenCount         *int64
	TotalTokens             *int64
	CachedContentTokenCount *int64
	CachedTokens            *int64
}

// Candidate carries the per-candidate fields extraction cares about.
type Candidate struct {
	FinishReason string
}

// EmbeddingStatistics holds the token accounting attached to embedding
// predictions. When the token count is absent the billable character count
// is used to estimate one token per four characters.
type EmbeddingStatistics struct {
	TokenCount             int64
	BillableCharacterCount int64
}

// Response is the provider-neutral view of a completed call. Adapters build
// one from whatever their SDK or wire format returned.
type Response struct {
	Model         string
	ModelVersion  string
	UsageMetadata *TokenUsage
	Usage         *TokenUsage
	Candidates    []Candidate
	FinishReason  string
	Statistics    *EmbeddingStatistics
}

// Counts is the reduced token accounting for one call.
type Counts struct {
	Input  int64
	Output int64
	Total  int64
	Cached int64
}

func firstCount(candidates ...*int64) int64 {
	for _, c := range candidates {
		if c != nil && *c > 0 {
			return *c
		}
	}
	return 0
}

// Count wraps a raw token count for use in a TokenUsage field.
func Count(n int64) *int64 {
	return &n
}

// ExtractCounts reduces a response to token counts. Embeddings never report
// output tokens, and a missing total is reconstructed from input and output.
// A nil response yields all zeros, which is still a valid observation.
func ExtractCounts(resp *Response, op OperationType) Counts {
	if resp == nil {
		return Counts{}
	}
	var c Counts
	if op == OperationEmbed && resp.Statistics != nil {
		c.Input = resp.Statistics.TokenCount
		if c.Input == 0 && resp.Statistics.BillableCharacterCount > 0 {
			c.Input = max(1, resp.Statistics.BillableCharacterCount/4)
		}
		c.Total = c.Input
		return c
	}
	u := resp.UsageMetadata
	if u == nil {
		u = resp.Usage
	}
	if u != nil {
		c.Input = firstCount(u.PromptTokenCount, u.PromptTokens, u.InputTokens)
		c.Output = firstCount(u.CandidatesTokenCount, u.CompletionTokens, u.OutputTokens)
		c.Total = firstCount(u.TotalTokenCount, u.TotalTokens)
		c.Cached = firstCount(u.CachedContentTokenCount, u.CachedTokens)
	}
	if op == OperationEmbed {
		c.Output = 0
	}
	if c.Total == 0 && (c.Input > 0 || c.Output > 0) {
		c.Total = c.Input + c.Output
	}
	return c
}

// modelPrefixes are resource path prefixes stripped from reported model
// names, checked in order with only the first match removed.
var modelPrefixes = []string{
	"publishers/google/models/",
	"models/",
	"google/models/",
	"projects/",
}

// CleanModel strips a single leading resource path prefix from a model name.
func CleanModel(name string) string {
	for _, prefix := range modelPrefixes {
		if strings.HasPrefix(name, prefix) {
			return strings.TrimPrefix(name, prefix)
		}
	}
	return name
}

// ResolveModel picks the reported model name: the response model, then its
// model version, then the caller-supplied fallback, then UnknownModel.
func ResolveModel(resp *Response, fallback string) string {
	candidates := []string{fallback}
	if resp != nil {
		candidates = []string{resp.Model, resp.ModelVersion, fallback}
	}
	for _, name := range candidates {
		if name != "" {
			return CleanModel(name)
		}
	}
	return UnknownModel
}

func finishReason(resp *Response) string {
	if resp == nil {
		return ""
	}
	if resp.FinishReason != "" {
		return resp.FinishReason
	}
	if len(resp.Candidates) > 0 {
		return resp.Candidates[0].FinishReason
	}
	return ""
}
