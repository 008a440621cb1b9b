package googleai

import (
	"github.com/google/generative-ai-go/genai"

	"github.com/revenium/revenium-middleware-google-go/stream"
	"github.com/revenium/revenium-middleware-google-go/usage"
)

// toResponse maps an SDK response onto the canonical extraction shape.
func toResponse(resp *genai.GenerateContentResponse) *usage.Response {
	if resp == nil {
		return nil
	}
	out := &usage.Response{
		UsageMetadata: toTokenUsage(resp.UsageMetadata),
	}
	for _, c := range resp.Candidates {
		if c == nil {
			continue
		}
		out.Candidates = append(out.Candidates, usage.Candidate{
			FinishReason: finishReasonString(c.FinishReason),
		})
	}
	return out
}

func toTokenUsage(um *genai.UsageMetadata) *usage.TokenUsage {
	if um == nil {
		return nil
	}
	return &usage.TokenUsage{
		PromptTokenCount:        usage.Count(int64(um.PromptTokenCount)),
		CandidatesTokenCount:    usage.Count(int64(um.CandidatesTokenCount)),
		TotalTokenCount:         usage.Count(int64(um.TotalTokenCount)),
		CachedContentTokenCount: usage.Count(int64(um.CachedContentTokenCount)),
	}
}

// observeChunk pulls the usage-relevant fields off a streamed chunk. The
// SDK does not echo the model name on chunks, so it stays empty and the
// request-side name is used instead.
func observeChunk(chunk *genai.GenerateContentResponse) stream.Observation {
	var obs stream.Observation
	if chunk == nil {
		return obs
	}
	obs.Usage = toTokenUsage(chunk.UsageMetadata)
	if len(chunk.Candidates) > 0 && chunk.Candidates[0] != nil {
		obs.FinishReason = finishReasonString(chunk.Candidates[0].FinishReason)
	}
	return obs
}

func finishReasonString(r genai.FinishReason) string {
	switch r {
	case genai.FinishReasonStop:
		return "STOP"
	case genai.FinishReasonMaxTokens:
		return "MAX_TOKENS"
	case genai.FinishReasonSafety:
		return "SAFETY"
	case genai.FinishReasonRecitation:
		return "RECITATION"
	case genai.FinishReasonOther:
		return "OTHER"
	default:
		return ""
	}
}
