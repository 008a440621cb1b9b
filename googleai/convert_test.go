package googleai

import (
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revenium/revenium-middleware-google-go/usage"
)

func TestToResponseUsage(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{FinishReason: genai.FinishReasonStop},
		},
		UsageMetadata: &genai.UsageMetadata{
			PromptTokenCount:     10,
			CandidatesTokenCount: 15,
			TotalTokenCount:      25,
		},
	}

	got := toResponse(resp)
	require.NotNil(t, got)
	counts := usage.ExtractCounts(got, usage.OperationChat)
	assert.Equal(t, usage.Counts{Input: 10, Output: 15, Total: 25}, counts)
	require.Len(t, got.Candidates, 1)
	assert.Equal(t, "STOP", got.Candidates[0].FinishReason)
}

func TestToResponseCachedTokens(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		UsageMetadata: &genai.UsageMetadata{
			PromptTokenCount:        20,
			CachedContentTokenCount: 8,
		},
	}
	counts := usage.ExtractCounts(toResponse(resp), usage.OperationChat)
	assert.Equal(t, int64(8), counts.Cached)
}

func TestToResponseNil(t *testing.T) {
	assert.Nil(t, toResponse(nil))
	got := toResponse(&genai.GenerateContentResponse{})
	require.NotNil(t, got)
	assert.Nil(t, got.UsageMetadata)
	assert.Empty(t, got.Candidates)
}

func TestFinishReasonString(t *testing.T) {
	tests := []struct {
		reason genai.FinishReason
		want   string
	}{
		{genai.FinishReasonStop, "STOP"},
		{genai.FinishReasonMaxTokens, "MAX_TOKENS"},
		{genai.FinishReasonSafety, "SAFETY"},
		{genai.FinishReasonRecitation, "RECITATION"},
		{genai.FinishReasonOther, "OTHER"},
		{genai.FinishReasonUnspecified, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, finishReasonString(tt.reason))
	}
}

func TestObserveChunk(t *testing.T) {
	obs := observeChunk(nil)
	assert.Empty(t, obs.FinishReason)
	assert.Nil(t, obs.Usage)

	obs = observeChunk(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonMaxTokens}},
		UsageMetadata: &genai.UsageMetadata{
			PromptTokenCount: 5,
			TotalTokenCount:  5,
		},
	})
	assert.Equal(t, "MAX_TOKENS", obs.FinishReason)
	require.NotNil(t, obs.Usage)
	assert.Equal(t, int64(5), *obs.Usage.TotalTokenCount)
}

func TestChatRecordFromSDKResponse(t *testing.T) {
	start := time.Now().UTC()
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonStop}},
		UsageMetadata: &genai.UsageMetadata{
			PromptTokenCount:     10,
			CandidatesTokenCount: 15,
			TotalTokenCount:      25,
		},
	}

	rec := usage.NewRecord(usage.OperationChat, usage.VariantGoogleAI, toResponse(resp), "gemini-2.0-flash", start, start.Add(time.Second))
	assert.Equal(t, "gemini-2.0-flash", rec.Model)
	assert.Equal(t, usage.StopEnd, rec.StopReason)
	assert.Equal(t, int64(10), rec.InputTokenCount)
	assert.Equal(t, int64(15), rec.OutputTokenCount)
	assert.Equal(t, int64(25), rec.TotalTokenCount)
}
