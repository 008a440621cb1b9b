package vertexai

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddings(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "text-embedding-004:predict")
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Instances, 2)
		_ = json.NewEncoder(w).Encode(embedResponse{
			Predictions: []embedPrediction{
				{Embeddings: embedValues{Values: []float64{0.1, 0.2}, Statistics: &embedStatistics{TokenCount: 4}}},
				{Embeddings: embedValues{Values: []float64{0.3, 0.4}, Statistics: &embedStatistics{TokenCount: 6}}},
			},
		})
	})

	got, err := h.client.Embeddings(context.Background(), nil, "text-embedding-004", []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []float64{0.1, 0.2}, got[0].Values)
	assert.Equal(t, int64(4), got[0].TokenCount)
	assert.Equal(t, int64(6), got[1].TokenCount)

	h.flush(t)
	payloads := h.backend.received()
	require.Len(t, payloads, 1)
	p := payloads[0]
	assert.Equal(t, "EMBED", p["operation_type"])
	assert.Equal(t, "END", p["stop_reason"])
	assert.Equal(t, float64(10), p["input_token_count"])
	assert.Equal(t, float64(0), p["output_token_count"])
	assert.Equal(t, float64(10), p["total_token_count"])
	assert.Equal(t, "text-embedding-004", p["model"])
}

func TestEmbeddingsCharacterFallback(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{
			Predictions: []embedPrediction{
				{Embeddings: embedValues{Values: []float64{0.5}}},
			},
			Metadata: &struct {
				BillableCharacterCount int64 `json:"billableCharacterCount"`
			}{BillableCharacterCount: 40},
		})
	})

	_, err := h.client.Embeddings(context.Background(), nil, "text-embedding-004", []string{"text"})
	require.NoError(t, err)

	h.flush(t)
	payloads := h.backend.received()
	require.Len(t, payloads, 1)
	assert.Equal(t, float64(10), payloads[0]["input_token_count"])
}

func TestEmbeddingsError(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := h.client.Embeddings(context.Background(), nil, "missing-model", []string{"x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	h.flush(t)
	assert.Empty(t, h.backend.received())
}
