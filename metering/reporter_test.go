package metering

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revenium/revenium-middleware-google-go/usage"
)

type meterBackend struct {
	mu       sync.Mutex
	payloads []map[string]any
	apiKeys  []string
	status   int
}

func (b *meterBackend) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		b.mu.Lock()
		b.payloads = append(b.payloads, payload)
		b.apiKeys = append(b.apiKeys, r.Header.Get("x-api-key"))
		status := b.status
		b.mu.Unlock()
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
	}
}

func (b *meterBackend) received() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any(nil), b.payloads...)
}

func newTestReporter(t *testing.T, backend *meterBackend) *Reporter {
	t.Helper()
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)
	return NewReporterFromConfig(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/meter",
	})
}

func shutdownReporter(t *testing.T, r *Reporter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))
}

func TestReporterSubmitsRecord(t *testing.T) {
	backend := &meterBackend{}
	r := newTestReporter(t, backend)

	now := time.Now().UTC()
	rec := usage.NewRecord(usage.OperationChat, usage.VariantGoogleAI, &usage.Response{
		UsageMetadata: &usage.TokenUsage{
			PromptTokenCount:     usage.Count(10),
			CandidatesTokenCount: usage.Count(15),
			TotalTokenCount:      usage.Count(25),
		},
		Candidates: []usage.Candidate{{FinishReason: "STOP"}},
	}, "gemini-2.0-flash", now, now.Add(time.Second))

	r.Report(rec, Metadata{MetaTraceID: "trace-1"})
	shutdownReporter(t, r)

	payloads := backend.received()
	require.Len(t, payloads, 1)
	p := payloads[0]
	assert.Equal(t, "gemini-2.0-flash", p["model"])
	assert.Equal(t, "Google", p["provider"])
	assert.Equal(t, "CHAT", p["operation_type"])
	assert.Equal(t, "END", p["stop_reason"])
	assert.Equal(t, float64(10), p["input_token_count"])
	assert.Equal(t, float64(15), p["output_token_count"])
	assert.Equal(t, float64(25), p["total_token_count"])
	assert.Equal(t, "trace-1", p["trace_id"])
	assert.Equal(t, "test-key", backend.apiKeys[0])
}

func TestReporterSkipsAfterShutdown(t *testing.T) {
	backend := &meterBackend{}
	r := newTestReporter(t, backend)
	shutdownReporter(t, r)

	rec := usage.NewRecord(usage.OperationChat, usage.VariantGoogleAI, nil, "m", time.Now(), time.Now())
	r.Report(rec, nil)

	// Repeated shutdown is a no-op.
	shutdownReporter(t, r)
	assert.Empty(t, backend.received())
}

func TestReporterBackendFailureDoesNotPropagate(t *testing.T) {
	backend := &meterBackend{status: http.StatusInternalServerError}
	r := newTestReporter(t, backend)

	rec := usage.NewRecord(usage.OperationChat, usage.VariantGoogleAI, nil, "m", time.Now(), time.Now())
	assert.NotPanics(t, func() {
		r.Report(rec, nil)
		shutdownReporter(t, r)
	})
	assert.Len(t, backend.received(), 1)
}

func TestReporterDrainsQueueOnShutdown(t *testing.T) {
	backend := &meterBackend{}
	r := newTestReporter(t, backend)

	for range 20 {
		rec := usage.NewRecord(usage.OperationEmbed, usage.VariantGoogleAI, nil, "text-embedding-004", time.Now(), time.Now())
		r.Report(rec, nil)
	}
	shutdownReporter(t, r)

	assert.Len(t, backend.received(), 20)
}

func TestClientSubmitEndpoint(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, c.Submit(context.Background(), map[string]any{"transaction_id": "t"}))
	assert.Equal(t, "/meter/v2/ai/completions", gotPath)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	_, err := ConfigFromEnv()
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	t.Setenv(EnvAPIKey, "key-1")
	t.Setenv(EnvBaseURL, "https://api.revenium.ai/meter/v1")
	t.Setenv(EnvTimeout, "3")
	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "key-1", cfg.APIKey)
	assert.Equal(t, "https://api.revenium.ai/meter", cfg.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
}
