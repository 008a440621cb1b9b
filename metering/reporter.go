package metering

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/revenium/revenium-middleware-google-go/usage"
)

type job struct {
	record usage.Record
	meta   Metadata
}

// Reporter accepts usage records without blocking the intercepted call and
// submits them from a background worker. When the queue is full the record
// is dropped with a warning rather than stalling the caller.
type Reporter struct {
	client  *Client
	timeout time.Duration

	mu       sync.Mutex
	queue    chan job
	shutdown bool
	wg       sync.WaitGroup
}

// NewReporter starts a reporter around client. A nil client is rejected by
// construction elsewhere; callers always pass the configured one.
func NewReporter(client *Client, queueSize int) *Reporter {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	r := &Reporter{
		client:  client,
		timeout: defaultTimeout,
		queue:   make(chan job, queueSize),
	}
	r.wg.Add(1)
	go r.worker()
	return r
}

// NewReporterFromConfig wires a client and reporter in one step.
func NewReporterFromConfig(cfg Config) *Reporter {
	cfg = cfg.withDefaults()
	r := NewReporter(NewClient(cfg), cfg.QueueSize)
	r.timeout = cfg.Timeout
	return r
}

// Report enqueues one record for asynchronous submission. After Shutdown it
// becomes a no-op logged at debug level.
func (r *Reporter) Report(rec usage.Record, meta Metadata) {
	r.mu.Lock()
	if r.shutdown {
		r.mu.Unlock()
		skippedTotal.WithLabelValues(skipReasonShutdown).Inc()
		log.Debug().
			Str("transaction_id", rec.TransactionID).
			Msg("Skipping metering call during shutdown")
		return
	}
	select {
	case r.queue <- job{record: rec, meta: meta}:
		r.mu.Unlock()
	default:
		r.mu.Unlock()
		skippedTotal.WithLabelValues(skipReasonQueueFull).Inc()
		log.Warn().
			Str("transaction_id", rec.TransactionID).
			Str("model", rec.Model).
			Msg("Metering queue full; dropping usage record")
	}
}

// Shutdown stops accepting records and drains pending submissions. It
// returns the context error when draining does not finish in time.
func (r *Reporter) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.shutdown {
		r.mu.Unlock()
		return nil
	}
	r.shutdown = true
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reporter) worker() {
	defer r.wg.Done()
	for j := range r.queue {
		r.submit(j)
	}
}

func (r *Reporter) submit(j job) {
	payload := BuildPayload(j.record, j.meta)

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.client.Submit(ctx, payload); err != nil {
		failedTotal.Inc()
		// Log the payload keys for diagnosis, never the values.
		keys := make([]string, 0, len(payload))
		for k := range payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		log.Error().
			Err(err).
			Str("transaction_id", j.record.TransactionID).
			Str("model", j.record.Model).
			Str("operation_type", string(j.record.OperationType)).
			Strs("payload_keys", keys).
			Msg("Metering call failed")
		return
	}
	submittedTotal.Inc()
	log.Debug().
		Str("transaction_id", j.record.TransactionID).
		Str("model", j.record.Model).
		Int64("total_tokens", j.record.TotalTokenCount).
		Msg("Metering call succeeded")
}
