// Package stream wraps pull-based response streams so usage can be reported
// exactly once per stream, no matter how the consumer lets go of it.
package stream

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/revenium/revenium-middleware-google-go/usage"
)

// DefaultMaxChunks caps how many chunks a meter retains. Forwarding is
// never capped, only retention.
const DefaultMaxChunks = 1000

// Source is the minimal pull interface both provider surfaces expose.
type Source[T any] interface {
	Next() (T, error)
}

// Observation is what a single chunk contributes to the final usage
// summary. Zero-valued fields leave the running summary untouched.
type Observation struct {
	Model        string
	FinishReason string
	Usage        *usage.TokenUsage
}

// Summary is the accumulated view of a finished stream, handed to the
// report callback exactly once.
type Summary struct {
	Model        string
	FinishReason string
	Usage        *usage.TokenUsage
	Chunks       int
	// FirstChunkAt is zero when the stream ended before any chunk arrived.
	FirstChunkAt time.Time
	// Err is the terminal error, nil when the stream was exhausted or
	// closed cleanly.
	Err error
}

// ReportFunc receives the summary when the stream finishes. It must not
// block for long; delivery to the backend is the callback's concern.
type ReportFunc func(Summary)

// Config assembles a Meter.
type Config[T any] struct {
	Source Source[T]
	// Done is the sentinel the source returns on clean exhaustion, e.g.
	// iterator.Done or io.EOF.
	Done    error
	Observe func(T) Observation
	Report  ReportFunc
	// MaxChunks overrides DefaultMaxChunks when positive.
	MaxChunks int
}

// Meter forwards chunks from a source unchanged while accumulating a usage
// summary. The summary is reported exactly once: on exhaustion, on a
// terminal source error, or on Close, whichever comes first.
type Meter[T any] struct {
	src       Source[T]
	done      error
	observe   func(T) Observation
	report    ReportFunc
	maxChunks int

	mu           sync.Mutex
	retained     []T
	capWarned    bool
	model        string
	finishReason string
	usage        *usage.TokenUsage
	chunks       int
	firstChunkAt time.Time
	closed       bool
	reported     bool
}

// New builds a Meter around cfg.Source.
func New[T any](cfg Config[T]) *Meter[T] {
	maxChunks := cfg.MaxChunks
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}
	done := cfg.Done
	if done == nil {
		done = io.EOF
	}
	return &Meter[T]{
		src:       cfg.Source,
		done:      done,
		observe:   cfg.Observe,
		report:    cfg.Report,
		maxChunks: maxChunks,
	}
}

// Next pulls the next chunk from the source. Chunks and errors pass through
// unchanged; after Close it returns the exhaustion sentinel.
func (m *Meter[T]) Next() (T, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		var zero T
		return zero, m.done
	}
	m.mu.Unlock()

	chunk, err := m.src.Next()
	if err != nil {
		if errors.Is(err, m.done) {
			m.finalize(nil)
		} else {
			m.finalize(err)
		}
		var zero T
		return zero, err
	}
	m.record(chunk)
	return chunk, nil
}

// Close releases the underlying source and reports the summary if it was
// not reported yet. Safe to call more than once.
func (m *Meter[T]) Close() error {
	m.mu.Lock()
	alreadyClosed := m.closed
	m.closed = true
	m.retained = nil
	m.mu.Unlock()

	m.finalize(nil)
	if alreadyClosed {
		return nil
	}
	if closer, ok := m.src.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Retained reports how many chunks the meter currently holds.
func (m *Meter[T]) Retained() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.retained)
}

func (m *Meter[T]) record(chunk T) {
	var obs Observation
	if m.observe != nil {
		obs = m.observe(chunk)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks++
	if m.firstChunkAt.IsZero() {
		m.firstChunkAt = time.Now().UTC()
	}
	if len(m.retained) < m.maxChunks {
		m.retained = append(m.retained, chunk)
	} else if !m.capWarned {
		m.capWarned = true
		log.Warn().
			Int("max_chunks", m.maxChunks).
			Msg("Stream exceeded retention cap; further chunks forwarded without retention")
	}
	if obs.Model != "" {
		m.model = obs.Model
	}
	if obs.FinishReason != "" {
		m.finishReason = obs.FinishReason
	}
	if obs.Usage != nil {
		m.usage = obs.Usage
	}
}

// finalize reports the summary once. Report callback panics are logged and
// swallowed so observability never breaks stream consumption.
func (m *Meter[T]) finalize(terminal error) {
	m.mu.Lock()
	if m.reported {
		m.mu.Unlock()
		return
	}
	m.reported = true
	summary := Summary{
		Model:        m.model,
		FinishReason: m.finishReason,
		Usage:        m.usage,
		Chunks:       m.chunks,
		FirstChunkAt: m.firstChunkAt,
		Err:          terminal,
	}
	m.retained = nil
	m.mu.Unlock()

	if m.report == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Stream usage report panicked")
		}
	}()
	if summary.Chunks == 0 {
		log.Debug().Msg("Stream finished without chunks; reporting empty usage")
	}
	m.report(summary)
}
