package policy

import (
	"context"

	"github.com/pithecene-io/runnel/types"
)

// StrictPolicy implements synchronous, unbuffered delivery.
//
//   - No buffering: each chunk is written immediately (batch of 1)
//   - No drops
//   - Backpressure: caller blocks on sink latency
//   - Sink errors fail the relay
type StrictPolicy struct {
	sink  Sink
	stats *statsRecorder
}

// NewStrictPolicy creates a new strict policy writing to the given sink.
func NewStrictPolicy(sink Sink) *StrictPolicy {
	return &StrictPolicy{
		sink:  sink,
		stats: newStatsRecorder(),
	}
}

// IngestChunk writes the chunk immediately to the sink.
// Returns error on sink failure (terminates relay).
func (p *StrictPolicy) IngestChunk(ctx context.Context, chunk types.Chunk) error {
	p.stats.incTotalChunks()

	if err := p.sink.WriteBatch(ctx, []types.Chunk{chunk}); err != nil {
		p.stats.incErrors()
		return err
	}

	p.stats.incChunksFlushed(1)
	return nil
}

// Flush is a no-op for strict policy (nothing is buffered).
func (p *StrictPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close closes the underlying sink.
func (p *StrictPolicy) Close() error {
	return p.sink.Close()
}

// Stats returns policy statistics.
func (p *StrictPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*StrictPolicy)(nil)
