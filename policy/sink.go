package policy

import (
	"context"
	"sync"

	"github.com/pithecene-io/runnel/types"
)

// Sink receives flushed chunk batches.
// The relay's transcript is the production sink; StubSink serves tests.
type Sink interface {
	// WriteBatch delivers a batch of chunks in ingestion order.
	// Returns error on failure; the policy keeps the batch for retry.
	WriteBatch(ctx context.Context, chunks []types.Chunk) error

	// Close releases any resources held by the sink.
	Close() error
}

// StubSink is a test sink that accepts writes without persisting.
// Tracks write statistics for test assertions.
type StubSink struct {
	mu sync.Mutex

	// ChunksWritten is the total count of chunks written.
	ChunksWritten int64
	// BatchCount is the number of WriteBatch calls that succeeded.
	BatchCount int64
	// Closed indicates whether Close was called.
	Closed bool

	// WrittenChunks stores all written chunks for inspection.
	WrittenChunks []types.Chunk
	// Batches stores each written batch for ordering tests.
	Batches [][]types.Chunk

	// ErrorOnWrite, if non-nil, is returned by WriteBatch.
	ErrorOnWrite error
}

// NewStubSink creates a new stub sink for testing.
func NewStubSink() *StubSink {
	return &StubSink{
		WrittenChunks: make([]types.Chunk, 0),
		Batches:       make([][]types.Chunk, 0),
	}
}

// WriteBatch records the chunks without persisting.
func (s *StubSink) WriteBatch(_ context.Context, chunks []types.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnWrite != nil {
		return s.ErrorOnWrite
	}

	batch := append([]types.Chunk(nil), chunks...)
	s.BatchCount++
	s.ChunksWritten += int64(len(chunks))
	s.WrittenChunks = append(s.WrittenChunks, batch...)
	s.Batches = append(s.Batches, batch)

	return nil
}

// SetError sets the error returned by subsequent writes.
func (s *StubSink) SetError(err error) {
	s.mu.Lock()
	s.ErrorOnWrite = err
	s.mu.Unlock()
}

// Close marks the sink as closed.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Closed = true
	return nil
}

// Written returns a copy of every chunk written so far.
func (s *StubSink) Written() []types.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Chunk(nil), s.WrittenChunks...)
}

// Stats returns a snapshot of sink statistics.
func (s *StubSink) Stats() StubSinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StubSinkStats{
		ChunksWritten: s.ChunksWritten,
		BatchCount:    s.BatchCount,
		Closed:        s.Closed,
	}
}

// StubSinkStats is a snapshot of StubSink statistics.
type StubSinkStats struct {
	ChunksWritten int64
	BatchCount    int64
	Closed        bool
}
