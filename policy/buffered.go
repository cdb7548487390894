package policy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pithecene-io/runnel/log"
	"github.com/pithecene-io/runnel/types"
)

// BufferedConfig configures a BufferedPolicy.
type BufferedConfig struct {
	// MaxBufferChunks is the maximum number of chunks to buffer.
	// Zero means no limit (use MaxBufferBytes instead).
	MaxBufferChunks int

	// MaxBufferBytes is the maximum buffer size in bytes (estimated).
	// Zero means no limit (use MaxBufferChunks instead).
	// At least one limit must be set.
	MaxBufferBytes int64

	// Logger is an optional logger for policy observability.
	// If nil, no logging is emitted.
	Logger *log.Logger
}

// DefaultBufferedConfig returns sensible defaults for buffered policy.
func DefaultBufferedConfig() BufferedConfig {
	return BufferedConfig{
		MaxBufferChunks: 1000,
		MaxBufferBytes:  10 * 1024 * 1024, // 10 MB
	}
}

// ErrBufferFull is returned when the buffer is full and nothing can be evicted.
var ErrBufferFull = errors.New("buffer full: no superseded system chunk to evict")

// ErrInvalidConfig is returned when BufferedConfig is invalid.
var ErrInvalidConfig = errors.New("invalid config: at least one of MaxBufferChunks or MaxBufferBytes must be set")

// BufferedPolicy implements bounded buffering with batch flushes.
//
//   - Bounded buffer with explicit limits
//   - May drop: a buffered system chunk once a later system chunk of the
//     same session is buffered or incoming
//   - Must NOT drop: anything else
//   - Batch writes on flush, in ingestion order
//   - At-least-once: a failed batch is restored ahead of newer chunks and
//     retried on the next flush
type BufferedPolicy struct {
	sink   Sink
	config BufferedConfig
	logger *log.Logger

	mu          sync.Mutex // guards buffer state and stats
	buffer      []types.Chunk
	bufferBytes int64
	stats       *statsRecorder

	// flushMu serializes flushes so restored batches keep their order.
	flushMu sync.Mutex
}

// NewBufferedPolicy creates a new buffered policy.
// Returns error if config is invalid.
func NewBufferedPolicy(sink Sink, config BufferedConfig) (*BufferedPolicy, error) {
	if config.MaxBufferChunks <= 0 && config.MaxBufferBytes <= 0 {
		return nil, ErrInvalidConfig
	}

	return &BufferedPolicy{
		sink:   sink,
		config: config,
		logger: config.Logger,
		buffer: make([]types.Chunk, 0, min(max(config.MaxBufferChunks, 100), 4096)),
		stats:  newStatsRecorder(),
	}, nil
}

// IngestChunk buffers the chunk, evicting a superseded system chunk if the
// buffer is full.
//
// Eviction strategy when full:
//   - Drop the oldest buffered system chunk whose session has a later system
//     chunk (buffered, or the incoming one)
//   - Repeat until the chunk fits or nothing is evictable
//   - If nothing is evictable: return ErrBufferFull (fail relay)
func (p *BufferedPolicy) IngestChunk(_ context.Context, chunk types.Chunk) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.incTotalChunksLocked()

	size := estimateChunkSize(chunk)
	if p.config.MaxBufferBytes > 0 && size > p.config.MaxBufferBytes {
		p.stats.incErrorsLocked()
		p.logBufferOverflow(chunk)
		return fmt.Errorf("%w: chunk size %d exceeds buffer limit %d", ErrBufferFull, size, p.config.MaxBufferBytes)
	}

	for !p.hasRoomFor(size) {
		if !p.evictSuperseded(chunk) {
			p.stats.incErrorsLocked()
			p.logBufferOverflow(chunk)
			return ErrBufferFull
		}
	}

	p.buffer = append(p.buffer, chunk)
	p.bufferBytes += size
	p.stats.setBufferSizeLocked(p.bufferBytes)
	return nil
}

// Flush writes all buffered chunks to the sink as one batch.
// On failure the batch is kept and retried on the next flush.
func (p *BufferedPolicy) Flush(ctx context.Context) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	p.stats.incFlushLocked()
	batch := p.buffer
	if len(batch) == 0 {
		p.mu.Unlock()
		return nil
	}
	p.buffer = make([]types.Chunk, 0, cap(batch))
	p.recalculateBufferBytes()
	p.mu.Unlock()

	if err := p.sink.WriteBatch(ctx, batch); err != nil {
		// Keep the batch ahead of anything ingested during the write.
		p.mu.Lock()
		p.stats.incErrorsLocked()
		p.buffer = append(batch, p.buffer...)
		p.recalculateBufferBytes()
		p.mu.Unlock()
		p.logFlushFailure(len(batch), err)
		return err
	}

	p.mu.Lock()
	p.stats.incChunksFlushedLocked(int64(len(batch)))
	p.mu.Unlock()
	return nil
}

// Close flushes remaining data and closes the sink.
func (p *BufferedPolicy) Close() error {
	// Best-effort flush on close
	_ = p.Flush(context.Background())
	return p.sink.Close()
}

// Stats returns policy statistics.
// Returns an atomic snapshot: the buffer mutex is held while taking the
// snapshot, ensuring all counters and buffer size are captured from the
// same point in time.
func (p *BufferedPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stats.snapshotLocked(p.bufferBytes)
}

// hasRoomFor checks if the buffer can accept a chunk of the given size.
// Caller must hold mu.
func (p *BufferedPolicy) hasRoomFor(size int64) bool {
	if p.config.MaxBufferChunks > 0 && len(p.buffer) >= p.config.MaxBufferChunks {
		return false
	}
	if p.config.MaxBufferBytes > 0 && p.bufferBytes+size > p.config.MaxBufferBytes {
		return false
	}
	return true
}

// evictSuperseded removes the oldest buffered system chunk that a later
// system chunk of the same session supersedes. The incoming chunk counts
// as later than everything buffered.
// Returns true if a chunk was evicted. Caller must hold mu.
func (p *BufferedPolicy) evictSuperseded(incoming types.Chunk) bool {
	latest := make(map[string]int)
	for i, c := range p.buffer {
		if IsDroppable(c) {
			latest[c.Session()] = i
		}
	}
	incomingSystem := IsDroppable(incoming)

	for i, c := range p.buffer {
		if !IsDroppable(c) {
			continue
		}
		session := c.Session()
		superseded := latest[session] > i || (incomingSystem && incoming.Session() == session)
		if !superseded {
			continue
		}
		p.buffer = append(p.buffer[:i], p.buffer[i+1:]...)
		p.bufferBytes -= estimateChunkSize(c)
		p.stats.setBufferSizeLocked(p.bufferBytes)
		p.stats.incChunksDroppedLocked(session)
		p.logDrop(c, "superseded")
		return true
	}
	return false
}

// recalculateBufferBytes recalculates bufferBytes from the buffer. Caller must hold mu.
func (p *BufferedPolicy) recalculateBufferBytes() {
	var total int64
	for _, c := range p.buffer {
		total += estimateChunkSize(c)
	}
	p.bufferBytes = total
	p.stats.setBufferSizeLocked(p.bufferBytes)
}

// --- Logging helpers ---

func (p *BufferedPolicy) logDrop(chunk types.Chunk, reason string) {
	if p.logger == nil {
		return
	}
	p.logger.Warn("chunk dropped", map[string]any{
		"session":  chunk.Session(),
		"sequence": chunk.SequenceOr(-1),
		"reason":   reason,
		"policy":   "buffered",
	})
}

func (p *BufferedPolicy) logBufferOverflow(chunk types.Chunk) {
	if p.logger == nil {
		return
	}
	p.logger.Error("buffer overflow", map[string]any{
		"session":    chunk.Session(),
		"block_type": blockTypeOf(chunk),
		"buffered":   len(p.buffer),
		"policy":     "buffered",
	})
}

func (p *BufferedPolicy) logFlushFailure(chunks int, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("flush failed", map[string]any{
		"chunks": chunks,
		"error":  err.Error(),
		"policy": "buffered",
	})
}

func blockTypeOf(chunk types.Chunk) string {
	if chunk.Block == nil {
		return ""
	}
	return string(chunk.Block.Type())
}

var _ Policy = (*BufferedPolicy)(nil)
