package policy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pithecene-io/runnel/log"
	"github.com/pithecene-io/runnel/types"
)

// StreamingConfig configures a StreamingPolicy.
type StreamingConfig struct {
	// FlushCount triggers a flush after N chunks accumulate.
	// Zero means count-based flush is disabled.
	FlushCount int

	// FlushInterval triggers a flush every interval.
	// Zero means interval-based flush is disabled.
	FlushInterval time.Duration

	// Logger is an optional logger for policy observability.
	Logger *log.Logger
}

// FlushTrigger identifies which trigger caused a flush.
type FlushTrigger string

const (
	// FlushTriggerCount indicates a count-threshold flush.
	FlushTriggerCount FlushTrigger = "count"
	// FlushTriggerInterval indicates an interval-based flush.
	FlushTriggerInterval FlushTrigger = "interval"
	// FlushTriggerTermination indicates an explicit or end-of-relay flush.
	FlushTriggerTermination FlushTrigger = "termination"
)

// ErrStreamingInvalidConfig is returned when StreamingConfig is invalid.
var ErrStreamingInvalidConfig = errors.New("invalid streaming config: at least one of FlushCount or FlushInterval must be set")

// StreamingPolicy implements continuous delivery with batched writes.
//
//   - No drops: every chunk reaches the sink (same guarantee as strict)
//   - Periodic flush: buffer flushed when any trigger fires
//   - On flush failure, the batch is restored and retried on next trigger
//
// Thread safety:
//   - mu guards buffer state (append, size tracking, stats)
//   - flushMu serializes flush operations to prevent concurrent writes
//   - IngestChunk holds mu briefly to append
//   - triggerFlush holds flushMu for the duration of the write,
//     and mu briefly to swap/restore buffers
type StreamingPolicy struct {
	sink   Sink
	config StreamingConfig
	logger *log.Logger

	mu          sync.Mutex // guards buffer state and stats
	buffer      []types.Chunk
	bufferBytes int64
	stats       *statsRecorder

	// flushMu serializes flush operations.
	// Prevents concurrent flushes from interval goroutine and count trigger.
	flushMu sync.Mutex

	// Per-trigger flush counts. Guarded by mu.
	flushByCount       int64
	flushByInterval    int64
	flushByTermination int64

	// stopCh signals the interval goroutine to stop.
	stopCh chan struct{}
	// stopped indicates Close has been called. Guarded by mu.
	stopped bool
}

// NewStreamingPolicy creates a new streaming policy.
// Returns error if config is invalid.
func NewStreamingPolicy(sink Sink, config StreamingConfig) (*StreamingPolicy, error) {
	if config.FlushCount <= 0 && config.FlushInterval <= 0 {
		return nil, ErrStreamingInvalidConfig
	}

	p := &StreamingPolicy{
		sink:   sink,
		config: config,
		logger: config.Logger,
		buffer: make([]types.Chunk, 0, 128),
		stats:  newStatsRecorder(),
		stopCh: make(chan struct{}),
	}

	if config.FlushInterval > 0 {
		go p.intervalLoop()
	}

	return p, nil
}

// IngestChunk adds the chunk to the buffer.
// Never drops chunks. If the count threshold is reached, triggers a flush.
func (p *StreamingPolicy) IngestChunk(ctx context.Context, chunk types.Chunk) error {
	p.mu.Lock()

	p.stats.incTotalChunksLocked()
	p.buffer = append(p.buffer, chunk)
	p.bufferBytes += estimateChunkSize(chunk)
	p.stats.setBufferSizeLocked(p.bufferBytes)

	shouldFlush := p.config.FlushCount > 0 && len(p.buffer) >= p.config.FlushCount
	p.mu.Unlock()

	if shouldFlush {
		return p.triggerFlush(ctx, FlushTriggerCount)
	}

	return nil
}

// Flush flushes all buffered data (termination trigger).
// Called on flush frames and relay termination.
func (p *StreamingPolicy) Flush(ctx context.Context) error {
	return p.triggerFlush(ctx, FlushTriggerTermination)
}

// triggerFlush performs a flush with the given trigger reason.
// Serialized by flushMu to prevent concurrent writes.
//
// Strategy: swap buffers under mu, write outside mu, restore on failure.
// IngestChunk keeps appending to the fresh buffer during a write.
func (p *StreamingPolicy) triggerFlush(ctx context.Context, trigger FlushTrigger) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()

	switch trigger {
	case FlushTriggerCount:
		p.flushByCount++
	case FlushTriggerInterval:
		p.flushByInterval++
	case FlushTriggerTermination:
		p.flushByTermination++
	}

	p.stats.incFlushLocked()

	batch := p.buffer
	if len(batch) == 0 {
		p.mu.Unlock()
		return nil
	}

	p.buffer = make([]types.Chunk, 0, 128)
	p.recalculateBufferBytes()

	p.mu.Unlock()

	if err := p.sink.WriteBatch(ctx, batch); err != nil {
		// Restore: prepend old data before any new data
		p.mu.Lock()
		p.stats.incErrorsLocked()
		p.buffer = append(batch, p.buffer...)
		p.recalculateBufferBytes()
		p.mu.Unlock()
		p.logFlushFailure(trigger, len(batch), err)
		return err
	}

	p.mu.Lock()
	p.stats.incChunksFlushedLocked(int64(len(batch)))
	p.mu.Unlock()

	p.logFlush(trigger, len(batch))

	return nil
}

// Close stops the interval goroutine and closes the sink.
func (p *StreamingPolicy) Close() error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.stopCh)
	}
	p.mu.Unlock()

	// Best-effort flush on close
	_ = p.Flush(context.Background())
	return p.sink.Close()
}

// Stats returns policy statistics.
// Returns an atomic snapshot: the buffer mutex is held while taking the
// snapshot, ensuring all counters and buffer size are consistent.
func (p *StreamingPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stats.snapshotLocked(p.bufferBytes)
}

// FlushTriggerStats returns per-trigger flush counts for observability.
func (p *StreamingPolicy) FlushTriggerStats() map[FlushTrigger]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return map[FlushTrigger]int64{
		FlushTriggerCount:       p.flushByCount,
		FlushTriggerInterval:    p.flushByInterval,
		FlushTriggerTermination: p.flushByTermination,
	}
}

// intervalLoop runs in a goroutine and triggers flushes on the configured interval.
func (p *StreamingPolicy) intervalLoop() {
	ticker := time.NewTicker(p.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.mu.Lock()
			hasData := len(p.buffer) > 0
			p.mu.Unlock()

			if hasData {
				// Interval flush errors are logged; the batch stays buffered.
				_ = p.triggerFlush(context.Background(), FlushTriggerInterval)
			}
		case <-p.stopCh:
			return
		}
	}
}

// recalculateBufferBytes recalculates bufferBytes from the buffer. Caller must hold mu.
func (p *StreamingPolicy) recalculateBufferBytes() {
	var total int64
	for _, c := range p.buffer {
		total += estimateChunkSize(c)
	}
	p.bufferBytes = total
	p.stats.setBufferSizeLocked(p.bufferBytes)
}

// --- Logging helpers ---

func (p *StreamingPolicy) logFlush(trigger FlushTrigger, chunks int) {
	if p.logger == nil {
		return
	}
	p.logger.Debug("streaming flush", map[string]any{
		"trigger": string(trigger),
		"chunks":  chunks,
		"policy":  "streaming",
	})
}

func (p *StreamingPolicy) logFlushFailure(trigger FlushTrigger, chunks int, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("streaming flush failed", map[string]any{
		"trigger": string(trigger),
		"chunks":  chunks,
		"error":   err.Error(),
		"policy":  "streaming",
	})
}

// Verify StreamingPolicy implements Policy.
var _ Policy = (*StreamingPolicy)(nil)
