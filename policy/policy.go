// Package policy defines how the relay buffers chunks before they reach the
// transcript sink.
package policy

import (
	"context"
	"maps"
	"sync"

	"github.com/pithecene-io/runnel/types"
)

// Policy defines the buffering policy interface.
// Policies control buffering, dropping, and flush behavior.
//
//   - May drop: system chunks already superseded by a later system chunk
//     of the same session
//   - Must NOT drop: text, tool_use, tool_result, opaque chunks
//   - Policy must not alter chunks
//   - Policy failure terminates the relay
type Policy interface {
	// IngestChunk handles one chunk.
	// Returns error to terminate the relay.
	IngestChunk(ctx context.Context, chunk types.Chunk) error

	// Flush writes any buffered chunks to the sink.
	// Called on flush frames and relay termination.
	Flush(ctx context.Context) error

	// Close flushes remaining chunks and releases policy resources.
	Close() error

	// Stats returns an atomic snapshot of policy metrics.
	Stats() Stats
}

// Stats represents policy observability metrics.
type Stats struct {
	// TotalChunks is the total number of chunks received.
	TotalChunks int64
	// ChunksFlushed is the number of chunks written to the sink.
	ChunksFlushed int64
	// ChunksDropped is the total number of chunks dropped.
	ChunksDropped int64
	// DroppedBySession maps session ids to drop counts.
	DroppedBySession map[string]int64
	// BufferSize is the current buffer size in bytes (if buffered).
	BufferSize int64
	// FlushCount is the number of flush operations.
	FlushCount int64
	// Errors is the count of errors encountered.
	Errors int64
}

// IsDroppable reports whether a chunk may ever be dropped by a policy.
// Only system chunks qualify, and only once superseded.
func IsDroppable(chunk types.Chunk) bool {
	_, ok := chunk.Block.(types.SystemBlock)
	return ok
}

// estimateChunkSize returns an estimated size in bytes for a chunk.
// This is a rough estimate for buffer management.
func estimateChunkSize(c types.Chunk) int64 {
	size := int64(64 + len(c.SessionID))
	switch b := c.Block.(type) {
	case types.TextBlock:
		size += int64(len(b.Text))
	case types.SystemBlock:
		size += int64(len(b.Text) + 50*len(b.Extra))
	case types.ToolUseBlock:
		size += int64(len(b.ID) + len(b.Name) + 50*len(b.Extra) + 200)
	case types.ToolResultBlock:
		size += int64(len(b.ToolUseID) + 50*len(b.Extra) + 200)
	case types.OpaqueBlock:
		size += int64(50 * len(b.Fields))
	}
	return size
}

// statsRecorder is an internal helper for thread-safe stats management.
// Policies call explicit methods to record mutations; recorder does not
// infer or automate any policy decisions.
//
// Lock discipline:
//   - StrictPolicy uses the locking methods (incTotalChunks, snapshot, etc.)
//   - BufferedPolicy and StreamingPolicy use the Locked methods only while
//     holding their own mu, so buffer state and counters stay consistent.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

// newStatsRecorder creates a new recorder with initialized DroppedBySession map.
func newStatsRecorder() *statsRecorder {
	return &statsRecorder{
		stats: Stats{
			DroppedBySession: make(map[string]int64),
		},
	}
}

func (r *statsRecorder) incTotalChunks() {
	r.mu.Lock()
	r.stats.TotalChunks++
	r.mu.Unlock()
}

func (r *statsRecorder) incChunksFlushed(n int64) {
	r.mu.Lock()
	r.stats.ChunksFlushed += n
	r.mu.Unlock()
}

func (r *statsRecorder) incErrors() {
	r.mu.Lock()
	r.stats.Errors++
	r.mu.Unlock()
}

func (r *statsRecorder) incFlush() {
	r.mu.Lock()
	r.stats.FlushCount++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(r.stats.BufferSize)
}

// --- Locked methods ---
// Caller must hold the owning policy's mu.

func (r *statsRecorder) incTotalChunksLocked() {
	r.stats.TotalChunks++
}

func (r *statsRecorder) incChunksFlushedLocked(n int64) {
	r.stats.ChunksFlushed += n
}

func (r *statsRecorder) incChunksDroppedLocked(session string) {
	r.stats.ChunksDropped++
	r.stats.DroppedBySession[session]++
}

func (r *statsRecorder) incErrorsLocked() {
	r.stats.Errors++
}

func (r *statsRecorder) incFlushLocked() {
	r.stats.FlushCount++
}

func (r *statsRecorder) setBufferSizeLocked(bytes int64) {
	r.stats.BufferSize = bytes
}

// snapshotLocked returns an atomic snapshot of stats with the given bufferSize.
func (r *statsRecorder) snapshotLocked(bufferSize int64) Stats {
	s := r.stats
	s.BufferSize = bufferSize
	s.DroppedBySession = maps.Clone(r.stats.DroppedBySession)
	if s.DroppedBySession == nil {
		s.DroppedBySession = make(map[string]int64)
	}
	return s
}
