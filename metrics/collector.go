// Package metrics provides per-relay metrics collection.
//
// The Collector accumulates counters during a single relay. It is a leaf
// package with no internal dependencies. Policy counters are absorbed from
// policy.Stats when the relay finishes rather than recorded live, avoiding
// double-counting.
package metrics

import (
	"maps"
	"sync"
)

// Snapshot is an immutable point-in-time view of all relay metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Relay lifecycle
	RelaysStarted   int64 `json:"relays_started"`
	RelaysCompleted int64 `json:"relays_completed"`
	RelaysFailed    int64 `json:"relays_failed"`

	// Transport
	ChunksReceived int64 `json:"chunks_received"`
	DecodeErrors   int64 `json:"decode_errors"`
	StreamErrors   int64 `json:"stream_errors"`

	// Policy (absorbed from policy.Stats at relay completion)
	ChunksBuffered   int64            `json:"chunks_buffered"`
	ChunksFlushed    int64            `json:"chunks_flushed"`
	ChunksDropped    int64            `json:"chunks_dropped"`
	DroppedBySession map[string]int64 `json:"dropped_by_session,omitempty"`
	FlushTriggers    map[string]int64 `json:"flush_triggers,omitempty"`

	// Consolidation
	Consolidations   int64 `json:"consolidations"`
	Deduplicated     int64 `json:"deduplicated"`
	TextMerged       int64 `json:"text_merged"`
	ToolsCollapsed   int64 `json:"tools_collapsed"`
	SystemSuperseded int64 `json:"system_superseded"`

	// Publish
	PublishSuccess int64 `json:"publish_success"`
	PublishFailure int64 `json:"publish_failure"`

	// Storage
	StoreWriteSuccess int64 `json:"store_write_success"`
	StoreWriteFailure int64 `json:"store_write_failure"`

	// Dimensions (informational, set at construction)
	Policy         string `json:"policy"`
	Source         string `json:"source"`
	StorageBackend string `json:"storage_backend"`
	RelayID        string `json:"relay_id"`
}

// Collector accumulates metrics during a single relay.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	relaysStarted   int64
	relaysCompleted int64
	relaysFailed    int64

	chunksReceived int64
	decodeErrors   int64
	streamErrors   int64

	// Set once via AbsorbPolicyStats
	chunksBuffered   int64
	chunksFlushed    int64
	chunksDropped    int64
	droppedBySession map[string]int64
	flushTriggers    map[string]int64

	consolidations   int64
	deduplicated     int64
	textMerged       int64
	toolsCollapsed   int64
	systemSuperseded int64

	publishSuccess int64
	publishFailure int64

	storeWriteSuccess int64
	storeWriteFailure int64

	policy         string
	source         string
	storageBackend string
	relayID        string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(policy, source, storageBackend, relayID string) *Collector {
	return &Collector{
		droppedBySession: make(map[string]int64),
		policy:           policy,
		source:           source,
		storageBackend:   storageBackend,
		relayID:          relayID,
	}
}

// inc increments a counter under the lock. Nil-receiver safe.
func (c *Collector) inc(field *int64) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// --- Relay lifecycle ---

// IncRelayStarted records a relay start.
func (c *Collector) IncRelayStarted() {
	if c == nil {
		return
	}
	c.inc(&c.relaysStarted)
}

// IncRelayCompleted records a relay that reached end of stream.
func (c *Collector) IncRelayCompleted() {
	if c == nil {
		return
	}
	c.inc(&c.relaysCompleted)
}

// IncRelayFailed records a relay terminated by a stream or policy error.
func (c *Collector) IncRelayFailed() {
	if c == nil {
		return
	}
	c.inc(&c.relaysFailed)
}

// --- Transport ---

// IncChunksReceived records one chunk frame handed to the policy.
func (c *Collector) IncChunksReceived() {
	if c == nil {
		return
	}
	c.inc(&c.chunksReceived)
}

// IncDecodeErrors records a frame that could not be decoded and was skipped.
func (c *Collector) IncDecodeErrors() {
	if c == nil {
		return
	}
	c.inc(&c.decodeErrors)
}

// IncStreamErrors records a fatal transport error.
func (c *Collector) IncStreamErrors() {
	if c == nil {
		return
	}
	c.inc(&c.streamErrors)
}

// --- Consolidation ---

// AbsorbConsolidateStats records one consolidation pass.
//
// The values describe the whole transcript so far, so each call replaces the
// previous ones.
func (c *Collector) AbsorbConsolidateStats(deduplicated, textMerged, toolsCollapsed, systemSuperseded int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.consolidations++
	c.deduplicated = int64(deduplicated)
	c.textMerged = int64(textMerged)
	c.toolsCollapsed = int64(toolsCollapsed)
	c.systemSuperseded = int64(systemSuperseded)
	c.mu.Unlock()
}

// --- Publish ---
// Publish counters are per-update, per-publisher.

// IncPublishSuccess records a successful publish.
func (c *Collector) IncPublishSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.publishSuccess)
}

// IncPublishFailure records a failed publish.
func (c *Collector) IncPublishFailure() {
	if c == nil {
		return
	}
	c.inc(&c.publishFailure)
}

// --- Storage ---
// Store counters are per-call, not per-record.

// IncStoreWriteSuccess records a successful dataset write.
func (c *Collector) IncStoreWriteSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.storeWriteSuccess)
}

// IncStoreWriteFailure records a failed dataset write.
func (c *Collector) IncStoreWriteFailure() {
	if c == nil {
		return
	}
	c.inc(&c.storeWriteFailure)
}

// --- Policy (absorbed from policy.Stats) ---

// AbsorbPolicyStats copies policy counters into the collector.
// Called once after the relay finishes with the final policy stats snapshot.
// Maps are copied; a nil flushTriggers leaves the snapshot field nil.
func (c *Collector) AbsorbPolicyStats(buffered, flushed, dropped int64, droppedBySession, flushTriggers map[string]int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.chunksBuffered = buffered
	c.chunksFlushed = flushed
	c.chunksDropped = dropped
	c.droppedBySession = make(map[string]int64, len(droppedBySession))
	maps.Copy(c.droppedBySession, droppedBySession)
	c.flushTriggers = nil
	if flushTriggers != nil {
		c.flushTriggers = maps.Clone(flushTriggers)
	}
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := make(map[string]int64, len(c.droppedBySession))
	maps.Copy(dropped, c.droppedBySession)

	var triggers map[string]int64
	if c.flushTriggers != nil {
		triggers = maps.Clone(c.flushTriggers)
	}

	return Snapshot{
		RelaysStarted:   c.relaysStarted,
		RelaysCompleted: c.relaysCompleted,
		RelaysFailed:    c.relaysFailed,

		ChunksReceived: c.chunksReceived,
		DecodeErrors:   c.decodeErrors,
		StreamErrors:   c.streamErrors,

		ChunksBuffered:   c.chunksBuffered,
		ChunksFlushed:    c.chunksFlushed,
		ChunksDropped:    c.chunksDropped,
		DroppedBySession: dropped,
		FlushTriggers:    triggers,

		Consolidations:   c.consolidations,
		Deduplicated:     c.deduplicated,
		TextMerged:       c.textMerged,
		ToolsCollapsed:   c.toolsCollapsed,
		SystemSuperseded: c.systemSuperseded,

		PublishSuccess: c.publishSuccess,
		PublishFailure: c.publishFailure,

		StoreWriteSuccess: c.storeWriteSuccess,
		StoreWriteFailure: c.storeWriteFailure,

		Policy:         c.policy,
		Source:         c.source,
		StorageBackend: c.storageBackend,
		RelayID:        c.relayID,
	}
}
