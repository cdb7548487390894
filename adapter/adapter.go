// Package adapter defines the publisher boundary for consolidated transcripts.
//
// Publishers push transcript updates to downstream systems (pub/sub, HTTP
// endpoints, live UIs, storage). The relay owns publisher lifecycle; users
// provide configuration only.
package adapter

import (
	"context"
	"time"

	"github.com/pithecene-io/runnel/consolidate"
	"github.com/pithecene-io/runnel/types"
)

// EventTypeTranscriptUpdated is the event_type of every TranscriptUpdate.
const EventTypeTranscriptUpdated = "transcript_updated"

// TranscriptUpdate is the payload published after each consolidation pass.
// Chunks is the full consolidated transcript, not a delta; collapsed
// tool_result chunks are included and flagged so consumers decide whether
// to hide them.
type TranscriptUpdate struct {
	ContractVersion string            `json:"contract_version"`
	EventType       string            `json:"event_type"` // always "transcript_updated"
	RelayID         string            `json:"relay_id"`
	Source          string            `json:"source"`
	Sequence        int64             `json:"sequence"` // update counter within the relay
	Final           bool              `json:"final"`
	Timestamp       string            `json:"timestamp"` // ISO 8601
	Chunks          []types.Chunk     `json:"chunks"`
	Stats           consolidate.Stats `json:"stats"`
}

// NewTranscriptUpdate builds an update stamped with the current time.
func NewTranscriptUpdate(meta types.RelayMeta, seq int64, result consolidate.Result, final bool) *TranscriptUpdate {
	chunks := result.Consolidated
	if chunks == nil {
		chunks = []types.Chunk{}
	}
	return &TranscriptUpdate{
		ContractVersion: types.ContractVersion,
		EventType:       EventTypeTranscriptUpdated,
		RelayID:         meta.RelayID,
		Source:          meta.Source,
		Sequence:        seq,
		Final:           final,
		Timestamp:       time.Now().UTC().Format(time.RFC3339Nano),
		Chunks:          chunks,
		Stats:           result.Stats,
	}
}

// Sessions returns the distinct session ids in the update, in first
// appearance order.
func (u *TranscriptUpdate) Sessions() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range u.Chunks {
		s := c.Session()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ForSession returns a shallow copy of the update holding only the chunks
// of the given session.
func (u *TranscriptUpdate) ForSession(session string) *TranscriptUpdate {
	filtered := *u
	filtered.Chunks = make([]types.Chunk, 0, len(u.Chunks))
	for _, c := range u.Chunks {
		if c.Session() == session {
			filtered.Chunks = append(filtered.Chunks, c)
		}
	}
	return &filtered
}

// Visible returns the chunks a reader should see: collapsed tool results
// are omitted because their tool_use carries HasResult.
func (u *TranscriptUpdate) Visible() []types.Chunk {
	out := make([]types.Chunk, 0, len(u.Chunks))
	for _, c := range u.Chunks {
		if !c.Collapsed {
			out = append(out, c)
		}
	}
	return out
}

// Publisher delivers transcript updates to a downstream system.
// Implementations must be safe for use by a single relay.
type Publisher interface {
	// Publish sends a transcript update downstream.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, update *TranscriptUpdate) error

	// Close releases publisher resources.
	Close() error
}

// DefaultBackoff is the base delay between publish retries.
const DefaultBackoff = 500 * time.Millisecond

// RetryDelay returns the exponential backoff before retry attempt i
// (i >= 1): base, 2*base, 4*base, ...
func RetryDelay(i int, base time.Duration) time.Duration {
	if i < 1 {
		return 0
	}
	if base <= 0 {
		base = DefaultBackoff
	}
	return time.Duration(1<<uint(i-1)) * base
}
