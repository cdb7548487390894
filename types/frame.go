package types

import "time"

// ContractVersion is the wire contract version stamped on published updates.
// It moves in lockstep with Version.
const ContractVersion = Version

// FrameKind discriminates frames on the wire.
type FrameKind string

const (
	// FrameKindChunk marks a session update chunk. An empty kind means the same.
	FrameKindChunk FrameKind = "session_update"
	// FrameKindFlush asks the relay to flush its buffer.
	FrameKindFlush FrameKind = "flush"
)

// ChunkFrame is the wire form of a Chunk, shared by the msgpack and JSON codecs.
type ChunkFrame struct {
	Kind       FrameKind      `msgpack:"kind,omitempty" json:"kind,omitempty"`
	SessionID  string         `msgpack:"sessionId,omitempty" json:"sessionId,omitempty"`
	Sequence   *int64         `msgpack:"sequence,omitempty" json:"sequence,omitempty"`
	Block      map[string]any `msgpack:"block,omitempty" json:"block,omitempty"`
	CreatedAt  string         `msgpack:"created_at,omitempty" json:"created_at,omitempty"`
	MergedFrom []int64        `msgpack:"_mergedFrom,omitempty" json:"_mergedFrom,omitempty"`
	HasResult  bool           `msgpack:"_hasResult,omitempty" json:"_hasResult,omitempty"`
	Collapsed  bool           `msgpack:"_collapsed,omitempty" json:"_collapsed,omitempty"`
}

// NewChunkFrame converts a chunk into its wire form.
func NewChunkFrame(c Chunk) *ChunkFrame {
	f := &ChunkFrame{
		Kind:       FrameKindChunk,
		SessionID:  c.SessionID,
		Block:      EncodeBlock(c.Block),
		MergedFrom: c.MergedFrom,
		HasResult:  c.HasResult,
		Collapsed:  c.Collapsed,
	}
	if c.Sequence != nil {
		f.Sequence = Seq(*c.Sequence)
	}
	if !c.CreatedAt.IsZero() {
		f.CreatedAt = c.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return f
}

// Chunk converts the frame into a Chunk.
// An unparseable created_at yields a zero CreatedAt.
func (f *ChunkFrame) Chunk() Chunk {
	c := Chunk{
		SessionID:  f.SessionID,
		Block:      DecodeBlock(f.Block),
		MergedFrom: f.MergedFrom,
		HasResult:  f.HasResult,
		Collapsed:  f.Collapsed,
	}
	if f.Sequence != nil {
		c.Sequence = Seq(*f.Sequence)
	}
	if f.CreatedAt != "" {
		if ts, err := time.Parse(time.RFC3339Nano, f.CreatedAt); err == nil {
			c.CreatedAt = ts
		}
	}
	return c
}
