package types

import (
	"encoding/json"
	"slices"
	"time"
)

// DefaultSession is the bucket for chunks with an empty session id.
const DefaultSession = "default"

// Chunk is one unit of agent output within a session.
//
// MergedFrom, HasResult and Collapsed are annotations added by consolidation;
// raw transport input never carries them.
type Chunk struct {
	// SessionID groups chunks. Empty means DefaultSession.
	SessionID string
	// Sequence is the producer-assigned position. Nil when absent.
	Sequence *int64
	// Block is the payload. Nil for a malformed chunk with no block.
	Block Block
	// CreatedAt is the producer timestamp. Zero when absent.
	CreatedAt time.Time

	// MergedFrom lists the sequences of text fragments folded into this chunk.
	MergedFrom []int64
	// HasResult is set on a tool_use with a matching tool_result.
	HasResult bool
	// Collapsed is set on a tool_result paired with its tool_use.
	Collapsed bool
}

// Seq returns a pointer to n, for building chunks with a sequence.
func Seq(n int64) *int64 {
	return &n
}

// Session returns the normalized session id.
func (c Chunk) Session() string {
	if c.SessionID == "" {
		return DefaultSession
	}
	return c.SessionID
}

// HasSequence reports whether the chunk carries a sequence.
func (c Chunk) HasSequence() bool {
	return c.Sequence != nil
}

// SequenceOr returns the sequence, or def when absent.
func (c Chunk) SequenceOr(def int64) int64 {
	if c.Sequence == nil {
		return def
	}
	return *c.Sequence
}

// Clone returns a copy that shares no mutable slice with c.
// Block values are treated as immutable and are shared.
func (c Chunk) Clone() Chunk {
	out := c
	if c.Sequence != nil {
		out.Sequence = Seq(*c.Sequence)
	}
	out.MergedFrom = slices.Clone(c.MergedFrom)
	return out
}

// TextOf returns the text of a well-formed text chunk.
func (c Chunk) TextOf() (string, bool) {
	tb, ok := c.Block.(TextBlock)
	if !ok {
		return "", false
	}
	return tb.Text, true
}

// MarshalJSON encodes the chunk in its wire form.
func (c Chunk) MarshalJSON() ([]byte, error) {
	return json.Marshal(NewChunkFrame(c))
}

// UnmarshalJSON decodes the chunk from its wire form.
func (c *Chunk) UnmarshalJSON(data []byte) error {
	var f ChunkFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*c = f.Chunk()
	return nil
}
