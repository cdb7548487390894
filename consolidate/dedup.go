package consolidate

import (
	"slices"

	"github.com/pithecene-io/runnel/types"
)

// dedupKey identifies a chunk within a session.
type dedupKey struct {
	session string
	seq     int64
}

// OrderAndDedup returns a stable-sorted copy of chunks with duplicate
// (session, sequence) keys removed, and the number removed.
//
// The first chunk for a key after sorting wins. Chunks without a sequence are
// never dropped. Sequences listed in a chunk's MergedFrom record count as seen,
// so replayed fragments of an already merged chunk are dropped too.
// Batches of size one or less pass through.
func OrderAndDedup(chunks []types.Chunk, cfg Config) ([]types.Chunk, int) {
	if len(chunks) <= 1 {
		return slices.Clone(chunks), 0
	}

	sorted := slices.Clone(chunks)
	sortChunks(sorted, cfg.Unsequenced)

	seen := make(map[dedupKey]struct{}, len(sorted))
	out := sorted[:0]
	dropped := 0

	for _, c := range sorted {
		if c.Sequence == nil {
			out = append(out, c)
			continue
		}

		session := c.Session()
		key := dedupKey{session: session, seq: *c.Sequence}
		if _, dup := seen[key]; dup {
			dropped++
			continue
		}

		seen[key] = struct{}{}
		for _, seq := range c.MergedFrom {
			seen[dedupKey{session: session, seq: seq}] = struct{}{}
		}
		out = append(out, c)
	}

	return out, dropped
}

// Partition is the chunks of one session, in upstream order.
type Partition struct {
	Session string
	Chunks  []types.Chunk
}

// PartitionSessions groups chunks by normalized session id. Partitions are
// returned in order of first appearance. Chunks are not modified.
func PartitionSessions(chunks []types.Chunk) []Partition {
	var parts []Partition
	index := make(map[string]int)

	for _, c := range chunks {
		session := c.Session()
		i, ok := index[session]
		if !ok {
			i = len(parts)
			index[session] = i
			parts = append(parts, Partition{Session: session})
		}
		parts[i].Chunks = append(parts[i].Chunks, c)
	}

	return parts
}
