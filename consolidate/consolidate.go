// Package consolidate turns an unordered, possibly duplicated batch of session
// update chunks into a canonical, render-ready sequence.
//
// The pipeline has five stages, applied in order:
//
//  1. OrderAndDedup sorts by sequence and drops repeated (session, sequence) keys.
//  2. PartitionSessions groups chunks by session.
//  3. MergeText folds adjacent text fragments per session.
//  4. CollapseToolPairs annotates tool_use/tool_result pairs per session.
//  5. SupersedeSystem keeps the latest system chunk per session.
//
// The per-session outputs are then concatenated and re-sorted globally.
//
// Consolidate is a pure function: it holds no state, performs no I/O and never
// mutates the chunks it is given. It is safe for concurrent use.
package consolidate

import (
	"cmp"
	"slices"

	"github.com/pithecene-io/runnel/types"
)

// Consolidate runs the full pipeline over chunks.
func Consolidate(chunks []types.Chunk, cfg Config) Result {
	stats := Stats{Original: len(chunks)}

	ordered, dropped := OrderAndDedup(chunks, cfg)
	stats.Deduplicated = dropped

	out := make([]types.Chunk, 0, len(ordered))
	for _, part := range PartitionSessions(ordered) {
		merged, n := MergeText(part.Chunks, cfg.mergeCap())
		stats.TextMerged += n

		collapsed, n := CollapseToolPairs(merged)
		stats.ToolsCollapsed += n

		current, n := SupersedeSystem(collapsed)
		stats.SystemSuperseded += n

		out = append(out, current...)
	}

	sortChunks(out, cfg.Unsequenced)

	return Result{Consolidated: out, Stats: stats}
}

// sortKey orders sequenced chunks by sequence. Unsequenced chunks go either
// after everything (rank 1) or alongside sequence 0.
type sortKey struct {
	rank int
	seq  int64
}

func keyOf(c types.Chunk, order UnsequencedOrder) sortKey {
	if c.Sequence != nil {
		return sortKey{seq: *c.Sequence}
	}
	if order == UnsequencedAsZero {
		return sortKey{}
	}
	return sortKey{rank: 1}
}

func compareKeys(a, b sortKey) int {
	if c := cmp.Compare(a.rank, b.rank); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}

// sortChunks stable-sorts chunks in place by sequence key.
func sortChunks(chunks []types.Chunk, order UnsequencedOrder) {
	slices.SortStableFunc(chunks, func(a, b types.Chunk) int {
		return compareKeys(keyOf(a, order), keyOf(b, order))
	})
}
