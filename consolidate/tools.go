package consolidate

import (
	"slices"

	"github.com/pithecene-io/runnel/types"
)

// CollapseToolPairs marks each tool_use that has a matching tool_result with
// HasResult, and each matching tool_result with Collapsed. Matching is by exact
// non-empty id. Nothing is removed or reordered.
//
// Annotations are recomputed from the chunks present, so a stale annotation
// on input does not survive. Several results for one id all collapse against
// the same tool_use. Returns the annotated chunks and the number collapsed.
func CollapseToolPairs(chunks []types.Chunk) ([]types.Chunk, int) {
	out := slices.Clone(chunks)
	uses := make(map[string]int)

	for i := range out {
		switch b := out[i].Block.(type) {
		case types.ToolUseBlock:
			out[i].HasResult = false
			if b.ID != "" {
				uses[b.ID] = i
			}
		case types.ToolResultBlock:
			out[i].Collapsed = false
		}
	}

	collapsed := 0
	for i := range out {
		b, ok := out[i].Block.(types.ToolResultBlock)
		if !ok || b.ToolUseID == "" {
			continue
		}
		pos, ok := uses[b.ToolUseID]
		if !ok {
			continue
		}
		out[pos].HasResult = true
		out[i].Collapsed = true
		collapsed++
	}

	return out, collapsed
}

// DuplicateResults returns the tool_use ids referenced by more than one
// tool_result in chunks, in order of first repeat.
func DuplicateResults(chunks []types.Chunk) []string {
	counts := make(map[string]int)
	var dups []string
	for _, c := range chunks {
		b, ok := c.Block.(types.ToolResultBlock)
		if !ok || b.ToolUseID == "" {
			continue
		}
		counts[b.ToolUseID]++
		if counts[b.ToolUseID] == 2 {
			dups = append(dups, b.ToolUseID)
		}
	}
	return dups
}

// SupersedeSystem keeps only the last system chunk and removes earlier ones.
// Returns the remaining chunks and the number removed.
func SupersedeSystem(chunks []types.Chunk) ([]types.Chunk, int) {
	last, count := -1, 0
	for i, c := range chunks {
		if _, ok := c.Block.(types.SystemBlock); ok {
			last = i
			count++
		}
	}
	if count <= 1 {
		return slices.Clone(chunks), 0
	}

	out := make([]types.Chunk, 0, len(chunks)-count+1)
	for i, c := range chunks {
		if _, ok := c.Block.(types.SystemBlock); ok && i != last {
			continue
		}
		out = append(out, c)
	}
	return out, count - 1
}
