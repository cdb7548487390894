package consolidate

import "github.com/pithecene-io/runnel/types"

// Stats counts what each stage did to one batch.
type Stats struct {
	// Original is the input chunk count.
	Original int `json:"original"`
	// Deduplicated is the number of chunks dropped as duplicates.
	Deduplicated int `json:"deduplicated"`
	// TextMerged is the number of text fragments folded into a pending merge.
	TextMerged int `json:"textMerged"`
	// ToolsCollapsed is the number of tool_result chunks paired with a tool_use.
	ToolsCollapsed int `json:"toolsCollapsed"`
	// SystemSuperseded is the number of stale system chunks removed.
	SystemSuperseded int `json:"systemSuperseded"`
}

// Result is the output of Consolidate.
type Result struct {
	Consolidated []types.Chunk `json:"consolidated"`
	Stats        Stats         `json:"stats"`
}
