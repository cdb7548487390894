package reader

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pithecene-io/runnel/consolidate"
	"github.com/pithecene-io/runnel/metrics"
	"github.com/pithecene-io/runnel/types"
)

// TranscriptResponse is the payload of inspect transcript and consolidate.
type TranscriptResponse struct {
	RelayID   string            `json:"relay_id,omitempty"`
	Source    string            `json:"source,omitempty"`
	UpdateSeq int64             `json:"update_seq"`
	Final     bool              `json:"final"`
	Ts        string            `json:"ts,omitempty"`
	Sessions  []string          `json:"sessions"`
	Chunks    []types.Chunk     `json:"chunks"`
	Stats     consolidate.Stats `json:"stats"`
}

// StatsResponse is the payload of inspect stats.
type StatsResponse struct {
	RelayID     string            `json:"relay_id"`
	Source      string            `json:"source"`
	CompletedAt string            `json:"completed_at"`
	Engine      consolidate.Stats `json:"engine"`
	Metrics     metrics.Snapshot  `json:"metrics"`
}

// TranscriptLine is one rendered row of a transcript, used by table output
// and the TUI.
type TranscriptLine struct {
	Seq     string `json:"seq"`
	Session string `json:"session"`
	Type    string `json:"type"`
	Summary string `json:"summary"`
	Flags   string `json:"flags"`
}

// summaryWidth bounds the Summary column in bytes before the ellipsis.
const summaryWidth = 72

// Lines renders chunks as transcript rows. When hideCollapsed is set,
// tool_result chunks folded into their tool_use are omitted.
func Lines(chunks []types.Chunk, hideCollapsed bool) []TranscriptLine {
	lines := make([]TranscriptLine, 0, len(chunks))
	for _, c := range chunks {
		if hideCollapsed && c.Collapsed {
			continue
		}
		lines = append(lines, LineOf(c))
	}
	return lines
}

// LineOf renders a single chunk.
func LineOf(c types.Chunk) TranscriptLine {
	seq := "-"
	if c.Sequence != nil {
		seq = fmt.Sprintf("%d", *c.Sequence)
	}
	typ := "?"
	if c.Block != nil && c.Block.Type() != "" {
		typ = string(c.Block.Type())
	}
	return TranscriptLine{
		Seq:     seq,
		Session: c.Session(),
		Type:    typ,
		Summary: Truncate(Summarize(c), summaryWidth),
		Flags:   flagsOf(c),
	}
}

// Summarize returns a one-line description of a chunk's block.
func Summarize(c types.Chunk) string {
	switch b := c.Block.(type) {
	case types.TextBlock:
		return oneLine(b.Text)
	case types.ToolUseBlock:
		if b.Name != "" {
			return fmt.Sprintf("%s (%s)", b.Name, b.ID)
		}
		return b.ID
	case types.ToolResultBlock:
		return fmt.Sprintf("result for %s", b.ToolUseID)
	case types.SystemBlock:
		return oneLine(b.Text)
	case types.OpaqueBlock:
		return fmt.Sprintf("<%s>", b.Kind)
	default:
		return ""
	}
}

func flagsOf(c types.Chunk) string {
	var flags []string
	if n := len(c.MergedFrom); n > 0 {
		flags = append(flags, fmt.Sprintf("merged(%d)", n))
	}
	if c.HasResult {
		flags = append(flags, "has_result")
	}
	if c.Collapsed {
		flags = append(flags, "collapsed")
	}
	return strings.Join(flags, ",")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate shortens s to at most width bytes plus an ellipsis, never
// splitting a rune.
func Truncate(s string, width int) string {
	if width <= 0 || len(s) <= width {
		return s
	}
	cut := width
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
