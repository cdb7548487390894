package consolidate

import (
	"slices"
	"strings"

	"github.com/pithecene-io/runnel/types"
)

// MergeText folds runs of adjacent text chunks into one chunk, joining their
// text with "\n". A fragment is folded only while the merged text stays within
// maxBytes; otherwise the pending chunk is emitted and a new one starts.
// A single fragment longer than maxBytes is emitted whole.
//
// The merged chunk keeps the first fragment's sequence and block extras, takes
// the latest CreatedAt, and records every folded sequence in MergedFrom.
// Returns the merged chunks and the number of fragments folded.
func MergeText(chunks []types.Chunk, maxBytes int) ([]types.Chunk, int) {
	out := make([]types.Chunk, 0, len(chunks))
	folded := 0

	var (
		pending    types.Chunk
		pendingBuf strings.Builder
		extra      map[string]any
		hasPending bool
	)

	flush := func() {
		if !hasPending {
			return
		}
		pending.Block = types.TextBlock{Text: pendingBuf.String(), Extra: extra}
		out = append(out, pending)
		hasPending = false
		pendingBuf.Reset()
		extra = nil
	}

	for _, c := range chunks {
		tb, ok := c.Block.(types.TextBlock)
		if !ok {
			flush()
			out = append(out, c)
			continue
		}

		if hasPending && pendingBuf.Len()+1+len(tb.Text) <= maxBytes {
			pendingBuf.WriteByte('\n')
			pendingBuf.WriteString(tb.Text)
			if !c.CreatedAt.IsZero() {
				pending.CreatedAt = c.CreatedAt
			}
			pending.MergedFrom = append(pending.MergedFrom, mergeRecord(c)...)
			folded++
			continue
		}

		flush()
		pending = c
		pending.MergedFrom = slices.Clone(mergeRecord(c))
		pendingBuf.WriteString(tb.Text)
		extra = tb.Extra
		hasPending = true
	}
	flush()

	return out, folded
}

// mergeRecord returns the sequences a text chunk contributes to a merge:
// its existing record if it was merged before, else its own sequence.
func mergeRecord(c types.Chunk) []int64 {
	if len(c.MergedFrom) > 0 {
		return c.MergedFrom
	}
	if c.Sequence != nil {
		return []int64{*c.Sequence}
	}
	return nil
}
