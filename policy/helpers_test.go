package policy_test

import (
	"context"
	"errors"
	"sync"

	"github.com/pithecene-io/runnel/policy"
	"github.com/pithecene-io/runnel/types"
)

func textChunk(session string, seq int64, text string) types.Chunk {
	return types.Chunk{SessionID: session, Sequence: types.Seq(seq), Block: types.TextBlock{Text: text}}
}

func systemChunk(session string, seq int64, text string) types.Chunk {
	return types.Chunk{SessionID: session, Sequence: types.Seq(seq), Block: types.SystemBlock{Text: text}}
}

func toolUseChunk(session string, seq int64, id string) types.Chunk {
	return types.Chunk{SessionID: session, Sequence: types.Seq(seq), Block: types.ToolUseBlock{ID: id, Name: "bash"}}
}

func toolResultChunk(session string, seq int64, id string) types.Chunk {
	return types.Chunk{SessionID: session, Sequence: types.Seq(seq), Block: types.ToolResultBlock{ToolUseID: id, Content: "ok"}}
}

func sequences(chunks []types.Chunk) []int64 {
	out := make([]int64, len(chunks))
	for i, c := range chunks {
		out[i] = c.SequenceOr(-1)
	}
	return out
}

func equalSeqs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// failNSink fails the first n writes, then succeeds.
type failNSink struct {
	mu    sync.Mutex
	n     int
	calls int
	inner *policy.StubSink
}

var errSinkDown = errors.New("sink down")

func newFailNSink(n int) *failNSink {
	return &failNSink{n: n, inner: policy.NewStubSink()}
}

func (s *failNSink) WriteBatch(ctx context.Context, chunks []types.Chunk) error {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.n
	s.mu.Unlock()
	if fail {
		return errSinkDown
	}
	return s.inner.WriteBatch(ctx, chunks)
}

func (s *failNSink) Close() error { return s.inner.Close() }
