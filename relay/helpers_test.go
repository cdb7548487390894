package relay

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/pithecene-io/runnel/adapter"
	"github.com/pithecene-io/runnel/ipc"
	"github.com/pithecene-io/runnel/types"
)

// sliceSource yields pre-built frames and errors, then io.EOF.
type sliceSource struct {
	items []any
	pos   int
}

func (s *sliceSource) Next() (any, error) {
	if s.pos >= len(s.items) {
		return nil, io.EOF
	}
	item := s.items[s.pos]
	s.pos++
	if err, ok := item.(error); ok {
		return nil, err
	}
	return item, nil
}

func chunkFrame(session string, seq int64, block types.Block) *types.ChunkFrame {
	return types.NewChunkFrame(types.Chunk{SessionID: session, Sequence: types.Seq(seq), Block: block})
}

func text(session string, seq int64, s string) *types.ChunkFrame {
	return chunkFrame(session, seq, types.TextBlock{Text: s})
}

func flush() *ipc.FlushFrame {
	return ipc.NewFlushFrame("test")
}

// recordingPublisher keeps every update; fails while err is set.
type recordingPublisher struct {
	mu      sync.Mutex
	updates []*adapter.TranscriptUpdate
	err     error
	closed  bool
}

func (p *recordingPublisher) Publish(_ context.Context, u *adapter.TranscriptUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.updates = append(p.updates, u)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) setErr(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *recordingPublisher) last() *adapter.TranscriptUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.updates) == 0 {
		return nil
	}
	return p.updates[len(p.updates)-1]
}

var errPublishDown = errors.New("publisher down")
