// Package relay runs one relay: it reads chunk frames from a source, buffers
// them through a policy, and keeps a consolidated transcript that is
// published after every flush.
package relay

import (
	"github.com/google/uuid"

	"github.com/pithecene-io/runnel/ipc"
)

// Source yields decoded frames.
//
// Next returns *types.ChunkFrame or *ipc.FlushFrame, and io.EOF at clean
// end of stream. A *ipc.FrameError that is not fatal marks a single bad
// frame; the stream may continue after it.
type Source interface {
	Next() (any, error)
}

// Verify the msgpack frame source satisfies Source.
var _ Source = (*ipc.FrameSource)(nil)

// NewID returns a new relay identifier.
// UUIDv7 ids sort by creation time, which keeps storage listings ordered.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
