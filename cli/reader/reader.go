package reader

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/pithecene-io/runnel/ipc"
	"github.com/pithecene-io/runnel/relay"
	"github.com/pithecene-io/runnel/types"
)

// Batch is a fully materialized input for one-shot consolidation.
type Batch struct {
	Chunks []types.Chunk
	// Skipped counts frames that failed to decode.
	Skipped int
	// Flushes counts flush frames, which carry no chunk.
	Flushes int
}

// NewSource wraps r in the relay.Source for format.
// InputJSON has no streaming form and is rejected.
func NewSource(r io.Reader, format InputFormat) (relay.Source, error) {
	switch format {
	case InputJSONL, "":
		return NewJSONLSource(r), nil
	case InputMsgpack:
		return ipc.NewFrameSource(r), nil
	case InputJSON:
		return nil, errors.New("json array input cannot be streamed; use jsonl or msgpack")
	default:
		return nil, fmt.Errorf("unknown input format: %s", format)
	}
}

// ReadBatch reads every chunk from r.
//
// Undecodable frames are skipped and counted. A fatal framing error aborts
// the read.
func ReadBatch(r io.Reader, format InputFormat) (*Batch, error) {
	if format == InputJSON {
		var chunks []types.Chunk
		if err := json.NewDecoder(r).Decode(&chunks); err != nil {
			return nil, fmt.Errorf("invalid JSON chunk array: %w", err)
		}
		return &Batch{Chunks: chunks}, nil
	}

	src, err := NewSource(r, format)
	if err != nil {
		return nil, err
	}

	batch := &Batch{}
	for {
		frame, err := src.Next()
		if err == io.EOF {
			return batch, nil
		}
		if err != nil {
			if ipc.IsFatalFrameError(err) {
				return nil, err
			}
			batch.Skipped++
			continue
		}

		switch f := frame.(type) {
		case *types.ChunkFrame:
			batch.Chunks = append(batch.Chunks, f.Chunk())
		case *ipc.FlushFrame:
			batch.Flushes++
		default:
			return nil, fmt.Errorf("unexpected frame type %T", frame)
		}
	}
}
