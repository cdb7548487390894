package reader

import (
	"context"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/runnel/store"
)

// Reader abstracts read-only access to stored relays for CLI commands.
// All methods are read-only.
type Reader interface {
	// Transcript returns the newest stored transcript of a relay,
	// optionally narrowed to one session.
	Transcript(ctx context.Context, relayID, session string) (*TranscriptResponse, error)
	// Stats returns the final metrics of a relay.
	Stats(ctx context.Context, relayID string) (*StatsResponse, error)
}

// DatasetReader reads relays back from a lode dataset written by
// store.Publisher.
type DatasetReader struct {
	ds lode.Dataset
}

// NewDatasetReader creates a reader over ds.
func NewDatasetReader(ds lode.Dataset) *DatasetReader {
	return &DatasetReader{ds: ds}
}

// Transcript implements Reader.
func (r *DatasetReader) Transcript(ctx context.Context, relayID, session string) (*TranscriptResponse, error) {
	rec, err := store.QueryLatestTranscript(ctx, r.ds, relayID, session)
	if err != nil {
		return nil, err
	}
	return &TranscriptResponse{
		RelayID:   rec.RelayID,
		Source:    rec.Source,
		UpdateSeq: rec.UpdateSeq,
		Final:     rec.Final,
		Ts:        rec.Ts,
		Sessions:  rec.Sessions,
		Chunks:    rec.Chunks,
		Stats:     rec.Stats,
	}, nil
}

// Stats implements Reader.
//
// Engine stats come from the newest transcript record; a relay that never
// published a transcript still reports its metrics.
func (r *DatasetReader) Stats(ctx context.Context, relayID string) (*StatsResponse, error) {
	rec, err := store.QueryLatestMetrics(ctx, r.ds, relayID, "")
	if err != nil {
		return nil, err
	}

	resp := &StatsResponse{
		RelayID:     rec.RelayID,
		Source:      rec.Source,
		CompletedAt: rec.CompletedAt,
		Metrics:     rec.Metrics,
	}
	if tr, err := store.QueryLatestTranscript(ctx, r.ds, relayID, ""); err == nil {
		resp.Engine = tr.Stats
	}
	return resp, nil
}

// Verify DatasetReader implements Reader.
var _ Reader = (*DatasetReader)(nil)
