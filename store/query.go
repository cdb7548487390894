package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/justapithecus/lode/lode"
)

// ErrNoTranscriptFound is returned when no transcript record matches.
var ErrNoTranscriptFound = errors.New("no transcript records found")

// ErrNoMetricsFound is returned when no metrics record matches.
var ErrNoMetricsFound = errors.New("no metrics records found")

// QueryLatestTranscript finds the newest transcript record for relayID.
// An empty relayID matches any relay. A non-empty session narrows the
// returned chunks to that session.
func QueryLatestTranscript(ctx context.Context, ds lode.Dataset, relayID, session string) (*TranscriptRecord, error) {
	record, err := queryLatest(ctx, ds, RecordKindTranscript, relayID, "")
	if err != nil {
		if errors.Is(err, errNoRecord) {
			return nil, ErrNoTranscriptFound
		}
		return nil, err
	}

	tr, err := decodeRecord[TranscriptRecord](record)
	if err != nil {
		return nil, err
	}
	if session != "" {
		filtered := tr.Chunks[:0:0]
		for _, c := range tr.Chunks {
			if c.Session() == session {
				filtered = append(filtered, c)
			}
		}
		tr.Chunks = filtered
		tr.Sessions = []string{session}
	}
	return tr, nil
}

// QueryLatestMetrics finds the newest metrics record for relayID.
// Filters by relayID and source if non-empty.
func QueryLatestMetrics(ctx context.Context, ds lode.Dataset, relayID, source string) (*MetricsRecord, error) {
	record, err := queryLatest(ctx, ds, RecordKindMetrics, relayID, source)
	if err != nil {
		if errors.Is(err, errNoRecord) {
			return nil, ErrNoMetricsFound
		}
		return nil, err
	}
	return decodeRecord[MetricsRecord](record)
}

var errNoRecord = errors.New("no record")

// queryLatest walks snapshots newest first and returns the first record of
// the given kind passing the filters.
func queryLatest(ctx context.Context, ds lode.Dataset, kind, relayID, source string) (map[string]any, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, string(ds.ID())+"/snapshots")
	}

	// Snapshots are ordered by creation time.
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]

		if !snapshotMatchesFilter(snap, "record_kind", kind) ||
			!snapshotMatchesFilter(snap, "relay_id", relayID) ||
			!snapshotMatchesFilter(snap, "source", source) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}

		// Manifest paths are a coarse pre-filter; record fields are
		// authoritative.
		for j := len(data) - 1; j >= 0; j-- {
			record, ok := data[j].(map[string]any)
			if !ok {
				continue
			}
			if record["record_kind"] != kind {
				continue
			}
			if relayID != "" && toString(record["relay_id"]) != relayID {
				continue
			}
			if source != "" && toString(record["source"]) != source {
				continue
			}
			return record, nil
		}
	}

	return nil, errNoRecord
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
