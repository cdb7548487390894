package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pithecene-io/runnel/adapter"
	"github.com/pithecene-io/runnel/consolidate"
	"github.com/pithecene-io/runnel/metrics"
	"github.com/pithecene-io/runnel/types"
)

// RecordKind discriminator values. record_kind is also the last partition key.
const (
	RecordKindTranscript = "transcript"
	RecordKindMetrics    = "metrics"
)

// TranscriptRecord is the storage format of one transcript update.
type TranscriptRecord struct {
	RecordKind string `json:"record_kind"`

	ContractVersion string            `json:"contract_version"`
	RelayID         string            `json:"relay_id"`
	UpdateSeq       int64             `json:"update_seq"`
	Final           bool              `json:"final"`
	Ts              string            `json:"ts"`
	Sessions        []string          `json:"sessions"`
	Chunks          []types.Chunk     `json:"chunks"`
	Stats           consolidate.Stats `json:"stats"`

	// Partition keys
	Source string `json:"source"`
	Day    string `json:"day"`
}

// Result returns the stored transcript as an engine result.
func (r *TranscriptRecord) Result() consolidate.Result {
	return consolidate.Result{Consolidated: r.Chunks, Stats: r.Stats}
}

// MetricsRecord is the storage format of a relay's final metrics.
type MetricsRecord struct {
	RecordKind string `json:"record_kind"`

	RelayID     string           `json:"relay_id"`
	CompletedAt string           `json:"completed_at"`
	Metrics     metrics.Snapshot `json:"metrics"`

	// Partition keys
	Source string `json:"source"`
	Day    string `json:"day"`
}

// toTranscriptRecordMap converts an update to a map for lode storage.
// Lode HiveLayout requires records as map[string]any.
func toTranscriptRecordMap(u *adapter.TranscriptUpdate, cfg Config) map[string]any {
	return map[string]any{
		"record_kind":      RecordKindTranscript,
		"contract_version": u.ContractVersion,
		"relay_id":         relayIDOf(u.RelayID, cfg),
		"update_seq":       u.Sequence,
		"final":            u.Final,
		"ts":               u.Timestamp,
		"sessions":         u.Sessions(),
		"chunks":           u.Chunks,
		"stats":            u.Stats,
		"source":           sourceOf(u.Source, cfg),
		"day":              cfg.Day,
	}
}

// toMetricsRecordMap converts a metrics snapshot to a map for lode storage.
func toMetricsRecordMap(snap metrics.Snapshot, meta types.RelayMeta, cfg Config, completedAt time.Time) map[string]any {
	return map[string]any{
		"record_kind":  RecordKindMetrics,
		"relay_id":     relayIDOf(meta.RelayID, cfg),
		"completed_at": completedAt.UTC().Format(time.RFC3339Nano),
		"metrics":      snap,
		"source":       sourceOf(meta.Source, cfg),
		"day":          cfg.Day,
	}
}

// Configured partition keys win over per-record values so every record of
// a publisher lands in the same partition.
func relayIDOf(id string, cfg Config) string {
	if cfg.RelayID != "" {
		return cfg.RelayID
	}
	return id
}

func sourceOf(source string, cfg Config) string {
	if cfg.Source != "" {
		return cfg.Source
	}
	return source
}

// decodeRecord converts a generic record read back from lode into T by
// re-encoding it as JSON.
func decodeRecord[T any](record map[string]any) (*T, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("re-encode record: %w", err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &out, nil
}
