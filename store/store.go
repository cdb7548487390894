// Package store persists transcript updates and relay metrics in a lode
// dataset.
//
// Records are Hive-partitioned by source/day/relay_id/record_kind and
// encoded as JSONL. The same layout is used by the read path in dataset.go,
// so anything written by a Publisher can be queried back by inspect.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/runnel/adapter"
	"github.com/pithecene-io/runnel/metrics"
	"github.com/pithecene-io/runnel/relay"
	"github.com/pithecene-io/runnel/types"
)

// DefaultDataset is the dataset ID used when none is configured.
const DefaultDataset = "runnel"

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"source", "day", "relay_id", "record_kind"}

// DeriveDay computes the partition day from the relay start time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Config holds store publisher configuration.
type Config struct {
	// Dataset is the lode dataset ID (default "runnel").
	Dataset string
	// Source is the partition key for the producing agent or pipeline.
	Source string
	// Day is the partition key derived from relay start (YYYY-MM-DD UTC).
	Day string
	// RelayID is the partition key for the relay.
	RelayID string
	// FinalOnly persists only the final update of a relay. Intermediate
	// updates are acknowledged without being written.
	FinalOnly bool
}

// Publisher writes transcript updates and metrics snapshots to lode.
// It implements adapter.Publisher and relay.MetricsWriter.
type Publisher struct {
	dataset lode.Dataset
	config  Config

	mu      sync.Mutex
	written int64
}

// NewPublisher creates a publisher with filesystem storage rooted at root.
func NewPublisher(cfg Config, root string) (*Publisher, error) {
	return NewPublisherWithFactory(cfg, lode.NewFSFactory(root))
}

// NewPublisherWithFactory creates a publisher with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewPublisherWithFactory(cfg Config, factory lode.StoreFactory) (*Publisher, error) {
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultDataset
	}
	if cfg.Day == "" {
		cfg.Day = DeriveDay(time.Now())
	}

	ds, err := NewReadDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}

	return &Publisher{dataset: ds, config: cfg}, nil
}

// Publish writes one transcript record for the update.
func (p *Publisher) Publish(ctx context.Context, update *adapter.TranscriptUpdate) error {
	if p.config.FinalOnly && !update.Final {
		return nil
	}

	record := toTranscriptRecordMap(update, p.config)
	if err := p.write(ctx, record); err != nil {
		return WrapWriteError(err, p.partitionPath(RecordKindTranscript))
	}
	return nil
}

// WriteMetrics writes one metrics record for the relay.
func (p *Publisher) WriteMetrics(ctx context.Context, meta types.RelayMeta, snap metrics.Snapshot) error {
	record := toMetricsRecordMap(snap, meta, p.config, time.Now())
	if err := p.write(ctx, record); err != nil {
		return WrapWriteError(err, p.partitionPath(RecordKindMetrics))
	}
	return nil
}

// Written returns the number of records written.
func (p *Publisher) Written() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written
}

// Dataset returns the underlying dataset for reads.
func (p *Publisher) Dataset() lode.Dataset {
	return p.dataset
}

// Close releases publisher resources.
func (p *Publisher) Close() error {
	// Dataset doesn't require explicit close in current lode API
	return nil
}

// write serializes dataset writes so snapshots land in update order.
func (p *Publisher) write(ctx context.Context, record map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.dataset.Write(ctx, []any{record}, lode.Metadata{}); err != nil {
		return err
	}
	p.written++
	return nil
}

// partitionPath renders the Hive partition for error messages.
func (p *Publisher) partitionPath(kind string) string {
	return "source=" + p.config.Source +
		"/day=" + p.config.Day +
		"/relay_id=" + p.config.RelayID +
		"/record_kind=" + kind
}

// Verify Publisher implements the publisher and metrics writer boundaries.
var (
	_ adapter.Publisher   = (*Publisher)(nil)
	_ relay.MetricsWriter = (*Publisher)(nil)
)
