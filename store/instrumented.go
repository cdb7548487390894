package store

import (
	"context"

	"github.com/pithecene-io/runnel/adapter"
	"github.com/pithecene-io/runnel/metrics"
	"github.com/pithecene-io/runnel/relay"
	"github.com/pithecene-io/runnel/types"
)

// InstrumentedPublisher wraps a Publisher and records store write
// success or failure on the collector for every call.
type InstrumentedPublisher struct {
	inner     *Publisher
	collector *metrics.Collector
}

// NewInstrumentedPublisher wraps a publisher with metrics instrumentation.
func NewInstrumentedPublisher(inner *Publisher, collector *metrics.Collector) *InstrumentedPublisher {
	return &InstrumentedPublisher{inner: inner, collector: collector}
}

// Publish delegates to the inner publisher and records the outcome.
func (p *InstrumentedPublisher) Publish(ctx context.Context, update *adapter.TranscriptUpdate) error {
	if p.inner.config.FinalOnly && !update.Final {
		return nil
	}
	return p.record(p.inner.Publish(ctx, update))
}

// WriteMetrics delegates to the inner publisher and records the outcome.
// The snapshot is taken before this write, so it does not count itself.
func (p *InstrumentedPublisher) WriteMetrics(ctx context.Context, meta types.RelayMeta, snap metrics.Snapshot) error {
	return p.record(p.inner.WriteMetrics(ctx, meta, snap))
}

// Close delegates to the inner publisher.
func (p *InstrumentedPublisher) Close() error {
	return p.inner.Close()
}

func (p *InstrumentedPublisher) record(err error) error {
	if err != nil {
		p.collector.IncStoreWriteFailure()
	} else {
		p.collector.IncStoreWriteSuccess()
	}
	return err
}

// Verify InstrumentedPublisher implements the publisher and metrics writer boundaries.
var (
	_ adapter.Publisher   = (*InstrumentedPublisher)(nil)
	_ relay.MetricsWriter = (*InstrumentedPublisher)(nil)
)
