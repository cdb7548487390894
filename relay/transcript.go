package relay

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/pithecene-io/runnel/adapter"
	"github.com/pithecene-io/runnel/consolidate"
	"github.com/pithecene-io/runnel/iox"
	"github.com/pithecene-io/runnel/log"
	"github.com/pithecene-io/runnel/metrics"
	"github.com/pithecene-io/runnel/policy"
	"github.com/pithecene-io/runnel/types"
)

// TranscriptConfig configures a Transcript.
type TranscriptConfig struct {
	// Meta identifies the relay on every published update.
	Meta types.RelayMeta
	// Consolidate configures each consolidation pass.
	Consolidate consolidate.Config
	// Publishers receive every update, in order. May be empty.
	Publishers []adapter.Publisher
	// Logger is an optional logger. If nil, no logging is emitted.
	Logger *log.Logger
	// Collector records consolidation and publish metrics. May be nil.
	Collector *metrics.Collector
}

// ErrTranscriptClosed is returned by writes after Close.
var ErrTranscriptClosed = errors.New("transcript closed")

// Transcript is the policy sink that owns the consolidated transcript.
//
// It keeps every chunk received so far, ordered and deduplicated, and each
// WriteBatch consolidates that whole set again. Merged text is never fed back
// into the engine, so a late fragment lands in sequence order exactly as a
// single Consolidate over every chunk would place it. A write is committed
// only after every publisher accepts it, so a retried batch starts from the
// same state.
type Transcript struct {
	config TranscriptConfig
	logger *log.Logger

	mu sync.Mutex
	// raw is every distinct chunk received, in sequence order.
	raw []types.Chunk
	// received and deduplicated count every chunk ever written, including
	// the duplicates raw no longer holds.
	received     int
	deduplicated int
	last         consolidate.Result
	updates      int64
	warned       map[string]struct{}
	closed       bool
	finished     bool
}

// NewTranscript creates an empty transcript.
func NewTranscript(config TranscriptConfig) *Transcript {
	return &Transcript{
		config: config,
		logger: config.Logger,
		warned: make(map[string]struct{}),
	}
}

// WriteBatch folds a batch into the transcript and publishes the result.
// Publish failures are returned; the transcript is left unchanged.
func (t *Transcript) WriteBatch(ctx context.Context, batch []types.Chunk) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTranscriptClosed
	}
	if len(batch) == 0 {
		return nil
	}

	input := make([]types.Chunk, 0, len(t.raw)+len(batch))
	input = append(input, t.raw...)
	input = append(input, batch...)
	raw, dropped := consolidate.OrderAndDedup(input, t.config.Consolidate)

	result := consolidate.Consolidate(raw, t.config.Consolidate)
	result.Stats.Original = t.received + len(batch)
	result.Stats.Deduplicated = t.deduplicated + dropped
	t.warnDuplicateResults(result.Consolidated)

	update := adapter.NewTranscriptUpdate(t.config.Meta, t.updates+1, result, false)
	if err := t.publish(ctx, update); err != nil {
		return err
	}

	t.config.Collector.AbsorbConsolidateStats(
		result.Stats.Deduplicated,
		result.Stats.TextMerged,
		result.Stats.ToolsCollapsed,
		result.Stats.SystemSuperseded,
	)
	t.raw = raw
	t.received = result.Stats.Original
	t.deduplicated = result.Stats.Deduplicated
	t.last = result
	t.updates++

	t.logDebug("transcript updated", map[string]any{
		"update":   t.updates,
		"batch":    len(batch),
		"chunks":   len(result.Consolidated),
		"merged":   result.Stats.TextMerged,
		"deduped":  result.Stats.Deduplicated,
		"replaced": result.Stats.SystemSuperseded,
	})
	return nil
}

// Finalize publishes the current transcript once more, marked final.
// Subsequent calls are no-ops.
func (t *Transcript) Finalize(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTranscriptClosed
	}
	if t.finished {
		return nil
	}

	update := adapter.NewTranscriptUpdate(t.config.Meta, t.updates+1, t.last, true)
	if err := t.publish(ctx, update); err != nil {
		return err
	}
	t.updates++
	t.finished = true
	return nil
}

// Result returns the latest consolidated transcript and the stats of the
// pass that produced it. The returned slice must not be modified.
func (t *Transcript) Result() consolidate.Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return consolidate.Result{Consolidated: slices.Clone(t.last.Consolidated), Stats: t.last.Stats}
}

// Updates returns the number of updates published.
func (t *Transcript) Updates() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updates
}

// Close closes every publisher.
func (t *Transcript) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	return iox.CloseAll(t.config.Publishers...)
}

// publish sends the update to every publisher. Caller must hold mu.
func (t *Transcript) publish(ctx context.Context, update *adapter.TranscriptUpdate) error {
	var errs []error
	for _, pub := range t.config.Publishers {
		if err := pub.Publish(ctx, update); err != nil {
			t.config.Collector.IncPublishFailure()
			t.logError("publish failed", map[string]any{
				"update": update.Sequence,
				"final":  update.Final,
				"error":  err.Error(),
			})
			errs = append(errs, err)
			continue
		}
		t.config.Collector.IncPublishSuccess()
	}
	if len(errs) > 0 {
		return fmt.Errorf("publish update %d: %w", update.Sequence, errors.Join(errs...))
	}
	return nil
}

// warnDuplicateResults logs each tool_use id answered by more than one
// tool_result, once per id. Caller must hold mu.
func (t *Transcript) warnDuplicateResults(chunks []types.Chunk) {
	if t.logger == nil {
		return
	}
	for _, id := range consolidate.DuplicateResults(chunks) {
		if _, ok := t.warned[id]; ok {
			continue
		}
		t.warned[id] = struct{}{}
		t.logger.Warn("multiple tool results for one tool use", map[string]any{
			"tool_use_id": id,
		})
	}
}

func (t *Transcript) logDebug(msg string, fields map[string]any) {
	if t.logger == nil {
		return
	}
	t.logger.Debug(msg, fields)
}

func (t *Transcript) logError(msg string, fields map[string]any) {
	if t.logger == nil {
		return
	}
	t.logger.Error(msg, fields)
}

// Verify Transcript implements the policy sink.
var _ policy.Sink = (*Transcript)(nil)
