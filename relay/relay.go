package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/runnel/consolidate"
	"github.com/pithecene-io/runnel/log"
	"github.com/pithecene-io/runnel/metrics"
	"github.com/pithecene-io/runnel/policy"
	"github.com/pithecene-io/runnel/types"
)

// DefaultFlushTimeout bounds the termination flush and final publish.
const DefaultFlushTimeout = 30 * time.Second

// Outcome classifies how a relay ended.
type Outcome string

const (
	// OutcomeCompleted means the source reached EOF and everything was published.
	OutcomeCompleted Outcome = "completed"
	// OutcomeStreamError means the source failed with a fatal framing error.
	OutcomeStreamError Outcome = "stream_error"
	// OutcomePolicyFailure means buffering, flushing or publishing failed.
	OutcomePolicyFailure Outcome = "policy_failure"
	// OutcomeCanceled means the context was canceled mid-stream.
	OutcomeCanceled Outcome = "canceled"
)

// MetricsWriter persists the final metrics snapshot of a relay.
// The store publisher implements it.
type MetricsWriter interface {
	WriteMetrics(ctx context.Context, meta types.RelayMeta, snap metrics.Snapshot) error
}

// Config configures a single relay.
type Config struct {
	// Meta is the relay identity.
	Meta types.RelayMeta
	// Source yields frames.
	Source Source
	// Policy buffers chunks; its sink must be Transcript.
	Policy policy.Policy
	// Transcript is the consolidating sink behind Policy.
	Transcript *Transcript
	// MetricsWriter, if set, receives the final metrics snapshot.
	MetricsWriter MetricsWriter
	// Logger is the relay logger. If nil, one is built from Meta.
	Logger *log.Logger
	// Collector is the metrics collector for this relay.
	// If nil, no metrics are recorded (all Collector methods are nil-safe).
	Collector *metrics.Collector
	// FlushTimeout bounds the termination flush (default 30s).
	FlushTimeout time.Duration
}

// Result represents the result of a relay.
type Result struct {
	// Meta is the relay identity.
	Meta types.RelayMeta
	// Outcome classifies how the relay ended.
	Outcome Outcome
	// Message describes the outcome.
	Message string
	// Duration is the total relay duration.
	Duration time.Duration
	// ChunkCount is the number of chunks handed to the policy.
	ChunkCount int64
	// PolicyStats is the final policy statistics.
	PolicyStats policy.Stats
	// Transcript is the final consolidated transcript.
	Transcript consolidate.Result
	// Metrics is the final metrics snapshot.
	Metrics metrics.Snapshot
}

// Relay orchestrates a single relay.
type Relay struct {
	config    *Config
	logger    *log.Logger
	startTime time.Time
}

// New creates a relay orchestrator.
// Returns error if the configuration is incomplete.
func New(config *Config) (*Relay, error) {
	switch {
	case config.Meta.RelayID == "":
		return nil, errors.New("invalid relay config: relay id is required")
	case config.Source == nil:
		return nil, errors.New("invalid relay config: source is required")
	case config.Policy == nil:
		return nil, errors.New("invalid relay config: policy is required")
	case config.Transcript == nil:
		return nil, errors.New("invalid relay config: transcript is required")
	}
	if config.FlushTimeout <= 0 {
		config.FlushTimeout = DefaultFlushTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = log.NewLogger(config.Meta)
	}

	return &Relay{config: config, logger: logger}, nil
}

// Execute runs the relay end-to-end.
//
// Execution flow:
//  1. Run the ingestion loop until EOF or a fatal error
//  2. Flush the policy (best effort on every path)
//  3. Publish the final transcript
//  4. Close the policy, which closes the transcript and its publishers
//  5. Record metrics and return the result
func (r *Relay) Execute(ctx context.Context) *Result {
	r.startTime = time.Now()
	r.config.Collector.IncRelayStarted()

	r.logger.Info("starting relay", nil)

	ingestion := NewIngestionEngine(r.config.Source, r.config.Policy, r.logger, r.config.Collector)
	ingErr := ingestion.Run(ctx)

	// Flush and finalize ignore parent cancellation but keep its values.
	flushCtx, flushCancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.FlushTimeout)
	defer flushCancel()

	flushErr := r.config.Policy.Flush(flushCtx)
	if flushErr != nil {
		r.logger.Warn("policy flush failed", map[string]any{
			"error": flushErr.Error(),
		})
	}

	var finalErr error
	if flushErr == nil && !IsPolicyError(ingErr) {
		if finalErr = r.config.Transcript.Finalize(flushCtx); finalErr != nil {
			r.logger.Warn("final publish failed", map[string]any{
				"error": finalErr.Error(),
			})
		}
	}

	var outcome Outcome
	var message string
	switch {
	case ingErr != nil && IsPolicyError(ingErr):
		outcome, message = OutcomePolicyFailure, fmt.Sprintf("policy failure: %v", ingErr)
	case ingErr != nil && IsCanceledError(ingErr):
		outcome, message = OutcomeCanceled, fmt.Sprintf("relay canceled: %v", ingErr)
	case ingErr != nil:
		outcome, message = OutcomeStreamError, fmt.Sprintf("stream error: %v", ingErr)
	case flushErr != nil:
		outcome, message = OutcomePolicyFailure, fmt.Sprintf("policy flush failed: %v", flushErr)
	case finalErr != nil:
		outcome, message = OutcomePolicyFailure, fmt.Sprintf("final publish failed: %v", finalErr)
	default:
		outcome, message = OutcomeCompleted, "relay completed"
	}

	if err := r.config.Policy.Close(); err != nil {
		r.logger.Warn("policy close failed", map[string]any{
			"error": err.Error(),
		})
	}

	return r.buildResult(flushCtx, outcome, message, ingestion)
}

// buildResult constructs the final relay result and records outcome metrics.
func (r *Relay) buildResult(ctx context.Context, outcome Outcome, message string, ingestion *IngestionEngine) *Result {
	result := &Result{
		Meta:        r.config.Meta,
		Outcome:     outcome,
		Message:     message,
		Duration:    time.Since(r.startTime),
		ChunkCount:  ingestion.ChunkCount(),
		PolicyStats: r.config.Policy.Stats(),
		Transcript:  r.config.Transcript.Result(),
	}

	if outcome == OutcomeCompleted {
		r.config.Collector.IncRelayCompleted()
	} else {
		r.config.Collector.IncRelayFailed()
	}

	ps := result.PolicyStats
	r.config.Collector.AbsorbPolicyStats(ps.TotalChunks, ps.ChunksFlushed, ps.ChunksDropped, ps.DroppedBySession, flushTriggers(r.config.Policy))
	result.Metrics = r.config.Collector.Snapshot()

	if r.config.MetricsWriter != nil {
		if err := r.config.MetricsWriter.WriteMetrics(ctx, r.config.Meta, result.Metrics); err != nil {
			r.logger.Warn("metrics write failed", map[string]any{
				"error": err.Error(),
			})
		}
	}

	r.logger.Info("relay finished", map[string]any{
		"outcome":  string(outcome),
		"chunks":   result.ChunkCount,
		"updates":  r.config.Transcript.Updates(),
		"duration": result.Duration.String(),
	})

	return result
}

// flushTriggers returns per-trigger counts for streaming policies, nil otherwise.
func flushTriggers(pol policy.Policy) map[string]int64 {
	sp, ok := pol.(*policy.StreamingPolicy)
	if !ok {
		return nil
	}
	stats := sp.FlushTriggerStats()
	out := make(map[string]int64, len(stats))
	for k, v := range stats {
		out[string(k)] = v
	}
	return out
}
