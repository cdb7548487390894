package relay

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pithecene-io/runnel/ipc"
	"github.com/pithecene-io/runnel/log"
	"github.com/pithecene-io/runnel/metrics"
	"github.com/pithecene-io/runnel/policy"
	"github.com/pithecene-io/runnel/types"
)

// IngestionError classifies ingestion errors for outcome determination.
type IngestionError struct {
	// Kind indicates whether this is a stream error, a policy error or a
	// cancellation.
	Kind IngestionErrorKind
	// Err is the underlying error.
	Err error
}

// IngestionErrorKind classifies ingestion errors.
type IngestionErrorKind int

const (
	// IngestionErrorStream indicates a fatal frame or transport error.
	IngestionErrorStream IngestionErrorKind = iota
	// IngestionErrorPolicy indicates a policy or publish failure.
	IngestionErrorPolicy
	// IngestionErrorCanceled indicates context cancellation.
	IngestionErrorCanceled
)

func (e *IngestionError) Error() string {
	return e.Err.Error()
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// IsPolicyError returns true if the error is a policy failure.
func IsPolicyError(err error) bool {
	var ingErr *IngestionError
	if errors.As(err, &ingErr) {
		return ingErr.Kind == IngestionErrorPolicy
	}
	return false
}

// IsCanceledError returns true if the error is due to context cancellation.
func IsCanceledError(err error) bool {
	var ingErr *IngestionError
	if errors.As(err, &ingErr) {
		return ingErr.Kind == IngestionErrorCanceled
	}
	return false
}

// IsStreamError returns true if the error is a stream/frame error.
func IsStreamError(err error) bool {
	var ingErr *IngestionError
	if errors.As(err, &ingErr) {
		return ingErr.Kind == IngestionErrorStream
	}
	return false
}

// IngestionEngine moves frames from a Source into a Policy.
//   - Frames are handled in arrival order; the engine does not reorder
//   - A frame that fails to decode is skipped and counted
//   - Any sequence value is accepted; ordering is left to consolidation
//   - Fatal framing errors terminate the relay (no resync)
//   - Policy failure terminates the relay
//   - Flush frames flush the policy
type IngestionEngine struct {
	source    Source
	policy    policy.Policy
	logger    *log.Logger
	collector *metrics.Collector
	chunks    int64
	flushes   int64
}

// NewIngestionEngine creates a new ingestion engine.
// A nil logger discards output; a nil collector records nothing.
func NewIngestionEngine(
	source Source,
	pol policy.Policy,
	logger *log.Logger,
	collector *metrics.Collector,
) *IngestionEngine {
	if logger == nil {
		logger = log.NewNop()
	}
	return &IngestionEngine{
		source:    source,
		policy:    pol,
		logger:    logger,
		collector: collector,
	}
}

// Run runs the ingestion loop until EOF or fatal error.
// Returns:
//   - nil: stream ended cleanly (EOF)
//   - *IngestionError with Kind=IngestionErrorStream: fatal frame/stream error
//   - *IngestionError with Kind=IngestionErrorPolicy: policy failure
//   - *IngestionError with Kind=IngestionErrorCanceled: context canceled
func (e *IngestionEngine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return &IngestionError{
				Kind: IngestionErrorCanceled,
				Err:  ctx.Err(),
			}
		default:
		}

		frame, err := e.source.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			var frameErr *ipc.FrameError
			if errors.As(err, &frameErr) && !frameErr.IsFatal() {
				e.logger.Warn("skipping undecodable frame", map[string]any{
					"error": err.Error(),
				})
				e.collector.IncDecodeErrors()
				continue
			}

			e.logger.Error("frame error", map[string]any{
				"error": err.Error(),
			})
			e.collector.IncStreamErrors()
			return &IngestionError{
				Kind: IngestionErrorStream,
				Err:  fmt.Errorf("frame error: %w", err),
			}
		}

		if err := e.processFrame(ctx, frame); err != nil {
			return err
		}
	}
}

// processFrame dispatches a single decoded frame.
func (e *IngestionEngine) processFrame(ctx context.Context, frame any) error {
	switch f := frame.(type) {
	case *types.ChunkFrame:
		return e.processChunk(ctx, f)
	case *ipc.FlushFrame:
		return e.processFlush(ctx, f)
	default:
		e.collector.IncStreamErrors()
		return &IngestionError{
			Kind: IngestionErrorStream,
			Err:  fmt.Errorf("unexpected frame type: %T", frame),
		}
	}
}

// processChunk converts a chunk frame and hands it to the policy.
func (e *IngestionEngine) processChunk(ctx context.Context, frame *types.ChunkFrame) error {
	chunk := frame.Chunk()
	e.chunks++
	e.collector.IncChunksReceived()

	if err := e.policy.IngestChunk(ctx, chunk); err != nil {
		e.logger.Error("policy ingestion failed", map[string]any{
			"session":  chunk.Session(),
			"sequence": chunk.SequenceOr(-1),
			"error":    err.Error(),
		})
		return &IngestionError{
			Kind: IngestionErrorPolicy,
			Err:  fmt.Errorf("policy failure: %w", err),
		}
	}

	return nil
}

// processFlush flushes the policy on request from the producer.
func (e *IngestionEngine) processFlush(ctx context.Context, frame *ipc.FlushFrame) error {
	e.flushes++
	e.logger.Debug("flush frame received", map[string]any{
		"reason": frame.Reason,
	})

	if err := e.policy.Flush(ctx); err != nil {
		e.logger.Error("policy flush failed", map[string]any{
			"reason": frame.Reason,
			"error":  err.Error(),
		})
		return &IngestionError{
			Kind: IngestionErrorPolicy,
			Err:  fmt.Errorf("policy flush failure: %w", err),
		}
	}
	return nil
}

// ChunkCount returns the number of chunks handed to the policy.
func (e *IngestionEngine) ChunkCount() int64 {
	return e.chunks
}

// FlushFrames returns the number of flush frames received.
func (e *IngestionEngine) FlushFrames() int64 {
	return e.flushes
}
