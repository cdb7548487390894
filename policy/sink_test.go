package policy_test

import (
	"errors"
	"testing"

	"github.com/pithecene-io/runnel/policy"
	"github.com/pithecene-io/runnel/types"
)

func TestStubSink_WriteBatch(t *testing.T) {
	sink := policy.NewStubSink()

	batch := []types.Chunk{textChunk("s1", 1, "a"), textChunk("s1", 2, "b")}
	if err := sink.WriteBatch(t.Context(), batch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sink.WriteBatch(t.Context(), []types.Chunk{systemChunk("s1", 3, "sys")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats := sink.Stats()
	if stats.ChunksWritten != 3 {
		t.Errorf("expected ChunksWritten=3, got %d", stats.ChunksWritten)
	}
	if stats.BatchCount != 2 {
		t.Errorf("expected BatchCount=2, got %d", stats.BatchCount)
	}
	if len(sink.Batches) != 2 || len(sink.Batches[0]) != 2 {
		t.Errorf("expected batches [2 1], got %d batches", len(sink.Batches))
	}
}

func TestStubSink_BatchIsolatedFromCaller(t *testing.T) {
	sink := policy.NewStubSink()

	batch := []types.Chunk{textChunk("s1", 1, "a")}
	_ = sink.WriteBatch(t.Context(), batch)
	batch[0] = textChunk("s1", 99, "mutated")

	if got := sink.Written()[0].SequenceOr(-1); got != 1 {
		t.Errorf("stub sink should copy batches, got sequence %d", got)
	}
}

func TestStubSink_ErrorOnWrite(t *testing.T) {
	sink := policy.NewStubSink()
	expectedErr := errors.New("test error")
	sink.ErrorOnWrite = expectedErr

	err := sink.WriteBatch(t.Context(), []types.Chunk{textChunk("s1", 1, "a")})
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected %v, got %v", expectedErr, err)
	}
	if sink.Stats().ChunksWritten != 0 {
		t.Errorf("failed writes should not be counted")
	}
}

func TestStubSink_Close(t *testing.T) {
	sink := policy.NewStubSink()

	if sink.Stats().Closed {
		t.Error("expected Closed=false initially")
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sink.Stats().Closed {
		t.Error("expected Closed=true after Close()")
	}
}
