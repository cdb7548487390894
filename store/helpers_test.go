package store

import (
	"context"
	"errors"
	"io"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/runnel/adapter"
	"github.com/pithecene-io/runnel/consolidate"
	"github.com/pithecene-io/runnel/types"
)

// sharedFactory returns a StoreFactory that always returns the given store.
// This allows write and read datasets to share the same in-memory state.
func sharedFactory(store lode.Store) lode.StoreFactory {
	return func() (lode.Store, error) { return store, nil }
}

// failingStore is a lode.Store that returns configurable errors.
type failingStore struct {
	putErr   error
	putCalls int
}

func (s *failingStore) Put(_ context.Context, _ string, _ io.Reader) error {
	s.putCalls++
	return s.putErr
}

func (s *failingStore) Get(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (s *failingStore) Exists(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (s *failingStore) List(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

func (s *failingStore) Delete(_ context.Context, _ string) error {
	return nil
}

func (s *failingStore) ReadRange(_ context.Context, _ string, _, _ int64) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *failingStore) ReaderAt(_ context.Context, _ string) (io.ReaderAt, error) {
	return nil, errors.New("not implemented")
}

var _ lode.Store = (*failingStore)(nil)

func testConfig(relayID string) Config {
	return Config{
		Dataset: "runnel",
		Source:  "agent",
		Day:     "2026-10-19",
		RelayID: relayID,
	}
}

func update(relayID string, seq int64, final bool, chunks ...types.Chunk) *adapter.TranscriptUpdate {
	return adapter.NewTranscriptUpdate(
		types.RelayMeta{RelayID: relayID, Source: "agent"},
		seq,
		consolidate.Result{
			Consolidated: chunks,
			Stats:        consolidate.Stats{Original: len(chunks)},
		},
		final,
	)
}

func text(session string, seq int64, s string) types.Chunk {
	return types.Chunk{SessionID: session, Sequence: types.Seq(seq), Block: types.TextBlock{Text: s}}
}
