package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pithecene-io/runnel/adapter"
	"github.com/pithecene-io/runnel/consolidate"
	"github.com/pithecene-io/runnel/ipc"
	"github.com/pithecene-io/runnel/log"
	"github.com/pithecene-io/runnel/metrics"
	"github.com/pithecene-io/runnel/policy"
	"github.com/pithecene-io/runnel/types"
)

type recordingMetricsWriter struct {
	meta types.RelayMeta
	snap metrics.Snapshot
	n    int
	err  error
}

func (w *recordingMetricsWriter) WriteMetrics(_ context.Context, meta types.RelayMeta, snap metrics.Snapshot) error {
	w.meta, w.snap = meta, snap
	w.n++
	return w.err
}

type relayFixture struct {
	pub       *recordingPublisher
	collector *metrics.Collector
	writer    *recordingMetricsWriter
	config    *Config
}

func newRelayFixture(t *testing.T, items []any, newPolicy func(policy.Sink) policy.Policy) *relayFixture {
	t.Helper()
	meta := types.RelayMeta{RelayID: "relay-1", Source: "test"}
	pub := &recordingPublisher{}
	collector := metrics.NewCollector("buffered", "test", "", meta.RelayID)
	transcript := NewTranscript(TranscriptConfig{
		Meta:        meta,
		Consolidate: consolidate.DefaultConfig(),
		Publishers:  []adapter.Publisher{pub},
		Collector:   collector,
	})
	writer := &recordingMetricsWriter{}
	return &relayFixture{
		pub:       pub,
		collector: collector,
		writer:    writer,
		config: &Config{
			Meta:          meta,
			Source:        &sliceSource{items: items},
			Policy:        newPolicy(transcript),
			Transcript:    transcript,
			MetricsWriter: writer,
			Logger:        log.NewNop(),
			Collector:     collector,
		},
	}
}

func buffered(t *testing.T) func(policy.Sink) policy.Policy {
	return func(sink policy.Sink) policy.Policy {
		pol, err := policy.NewBufferedPolicy(sink, policy.BufferedConfig{MaxBufferChunks: 100})
		if err != nil {
			t.Fatal(err)
		}
		return pol
	}
}

func strict(sink policy.Sink) policy.Policy {
	return policy.NewStrictPolicy(sink)
}

func TestNew_Validation(t *testing.T) {
	valid := func() *Config {
		return newRelayFixture(t, nil, strict).config
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing relay id", func(c *Config) { c.Meta.RelayID = "" }},
		{"missing source", func(c *Config) { c.Source = nil }},
		{"missing policy", func(c *Config) { c.Policy = nil }},
		{"missing transcript", func(c *Config) { c.Transcript = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if _, err := New(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	cfg := valid()
	if _, err := New(cfg); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if cfg.FlushTimeout != DefaultFlushTimeout {
		t.Errorf("FlushTimeout = %v, want default", cfg.FlushTimeout)
	}
}

func TestRelay_Completed(t *testing.T) {
	items := []any{
		text("s1", 2, "world"),
		text("s1", 1, "hello"),
		chunkFrame("s1", 3, types.SystemBlock{Text: "thinking"}),
		text("s2", 1, "other"),
		chunkFrame("s1", 4, types.SystemBlock{Text: "done"}),
		text("s1", 2, "world"),
	}
	fx := newRelayFixture(t, items, buffered(t))

	r, err := New(fx.config)
	if err != nil {
		t.Fatal(err)
	}
	res := r.Execute(t.Context())

	if res.Outcome != OutcomeCompleted {
		t.Fatalf("Outcome = %s (%s), want completed", res.Outcome, res.Message)
	}
	if res.ChunkCount != 6 {
		t.Errorf("ChunkCount = %d, want 6", res.ChunkCount)
	}

	got := res.Transcript.Consolidated
	if len(got) != 3 {
		t.Fatalf("expected 3 consolidated chunks, got %d: %+v", len(got), got)
	}
	if s, _ := got[0].TextOf(); s != "hello\nworld" {
		t.Errorf("s1 text = %q, want %q", s, "hello\nworld")
	}
	// Sessions interleave by sequence after consolidation.
	if got[1].Session() != "s2" {
		t.Errorf("expected s2 second, got %q", got[1].Session())
	}
	if sb, ok := got[2].Block.(types.SystemBlock); !ok || sb.Text != "done" {
		t.Errorf("expected latest system block, got %+v", got[2].Block)
	}

	// One termination flush update plus the final update.
	if n := len(fx.pub.updates); n != 2 {
		t.Fatalf("published %d updates, want 2", n)
	}
	if !fx.pub.last().Final {
		t.Error("last update should be final")
	}
	if !fx.pub.closed {
		t.Error("publisher should be closed after relay")
	}

	m := res.Metrics
	if m.RelaysStarted != 1 || m.RelaysCompleted != 1 || m.RelaysFailed != 0 {
		t.Errorf("lifecycle = %d/%d/%d, want 1/1/0", m.RelaysStarted, m.RelaysCompleted, m.RelaysFailed)
	}
	if m.ChunksReceived != 6 || m.ChunksFlushed != 6 {
		t.Errorf("ChunksReceived=%d ChunksFlushed=%d, want 6/6", m.ChunksReceived, m.ChunksFlushed)
	}
	if m.Deduplicated != 1 || m.SystemSuperseded != 1 || m.TextMerged != 1 {
		t.Errorf("consolidation = dedup %d superseded %d merged %d, want 1/1/1", m.Deduplicated, m.SystemSuperseded, m.TextMerged)
	}

	if fx.writer.n != 1 || fx.writer.meta.RelayID != "relay-1" {
		t.Errorf("metrics writer called %d times for %q", fx.writer.n, fx.writer.meta.RelayID)
	}
	if fx.writer.snap.RelaysCompleted != 1 {
		t.Error("metrics writer should see the final snapshot")
	}
}

func TestRelay_StreamErrorStillPublishesBufferedChunks(t *testing.T) {
	items := []any{
		text("s1", 1, "partial answer"),
		&ipc.FrameError{Kind: ipc.FrameErrorPartial, Msg: "truncated"},
	}
	fx := newRelayFixture(t, items, buffered(t))

	r, _ := New(fx.config)
	res := r.Execute(t.Context())

	if res.Outcome != OutcomeStreamError {
		t.Fatalf("Outcome = %s, want stream_error", res.Outcome)
	}
	if len(res.Transcript.Consolidated) != 1 {
		t.Errorf("buffered chunk should be flushed on stream error, got %d chunks", len(res.Transcript.Consolidated))
	}
	if res.Metrics.RelaysFailed != 1 {
		t.Errorf("RelaysFailed = %d, want 1", res.Metrics.RelaysFailed)
	}
}

func TestRelay_PolicyFailureSkipsFinalUpdate(t *testing.T) {
	fx := newRelayFixture(t, []any{text("s1", 1, "a")}, strict)
	fx.pub.setErr(errPublishDown)

	r, _ := New(fx.config)
	res := r.Execute(t.Context())

	if res.Outcome != OutcomePolicyFailure {
		t.Fatalf("Outcome = %s, want policy_failure", res.Outcome)
	}
	if len(fx.pub.updates) != 0 {
		t.Errorf("no update should be published, got %d", len(fx.pub.updates))
	}
	if res.Metrics.PublishFailure == 0 {
		t.Error("expected publish failures to be counted")
	}
}

func TestRelay_FlushFailure(t *testing.T) {
	fx := newRelayFixture(t, []any{text("s1", 1, "a")}, buffered(t))
	fx.pub.setErr(errPublishDown)

	r, _ := New(fx.config)
	res := r.Execute(t.Context())

	if res.Outcome != OutcomePolicyFailure {
		t.Fatalf("Outcome = %s, want policy_failure", res.Outcome)
	}
	if res.PolicyStats.Errors == 0 {
		t.Error("expected policy errors to be recorded")
	}
}

func TestRelay_Canceled(t *testing.T) {
	fx := newRelayFixture(t, []any{text("s1", 1, "a")}, buffered(t))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	r, _ := New(fx.config)
	res := r.Execute(ctx)

	if res.Outcome != OutcomeCanceled {
		t.Fatalf("Outcome = %s, want canceled", res.Outcome)
	}
	if fx.pub.last() == nil || !fx.pub.last().Final {
		t.Error("canceled relay should still publish a final transcript")
	}
}

func TestRelay_MetricsWriteFailureDoesNotChangeOutcome(t *testing.T) {
	fx := newRelayFixture(t, []any{text("s1", 1, "a")}, strict)
	fx.writer.err = errors.New("store down")

	r, _ := New(fx.config)
	res := r.Execute(t.Context())

	if res.Outcome != OutcomeCompleted {
		t.Errorf("Outcome = %s, want completed", res.Outcome)
	}
}

func TestRelay_StreamingFlushTriggers(t *testing.T) {
	streaming := func(sink policy.Sink) policy.Policy {
		pol, err := policy.NewStreamingPolicy(sink, policy.StreamingConfig{FlushCount: 2, FlushInterval: time.Hour})
		if err != nil {
			t.Fatal(err)
		}
		return pol
	}
	items := []any{text("s1", 1, "a"), text("s1", 2, "b"), text("s1", 3, "c")}
	fx := newRelayFixture(t, items, streaming)

	r, _ := New(fx.config)
	res := r.Execute(t.Context())

	if res.Outcome != OutcomeCompleted {
		t.Fatalf("Outcome = %s (%s)", res.Outcome, res.Message)
	}
	if res.Metrics.FlushTriggers["count"] != 1 {
		t.Errorf("FlushTriggers[count] = %d, want 1", res.Metrics.FlushTriggers["count"])
	}
	if s, _ := res.Transcript.Consolidated[0].TextOf(); s != "a\nb\nc" {
		t.Errorf("text = %q, want %q", s, "a\nb\nc")
	}
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	if a == "" || a == b {
		t.Errorf("expected distinct non-empty ids, got %q and %q", a, b)
	}
}
