package ipc

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/runnel/types"
)

// fullKindProbe unmarshals the entire payload to read one field.
// Baseline for the streaming probe.
type fullKindProbe struct {
	Kind string `msgpack:"kind"`
}

func probeFrameKindFull(payload []byte) (string, error) {
	var probe fullKindProbe
	if err := msgpack.Unmarshal(payload, &probe); err != nil {
		return "", err
	}
	return probe.Kind, nil
}

// buildChunkStream encodes n text chunks followed by a flush frame.
func buildChunkStream(b *testing.B, n int) []byte {
	b.Helper()
	var buf bytes.Buffer
	enc := NewFrameEncoder(&buf)
	for i := range n {
		f := types.NewChunkFrame(types.Chunk{
			SessionID: "s1",
			Sequence:  types.Seq(int64(i)),
			Block:     types.TextBlock{Text: "a streamed fragment of assistant output"},
		})
		if err := enc.WriteFrame(f); err != nil {
			b.Fatalf("WriteFrame: %v", err)
		}
	}
	if err := enc.WriteFrame(NewFlushFrame("end")); err != nil {
		b.Fatalf("WriteFrame: %v", err)
	}
	return buf.Bytes()
}

func toolUsePayload(b *testing.B) []byte {
	b.Helper()
	payload, err := msgpack.Marshal(types.NewChunkFrame(types.Chunk{
		SessionID: "s1",
		Sequence:  types.Seq(1),
		Block: types.ToolUseBlock{
			ID:    "toolu_01",
			Name:  "bash",
			Input: map[string]any{"command": "ls -la", "timeout": 30},
		},
	}))
	if err != nil {
		b.Fatal(err)
	}
	return payload
}

func BenchmarkProbeFrameKind(b *testing.B) {
	payload := toolUsePayload(b)

	b.Run("full", func(b *testing.B) {
		b.ReportAllocs()
		for range b.N {
			kind, err := probeFrameKindFull(payload)
			if err != nil {
				b.Fatal(err)
			}
			if kind != string(types.FrameKindChunk) {
				b.Fatalf("got %q", kind)
			}
		}
	})

	b.Run("streaming", func(b *testing.B) {
		b.ReportAllocs()
		for range b.N {
			kind, err := probeFrameKind(payload)
			if err != nil {
				b.Fatal(err)
			}
			if kind != string(types.FrameKindChunk) {
				b.Fatalf("got %q", kind)
			}
		}
	})
}

func BenchmarkDecodeFrame_Chunk(b *testing.B) {
	payload := toolUsePayload(b)

	b.ResetTimer()
	b.ReportAllocs()
	for range b.N {
		result, err := DecodeFrame(payload)
		if err != nil {
			b.Fatal(err)
		}
		if _, ok := result.(*types.ChunkFrame); !ok {
			b.Fatalf("got %T", result)
		}
	}
}

// BenchmarkReadFrame_OneByteReader simulates an unbuffered pipe returning one
// byte per read.
func BenchmarkReadFrame_OneByteReader(b *testing.B) {
	data := buildChunkStream(b, 20)

	b.ResetTimer()
	b.ReportAllocs()
	for range b.N {
		decoder := NewFrameDecoder(iotest.OneByteReader(bytes.NewReader(data)))
		for {
			_, err := decoder.ReadFrame()
			if err == io.EOF {
				break
			}
			if err != nil {
				b.Fatal(err)
			}
		}
	}
}

func BenchmarkFrameSource_Stream(b *testing.B) {
	data := buildChunkStream(b, 100)

	b.ResetTimer()
	b.ReportAllocs()
	for range b.N {
		src := NewFrameSource(bytes.NewReader(data))
		for {
			_, err := src.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				b.Fatal(err)
			}
		}
	}
}
