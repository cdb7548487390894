// Package ipc implements the length-prefixed msgpack framing used by chunk
// producers, plus the JSON frame form shared by line and socket transports.
package ipc

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/runnel/types"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (16 MiB), including length prefix.
	MaxFrameSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// FlushFrame is a control frame asking the relay to flush buffered chunks
// and publish the transcript.
type FlushFrame struct {
	Kind types.FrameKind `msgpack:"kind" json:"kind"`
	// Reason is a free-form label for logs.
	Reason string `msgpack:"reason,omitempty" json:"reason,omitempty"`
}

// NewFlushFrame creates a flush frame with the given reason.
func NewFlushFrame(reason string) *FlushFrame {
	return &FlushFrame{Kind: types.FrameKindFlush, Reason: reason}
}

// FrameErrorKind classifies frame decoding errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a payload decoding error.
	FrameErrorDecode
)

// FrameError represents a frame decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if this error is fatal (stream cannot continue).
// Partial and oversized frames desynchronize the stream; a payload that
// fails to decode does not.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// FrameDecoder decodes length-prefixed msgpack frames from a stream.
type FrameDecoder struct {
	reader *bufio.Reader
}

// NewFrameDecoder creates a new frame decoder.
// The reader is buffered so small reads from pipes are batched.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: bufio.NewReaderSize(r, 64*1024)}
}

// ReadFrame reads a single frame from the stream.
// Returns the raw payload bytes (msgpack-encoded).
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
func (d *FrameDecoder) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(d.reader, lengthBuf[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	_, err = io.ReadFull(d.reader, payload)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	return payload, nil
}

// FrameEncoder writes length-prefixed msgpack frames to a stream.
type FrameEncoder struct {
	writer io.Writer
}

// NewFrameEncoder creates a new frame encoder.
func NewFrameEncoder(w io.Writer) *FrameEncoder {
	return &FrameEncoder{writer: w}
}

// WriteFrame msgpack-encodes v and writes it as one frame.
func (e *FrameEncoder) WriteFrame(v any) error {
	frame, err := EncodeFrame(v)
	if err != nil {
		return err
	}
	_, err = e.writer.Write(frame)
	return err
}

// EncodeFrame msgpack-encodes v and prepends the length prefix.
func EncodeFrame(v any) ([]byte, error) {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	if len(payload) > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload))) //nolint:gosec // bounded by MaxPayloadSize
	copy(buf[LengthPrefixSize:], payload)
	return buf, nil
}

// probeFrameKind reads the top-level "kind" field of a msgpack map without
// decoding the rest of the payload. Returns "" when the field is absent.
func probeFrameKind(payload []byte) (string, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	n, err := dec.DecodeMapLen()
	if err != nil {
		return "", err
	}
	for range n {
		key, err := dec.DecodeString()
		if err != nil {
			return "", err
		}
		if key != "kind" {
			if err := dec.Skip(); err != nil {
				return "", err
			}
			continue
		}
		var kind string
		if err := dec.Decode(&kind); err != nil {
			return "", err
		}
		return kind, nil
	}
	return "", nil
}

// DecodeFrame decodes a msgpack payload and returns either a
// *types.ChunkFrame or a *FlushFrame, discriminated by the kind field.
func DecodeFrame(payload []byte) (any, error) {
	kind, err := probeFrameKind(payload)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode frame kind",
			Err:  err,
		}
	}

	if types.FrameKind(kind) == types.FrameKindFlush {
		var flush FlushFrame
		if err := msgpack.Unmarshal(payload, &flush); err != nil {
			return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode flush frame", Err: err}
		}
		return &flush, nil
	}
	return DecodeChunkFrame(payload)
}

// DecodeChunkFrame decodes a msgpack payload as a ChunkFrame.
func DecodeChunkFrame(payload []byte) (*types.ChunkFrame, error) {
	var frame types.ChunkFrame
	if err := msgpack.Unmarshal(payload, &frame); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode chunk frame",
			Err:  err,
		}
	}
	return &frame, nil
}

// jsonKindProbe peeks at the kind of a JSON frame.
type jsonKindProbe struct {
	Kind types.FrameKind `json:"kind"`
}

// DecodeJSONFrame decodes one JSON object into a *types.ChunkFrame or a
// *FlushFrame. Decoding failures are non-fatal FrameErrors.
func DecodeJSONFrame(data []byte) (any, error) {
	var probe jsonKindProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode json frame", Err: err}
	}

	if probe.Kind == types.FrameKindFlush {
		var flush FlushFrame
		if err := json.Unmarshal(data, &flush); err != nil {
			return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode flush frame", Err: err}
		}
		return &flush, nil
	}

	var frame types.ChunkFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode chunk frame", Err: err}
	}
	return &frame, nil
}
