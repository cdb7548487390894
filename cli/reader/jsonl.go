package reader

import (
	"bufio"
	"bytes"
	"errors"
	"io"

	"github.com/pithecene-io/runnel/ipc"
)

// JSONLSource yields frames from newline-delimited JSON.
//
// Each non-blank line is one chunk or flush frame. Lines that fail to decode
// surface as non-fatal ipc.FrameError values so the ingestion engine can skip
// them; a line longer than ipc.MaxPayloadSize is fatal.
type JSONLSource struct {
	scanner *bufio.Scanner
	line    int
}

// NewJSONLSource creates a source reading from r.
func NewJSONLSource(r io.Reader) *JSONLSource {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), ipc.MaxPayloadSize)
	return &JSONLSource{scanner: s}
}

// Next returns the next decoded frame, or io.EOF at end of input.
func (s *JSONLSource) Next() (any, error) {
	for s.scanner.Scan() {
		s.line++
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		return ipc.DecodeJSONFrame(line)
	}

	err := s.scanner.Err()
	switch {
	case err == nil:
		return nil, io.EOF
	case errors.Is(err, bufio.ErrTooLong):
		return nil, &ipc.FrameError{Kind: ipc.FrameErrorTooLarge, Msg: "jsonl line exceeds maximum frame size", Err: err}
	default:
		return nil, &ipc.FrameError{Kind: ipc.FrameErrorPartial, Msg: "jsonl read failed", Err: err}
	}
}

// Line returns the number of lines consumed so far.
func (s *JSONLSource) Line() int {
	return s.line
}
