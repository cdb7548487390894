package ipc

import "io"

// FrameSource yields decoded frames from a length-prefixed msgpack stream.
// Next returns *types.ChunkFrame or *FlushFrame, and io.EOF at clean end.
type FrameSource struct {
	decoder *FrameDecoder
}

// NewFrameSource creates a frame source reading from r.
func NewFrameSource(r io.Reader) *FrameSource {
	return &FrameSource{decoder: NewFrameDecoder(r)}
}

// Next reads and decodes the next frame.
func (s *FrameSource) Next() (any, error) {
	payload, err := s.decoder.ReadFrame()
	if err != nil {
		return nil, err
	}
	return DecodeFrame(payload)
}
