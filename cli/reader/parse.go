package reader

import (
	"fmt"
	"strings"
)

// InputFormat names a chunk encoding accepted on input.
type InputFormat string

// Supported input formats.
const (
	// InputJSONL is one JSON chunk or flush frame per line.
	InputJSONL InputFormat = "jsonl"
	// InputJSON is a single JSON array of chunks.
	InputJSON InputFormat = "json"
	// InputMsgpack is length-prefixed msgpack frames.
	InputMsgpack InputFormat = "msgpack"
)

// ParseInputFormat parses an input format name. Empty means jsonl.
func ParseInputFormat(s string) (InputFormat, error) {
	switch strings.ToLower(s) {
	case "", "jsonl", "ndjson":
		return InputJSONL, nil
	case "json":
		return InputJSON, nil
	case "msgpack", "frames":
		return InputMsgpack, nil
	default:
		return "", fmt.Errorf("invalid input format: %q (must be jsonl, json, or msgpack)", s)
	}
}
