package types

// RelayMeta identifies one relay process: every log line, published update
// and stored record carries it.
type RelayMeta struct {
	// RelayID is unique per relay invocation (UUIDv7).
	RelayID string
	// Source names the upstream producer, e.g. "claude" or "stdin".
	Source string
}
