package consolidate

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultMaxMergeBytes is the cap on a merged text chunk (50 KiB).
const DefaultMaxMergeBytes = 50 * 1024

// ErrInvalidUnsequenced is returned for an unknown unsequenced ordering name.
var ErrInvalidUnsequenced = errors.New("invalid unsequenced ordering")

// UnsequencedOrder selects where chunks without a sequence sort.
type UnsequencedOrder int

const (
	// UnsequencedLast sorts unsequenced chunks after every sequenced chunk,
	// keeping their relative arrival order.
	UnsequencedLast UnsequencedOrder = iota
	// UnsequencedAsZero sorts unsequenced chunks as if their sequence were 0,
	// tying with an explicit sequence 0.
	UnsequencedAsZero
)

// String returns the config name of the ordering.
func (o UnsequencedOrder) String() string {
	switch o {
	case UnsequencedLast:
		return "last"
	case UnsequencedAsZero:
		return "zero"
	default:
		return fmt.Sprintf("unsequenced(%d)", int(o))
	}
}

// ParseUnsequencedOrder parses "last" or "zero". Empty means "last".
func ParseUnsequencedOrder(s string) (UnsequencedOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "last":
		return UnsequencedLast, nil
	case "zero":
		return UnsequencedAsZero, nil
	default:
		return 0, fmt.Errorf("%w: %q (must be last or zero)", ErrInvalidUnsequenced, s)
	}
}

// Config holds consolidation settings. The zero value is usable and behaves
// like DefaultConfig.
type Config struct {
	// MaxMergeBytes caps the byte length of a merged text chunk.
	// Zero or negative means DefaultMaxMergeBytes.
	MaxMergeBytes int
	// Unsequenced selects the sort position of chunks without a sequence.
	Unsequenced UnsequencedOrder
}

// DefaultConfig returns the default consolidation config.
func DefaultConfig() Config {
	return Config{
		MaxMergeBytes: DefaultMaxMergeBytes,
		Unsequenced:   UnsequencedLast,
	}
}

func (c Config) mergeCap() int {
	if c.MaxMergeBytes <= 0 {
		return DefaultMaxMergeBytes
	}
	return c.MaxMergeBytes
}
