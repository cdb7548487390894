// Package types defines the chunk, block and frame types shared by the relay.
//
//nolint:revive // types is a common Go package naming convention
package types

// BlockType is the wire discriminator of a block ("type" field).
type BlockType string

// Known block types. Any other value decodes to an OpaqueBlock.
const (
	BlockTypeText       BlockType = "text"
	BlockTypeToolUse    BlockType = "tool_use"
	BlockTypeToolResult BlockType = "tool_result"
	BlockTypeSystem     BlockType = "system"
)

// Block is the tagged payload of a chunk.
//
// The set of implementations is closed: TextBlock, ToolUseBlock,
// ToolResultBlock, SystemBlock and OpaqueBlock. Consumers dispatch with a type
// switch on the concrete type; Type only reports the wire discriminator and
// is not enough to tell a well-formed text block from a malformed one.
type Block interface {
	// Type returns the wire discriminator.
	Type() BlockType
	isBlock()
}

// TextBlock is a fragment of assistant text.
type TextBlock struct {
	Text string
	// Extra holds unrecognized wire fields, preserved on re-encode.
	Extra map[string]any
}

// ToolUseBlock is a tool invocation. ID correlates tool results.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input any
	Extra map[string]any
}

// ToolResultBlock is the result of a tool invocation, referencing
// ToolUseBlock.ID through ToolUseID. An empty ToolUseID never matches.
type ToolResultBlock struct {
	ToolUseID string
	Content   any
	IsError   bool
	Extra     map[string]any
}

// SystemBlock is a status banner. Only the latest one per session matters.
type SystemBlock struct {
	Text  string
	Extra map[string]any
}

// OpaqueBlock carries any block the relay does not recognize, including
// known kinds whose required fields are malformed (for example a "text"
// block whose text is not a string). Fields is the raw wire object.
type OpaqueBlock struct {
	Kind   string
	Fields map[string]any
}

// Type implements Block.
func (TextBlock) Type() BlockType { return BlockTypeText }

// Type implements Block.
func (ToolUseBlock) Type() BlockType { return BlockTypeToolUse }

// Type implements Block.
func (ToolResultBlock) Type() BlockType { return BlockTypeToolResult }

// Type implements Block.
func (SystemBlock) Type() BlockType { return BlockTypeSystem }

// Type implements Block.
func (b OpaqueBlock) Type() BlockType { return BlockType(b.Kind) }

func (TextBlock) isBlock()       {}
func (ToolUseBlock) isBlock()    {}
func (ToolResultBlock) isBlock() {}
func (SystemBlock) isBlock()     {}
func (OpaqueBlock) isBlock()     {}

// DecodeBlock converts a wire block object into a Block.
// Returns nil for a nil object. Never fails: anything that does not fit a
// known variant becomes an OpaqueBlock.
func DecodeBlock(m map[string]any) Block {
	if m == nil {
		return nil
	}
	kind, _ := m["type"].(string)

	switch BlockType(kind) {
	case BlockTypeText:
		text, ok := m["text"].(string)
		if !ok {
			return opaque(kind, m)
		}
		return TextBlock{Text: text, Extra: extraFields(m, "type", "text")}

	case BlockTypeToolUse:
		id, ok := optionalString(m, "id")
		if !ok {
			return opaque(kind, m)
		}
		name, _ := m["name"].(string)
		return ToolUseBlock{
			ID:    id,
			Name:  name,
			Input: m["input"],
			Extra: extraFields(m, "type", "id", "name", "input"),
		}

	case BlockTypeToolResult:
		ref, ok := optionalString(m, "tool_use_id")
		if !ok {
			return opaque(kind, m)
		}
		isErr, _ := m["is_error"].(bool)
		return ToolResultBlock{
			ToolUseID: ref,
			Content:   m["content"],
			IsError:   isErr,
			Extra:     extraFields(m, "type", "tool_use_id", "content", "is_error"),
		}

	case BlockTypeSystem:
		if text, ok := m["text"].(string); ok {
			return SystemBlock{Text: text, Extra: extraFields(m, "type", "text")}
		}
		return SystemBlock{Extra: extraFields(m, "type")}

	default:
		return opaque(kind, m)
	}
}

// EncodeBlock converts a Block back into its wire object.
// Returns nil for a nil block.
func EncodeBlock(b Block) map[string]any {
	switch v := b.(type) {
	case TextBlock:
		m := withExtra(v.Extra, 2)
		m["type"] = string(BlockTypeText)
		m["text"] = v.Text
		return m
	case ToolUseBlock:
		m := withExtra(v.Extra, 4)
		m["type"] = string(BlockTypeToolUse)
		m["id"] = v.ID
		if v.Name != "" {
			m["name"] = v.Name
		}
		if v.Input != nil {
			m["input"] = v.Input
		}
		return m
	case ToolResultBlock:
		m := withExtra(v.Extra, 4)
		m["type"] = string(BlockTypeToolResult)
		m["tool_use_id"] = v.ToolUseID
		if v.Content != nil {
			m["content"] = v.Content
		}
		if v.IsError {
			m["is_error"] = true
		}
		return m
	case SystemBlock:
		m := withExtra(v.Extra, 2)
		m["type"] = string(BlockTypeSystem)
		if v.Text != "" {
			m["text"] = v.Text
		}
		return m
	case OpaqueBlock:
		return withExtra(v.Fields, 0)
	default:
		return nil
	}
}

func opaque(kind string, m map[string]any) OpaqueBlock {
	return OpaqueBlock{Kind: kind, Fields: withExtra(m, 0)}
}

// optionalString reads a string field that may be absent.
// ok is false only when the field is present with a non-string value.
func optionalString(m map[string]any, key string) (string, bool) {
	raw, present := m[key]
	if !present || raw == nil {
		return "", true
	}
	s, ok := raw.(string)
	return s, ok
}

// extraFields copies m without the named keys. Returns nil when nothing is left.
func extraFields(m map[string]any, known ...string) map[string]any {
	var out map[string]any
	for k, v := range m {
		skip := false
		for _, name := range known {
			if k == name {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		if out == nil {
			out = make(map[string]any)
		}
		out[k] = v
	}
	return out
}

// withExtra returns a shallow copy of m with room for n more keys.
func withExtra(m map[string]any, n int) map[string]any {
	out := make(map[string]any, len(m)+n)
	for k, v := range m {
		out[k] = v
	}
	return out
}
