// Package message defines the canonical, wire-agnostic conversation model
// shared by every provider adapter and the orchestrator.
package message

import "fmt"

// Role tags a Message as originating from the user or the model. System
// prompts are carried out-of-band as a plain string, never as a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType tags the variant held by a Block.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// Block is a tagged union over the three content variants a Message can
// carry. Only the fields matching Type are meaningful; this mirrors the
// sum-type-over-inheritance guidance for content blocks and stream events.
type Block struct {
	Type BlockType `json:"type"`

	// BlockText
	Text string `json:"text,omitempty"`

	// BlockToolUse
	ToolUseID   string         `json:"tool_use_id,omitempty"`
	ToolName    string         `json:"tool_name,omitempty"`
	ToolInput   map[string]any `json:"tool_input,omitempty"`

	// BlockToolResult
	ResultForID string `json:"result_for_id,omitempty"`
	Content     string `json:"content,omitempty"`
	IsError     bool   `json:"is_error,omitempty"`
}

// NewText builds a Block{Type: BlockText}.
func NewText(text string) Block {
	return Block{Type: BlockText, Text: text}
}

// NewToolUse builds a Block{Type: BlockToolUse}. id is provider-issued and
// opaque; it is unique within the turn that produced it.
func NewToolUse(id, name string, input map[string]any) Block {
	return Block{Type: BlockToolUse, ToolUseID: id, ToolName: name, ToolInput: input}
}

// NewToolResult builds a Block{Type: BlockToolResult}. toolUseID must match
// exactly one ToolUse.ToolUseID earlier in the dialog.
func NewToolResult(toolUseID, toolName, content string, isError bool) Block {
	return Block{Type: BlockToolResult, ResultForID: toolUseID, ToolName: toolName, Content: content, IsError: isError}
}

// Message is a role-tagged, ordered list of content blocks.
type Message struct {
	Role    Role    `json:"role"`
	Content []Block `json:"content"`
}

// NewUserText returns a single-block User message.
func NewUserText(text string) Message {
	return Message{Role: RoleUser, Content: []Block{NewText(text)}}
}

// NewAssistantText returns a single-block Assistant message.
func NewAssistantText(text string) Message {
	return Message{Role: RoleAssistant, Content: []Block{NewText(text)}}
}

// AppendText appends a text block, preserving existing block order.
func (m *Message) AppendText(text string) {
	m.Content = append(m.Content, NewText(text))
}

// AppendToolUse appends a tool-use block.
func (m *Message) AppendToolUse(id, name string, input map[string]any) {
	m.Content = append(m.Content, NewToolUse(id, name, input))
}

// AppendToolResult appends a tool-result block.
func (m *Message) AppendToolResult(toolUseID, toolName, content string, isError bool) {
	m.Content = append(m.Content, NewToolResult(toolUseID, toolName, content, isError))
}

// Text concatenates every text block's content, in order, separated by
// nothing (mirrors how a single-text-block message collapses to a bare
// string in wire form).
func (m Message) Text() string {
	if len(m.Content) == 1 && m.Content[0].Type == BlockText {
		return m.Content[0].Text
	}
	out := ""
	for _, b := range m.Content {
		if b.Type == BlockText {
			out += b.Text
		}
	}
	return out
}

// ToolUses returns every ToolUse block in the message, in order.
func (m Message) ToolUses() []Block {
	var out []Block
	for _, b := range m.Content {
		if b.Type == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// ToolResultFor returns the ToolResult block matching toolUseID, if present.
func (m Message) ToolResultFor(toolUseID string) (Block, bool) {
	for _, b := range m.Content {
		if b.Type == BlockToolResult && b.ResultForID == toolUseID {
			return b, true
		}
	}
	return Block{}, false
}

// Usage is per-turn (and, aggregated, per-session) token accounting.
// "Total" reports input+output only; cache counters are tracked separately.
type Usage struct {
	InputTokens     int `json:"input_tokens"`
	OutputTokens    int `json:"output_tokens"`
	CacheReadTokens int `json:"cache_read_tokens"`
	CacheWriteTokens int `json:"cache_write_tokens"`
}

// Add accumulates u2 into u, field by field.
func (u *Usage) Add(u2 Usage) {
	u.InputTokens += u2.InputTokens
	u.OutputTokens += u2.OutputTokens
	u.CacheReadTokens += u2.CacheReadTokens
	u.CacheWriteTokens += u2.CacheWriteTokens
}

// Total is input+output tokens only.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// ValidateToolTurnPairing checks invariant 1 of the data model: every
// ToolUse block in assistantMsg must have exactly one matching ToolResult
// block in userMsg.
func ValidateToolTurnPairing(assistantMsg, userMsg Message) error {
	for _, use := range assistantMsg.ToolUses() {
		result, ok := userMsg.ToolResultFor(use.ToolUseID)
		if !ok {
			return fmt.Errorf("message: tool_use %q has no matching tool_result", use.ToolUseID)
		}
		_ = result
	}
	return nil
}
