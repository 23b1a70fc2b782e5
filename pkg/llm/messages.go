package llm

import (
	"time"

	"github.com/google/uuid"
)

//----------------------------------------------------------------
// Message - unified conversation message
//----------------------------------------------------------------

// Message represents one conversation turn.
type Message struct {
	ID        string         `json:"id,omitempty"`
	Role      string         `json:"role"`    // "user", "assistant", "system", "tool"
	Content   []ContentBlock `json:"content"` // Ordered content blocks
	Timestamp int64          `json:"timestamp,omitempty"`

	// ToolCalls holds tool invocation requests produced by the model
	// (only meaningful on role: assistant).
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool-result message back to the originating call
	// (only meaningful on role: tool).
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolName names the tool that produced a tool-result message; Gemini
	// routes function responses by name rather than call ID.
	ToolName string `json:"tool_name,omitempty"`

	// Usage carries token accounting, present on final assistant messages.
	Usage *LLMUsage `json:"usage,omitempty"`
}

// ToolCall represents a tool invocation request produced by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Function FunctionCall `json:"function"`

	// Meta holds provider-specific metadata (e.g. Gemini thought
	// signatures). Internal only, never serialized.
	Meta map[string]any `json:"-"`
}

// FunctionCall carries the concrete tool name and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

//----------------------------------------------------------------
// ContentBlock - unified content unit
//----------------------------------------------------------------

// ContentBlock is one unit of message content: text, thinking or error.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

//----------------------------------------------------------------
// StreamChunk - incremental streaming unit
//----------------------------------------------------------------

// StreamChunk represents one incremental fragment of a streamed LLM reply.
type StreamChunk struct {
	// ContentBlocks holds only the newly produced content.
	ContentBlocks []ContentBlock `json:"content_blocks,omitempty"`

	// ToolCalls holds newly detected tool invocations.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Error is a user-facing error description for a recoverable fault
	// inside the stream; RawError keeps the underlying error for
	// transient/permanent classification.
	Error    string `json:"error,omitempty"`
	RawError error  `json:"-"`

	// IsFinal marks the last chunk of the stream.
	IsFinal bool `json:"is_final"`

	// FinishReason is set on the final chunk only.
	FinishReason string `json:"finish_reason,omitempty"`

	// Usage may appear mid-stream but is guaranteed on the final chunk.
	Usage *LLMUsage `json:"usage,omitempty"`
}

//----------------------------------------------------------------
// Helper functions - Message
//----------------------------------------------------------------

// NewTextMessage builds a plain text message for the given role.
func NewTextMessage(role, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   []ContentBlock{{Type: BlockTypeText, Text: text}},
		Timestamp: time.Now().Unix(),
	}
}

// NewSystemMessage builds a system message.
func NewSystemMessage(text string) Message {
	return NewTextMessage("system", text)
}

// NewUserMessage builds a user message.
func NewUserMessage(text string) Message {
	return NewTextMessage("user", text)
}

// NewAssistantMessage builds an assistant message.
func NewAssistantMessage(text string) Message {
	return NewTextMessage("assistant", text)
}

// AddContentBlock appends a content block to the message.
func (m *Message) AddContentBlock(block ContentBlock) {
	m.Content = append(m.Content, block)
}

// GetTextContent concatenates all text blocks (thinking excluded).
func (m *Message) GetTextContent() string {
	var result string
	for _, block := range m.Content {
		if block.Type == BlockTypeText {
			result += block.Text
		}
	}
	return result
}

// GetThinkingContent concatenates all thinking blocks.
func (m *Message) GetThinkingContent() string {
	var result string
	for _, block := range m.Content {
		if block.Type == BlockTypeThinking {
			result += block.Text
		}
	}
	return result
}

//----------------------------------------------------------------
// Helper functions - ContentBlock
//----------------------------------------------------------------

// NewTextBlock builds a text block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockTypeText, Text: text}
}

// NewThinkingBlock builds a thinking block.
func NewThinkingBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockTypeThinking, Text: text}
}

// NewErrorBlock builds an error block shown to the user.
func NewErrorBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockTypeError, Text: text}
}

//----------------------------------------------------------------
// Helper functions - StreamChunk
//----------------------------------------------------------------

// NewTextChunk builds a chunk carrying one text fragment.
func NewTextChunk(text string) StreamChunk {
	return StreamChunk{ContentBlocks: []ContentBlock{{Type: BlockTypeText, Text: text}}}
}

// NewThinkingChunk builds a chunk carrying one thinking fragment.
func NewThinkingChunk(text string) StreamChunk {
	return StreamChunk{ContentBlocks: []ContentBlock{{Type: BlockTypeThinking, Text: text}}}
}

// NewErrorChunk builds an error chunk. rawErr keeps the original error for
// transient classification; isFinal terminates the stream.
func NewErrorChunk(message string, rawErr error, isFinal bool) StreamChunk {
	return StreamChunk{
		Error:    message,
		RawError: rawErr,
		IsFinal:  isFinal,
	}
}

// NewFinalChunk builds the terminating chunk with usage statistics.
func NewFinalChunk(reason string, usage *LLMUsage) StreamChunk {
	return StreamChunk{
		IsFinal:      true,
		FinishReason: reason,
		Usage:        usage,
	}
}
