package api

import (
	"context"
)

// Tool defines the structural interface for any capability the advisory
// agent can execute. It includes metadata for prompt injection (JSON
// Schema) and the execution logic itself.
type Tool interface {
	// Name returns the unique tool identifier exposed to the model.
	Name() string
	// Description returns the natural-language description injected into
	// the tool schema.
	Description() string
	// Parameters returns the JSON Schema of the argument object.
	Parameters() map[string]any
	// Execute performs the actual tool logic using the provided argument map.
	Execute(ctx context.Context, args map[string]any) (*ToolResult, error)
}

// ToolResult encapsulates the outcome of a tool execution. It can contain
// multiple content blocks and arbitrary metadata for the handler to process.
type ToolResult struct {
	Content []ContentBlock `json:"content"`           // Ordered blocks of result data
	Details map[string]any `json:"details,omitempty"` // Arbitrary technical metadata
}

// ContentBlock is an atomic data unit within a ToolResult.
// The handler converts these into llm.ContentBlocks.
type ContentBlock struct {
	Type string `json:"type"` // Data format, currently always "text"
	Text string `json:"text,omitempty"`
}

// NewTextResult wraps a single text payload in a ToolResult.
func NewTextResult(text string) *ToolResult {
	return &ToolResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

// ToolRegistry defines the interface for managing and accessing tools,
// including the provider-specific schema exports consumed by StreamChat.
type ToolRegistry interface {
	Register(tool Tool)
	Unregister(name string)
	Get(name string) (Tool, bool)
	GetAll() []Tool
	// ToGeminiFormat exports flat declarations for the GenAI SDK.
	ToGeminiFormat() []map[string]any
	// ToOllamaFormat exports OpenAI-style function wrappers, shared by the
	// Ollama and OpenAI providers.
	ToOllamaFormat() []map[string]any
}
