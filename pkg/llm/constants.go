package llm

// StopReason constants define normalized reasons for LLM generation
// termination. All providers must normalize their native stop reasons to
// these values.
const (
	StopReasonStop   = "stop"   // Normal completion
	StopReasonLength = "length" // Output truncated due to token limit
)

// ContentBlock type constants define the supported content block formats
// used throughout the message pipeline. PolicyPilot is text-only: fund
// lists come in as pasted text and blueprints go out as markdown.
const (
	BlockTypeText     = "text"     // Plain text content
	BlockTypeThinking = "thinking" // Internal reasoning/chain-of-thought
	BlockTypeError    = "error"    // Error message displayed to user
)

// contextKey is a private type for context values set by this package.
type contextKey string

// DebugDirContextKey carries the per-request debug directory identifier so
// stream debuggers from one agent loop land in the same folder.
const DebugDirContextKey contextKey = "llm_debug_dir"
