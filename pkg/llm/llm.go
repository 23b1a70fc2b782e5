package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// json handles all JSON in package llm through json-iterator.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LLMUsage defines the provider-agnostic token accounting structure.
// The detail fields carry a per-modality breakdown for providers that
// report one (Gemini); others leave them empty.
type LLMUsage struct {
	PromptTokens     int    `json:"prompt_tokens"`
	PromptDetail     string `json:"prompt_detail,omitempty"`
	CompletionTokens int    `json:"completion_tokens"`
	CompletionDetail string `json:"completion_detail,omitempty"`
	TotalTokens      int    `json:"total_tokens"`
	ThoughtsTokens   int    `json:"thoughts_tokens,omitempty"`
	CachedTokens     int    `json:"cached_tokens,omitempty"`
	StopReason       string `json:"stop_reason,omitempty"`
}

// LogUsage emits a uniform usage summary after each completed stream.
func LogUsage(model string, usage *LLMUsage) {
	if usage == nil {
		return
	}
	args := []any{
		"model", model,
		"prompt", usage.PromptTokens,
		"completion", usage.CompletionTokens,
		"total", usage.TotalTokens,
		"thoughts", usage.ThoughtsTokens,
		"cached", usage.CachedTokens,
		"stop_reason", usage.StopReason,
	}
	if usage.PromptDetail != "" {
		args = append(args, "prompt_detail", usage.PromptDetail)
	}
	if usage.CompletionDetail != "" {
		args = append(args, "completion_detail", usage.CompletionDetail)
	}
	slog.Info("📊 Usage", args...)
}

// LLMClient is the provider-agnostic client interface.
type LLMClient interface {
	// StreamChat starts a streaming conversation turn. availableTools is a
	// provider-formatted tool list (see tools.ToolRegistry converters) or
	// nil for a plain chat turn. The returned channel delivers incremental
	// chunks and is closed after the final chunk.
	StreamChat(ctx context.Context, messages []Message, availableTools any) (<-chan StreamChunk, error)

	// IsTransientError reports whether err is worth retrying (503, rate
	// limits, timeouts) as opposed to a permanent failure (bad request,
	// auth).
	IsTransientError(err error) bool

	// Provider returns the provider family name ("gemini", "openai",
	// "ollama") used to pick the tool declaration format.
	Provider() string

	// SetDebug toggles raw chunk capture for this client.
	SetDebug(enabled bool)
}

// FallbackClient chains multiple clients: each is retried on transient
// errors, then the next provider takes over. The fund advisor keeps
// answering even when the primary model has a bad day.
type FallbackClient struct {
	Clients    []LLMClient
	MaxRetries int
	RetryDelay time.Duration
}

func (f *FallbackClient) StreamChat(ctx context.Context, messages []Message, availableTools any) (<-chan StreamChunk, error) {
	var lastErr error
	for i, client := range f.Clients {
		if i > 0 {
			slog.Warn("⚠️ Previous provider failed, trying fallback", "provider_index", i+1)
		}

		maxRetries := f.MaxRetries
		if maxRetries <= 0 {
			maxRetries = 1
		}

		for retry := 1; retry <= maxRetries; retry++ {
			if retry > 1 {
				slog.Info("🔄 Retrying provider", "provider_index", i+1, "attempt", fmt.Sprintf("%d/%d", retry, maxRetries))
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(time.Duration(retry-1) * f.RetryDelay):
				}
			}

			ch, err := client.StreamChat(ctx, messages, availableTools)
			if err == nil {
				return ch, nil
			}

			lastErr = err

			if client.IsTransientError(err) && retry < maxRetries {
				slog.Warn("❌ Provider failed with transient error, retrying", "provider_index", i+1, "error", err)
				continue
			}

			slog.Error("❌ Provider failed", "provider_index", i+1, "error", err)
			break
		}
	}
	return nil, fmt.Errorf("all fallback providers failed, last error: %w", lastErr)
}

// IsTransientError implements LLMClient. A FallbackClient error means every
// child already exhausted its retries, so it is reported as permanent.
func (f *FallbackClient) IsTransientError(err error) bool {
	return false
}

// Provider returns the provider name of the first child, which decides the
// tool declaration format for the whole chain.
func (f *FallbackClient) Provider() string {
	if len(f.Clients) > 0 {
		return f.Clients[0].Provider()
	}
	return ""
}

// SetDebug propagates the debug toggle to every child client.
func (f *FallbackClient) SetDebug(enabled bool) {
	for _, c := range f.Clients {
		c.SetDebug(enabled)
	}
}

// ClassifyTransient is the shared string-level heuristic used by providers
// whose SDK does not expose typed errors for transport failures. Providers
// extend it with their own API-specific checks.
func ClassifyTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())

	// Network-level issues
	if strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") {
		return true
	}

	// Server-side temporary failures
	if strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "500 internal") ||
		strings.Contains(msg, "502 bad gateway") ||
		strings.Contains(msg, "503 service unavailable") ||
		strings.Contains(msg, "overloaded") {
		return true
	}

	// Everything else (400 Bad Request, 401 Unauthorized, ...) is permanent
	return false
}
