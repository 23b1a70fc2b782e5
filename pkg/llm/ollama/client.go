// Package ollama adapts a local Ollama instance to the llm.LLMClient
// contract, for running the fund advisor fully offline.
package ollama

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/ollama/ollama/api"

	"policypilot/pkg/llm"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type OllamaClient struct {
	sdk          *api.Client
	model        string
	options      map[string]any
	debugEnabled bool
}

func (o *OllamaClient) SetDebug(enabled bool) {
	o.debugEnabled = enabled
}

// NewOllamaClient creates a client against baseURL, or from the OLLAMA_HOST
// environment when baseURL is empty.
func NewOllamaClient(model string, baseURL string, options map[string]any) (*OllamaClient, error) {
	// No response header timeout: a cold local model can take minutes to
	// load before the first byte arrives
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 0,
	}
	httpClient := &http.Client{
		Transport: &escapeFixingTransport{next: transport},
		Timeout:   0,
	}

	var sdk *api.Client
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
		sdk = api.NewClient(u, httpClient)
	} else {
		var err error
		sdk, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, err
		}
	}

	slog.Info("Ollama client initialized", "model", model, "base_url", baseURL)

	return &OllamaClient{sdk: sdk, model: model, options: options}, nil
}

func (o *OllamaClient) Provider() string {
	return "ollama"
}

func (o *OllamaClient) IsTransientError(err error) bool {
	return llm.ClassifyTransient(err)
}

func (o *OllamaClient) StreamChat(ctx context.Context, messages []llm.Message, availableTools any) (<-chan llm.StreamChunk, error) {
	out := make(chan llm.StreamChunk, 100)
	ready := make(chan error) // Unbuffered: a missed send means the waiter is gone

	go o.runStream(ctx, messages, availableTools, out, ready)

	select {
	case err := <-ready:
		if err != nil {
			return nil, err
		}
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (o *OllamaClient) runStream(ctx context.Context, messages []llm.Message, availableTools any, out chan<- llm.StreamChunk, ready chan<- error) {
	defer close(out)

	stream := true
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: o.convertMessages(messages),
		Options:  o.options,
		Tools:    o.convertTools(availableTools),
		Stream:   &stream,
	}

	debugger := llm.NewStreamDebugger(ctx, "ollama", o.debugEnabled)
	defer debugger.Close()

	started := false
	chunkIdx := 0
	thoughtsCount := 0

	err := o.sdk.Chat(ctx, req, func(resp api.ChatResponse) error {
		chunkIdx++
		if wire, err := json.Marshal(resp); err == nil {
			debugger.Write(wire)
		}

		// The first callback proves the model loaded; unblock the caller.
		// Skip the send if the waiter already gave up
		if !started {
			started = true
			select {
			case ready <- nil:
			default:
			}
		}

		if resp.Message.Thinking != "" {
			thoughtsCount++
			out <- llm.NewThinkingChunk(resp.Message.Thinking)
		}
		if resp.Message.Content != "" {
			out <- llm.NewTextChunk(resp.Message.Content)
		}
		if calls := convertToolCalls(resp.Message.ToolCalls); len(calls) > 0 {
			out <- llm.StreamChunk{ToolCalls: calls}
		}

		if resp.Done {
			usage := &llm.LLMUsage{
				PromptTokens:     resp.PromptEvalCount,
				CompletionTokens: resp.EvalCount,
				TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
				ThoughtsTokens:   thoughtsCount,
				StopReason:       resp.DoneReason,
			}
			if resp.DoneReason == llm.StopReasonLength {
				// Only logged here; continuation is the handler's job
				slog.Warn("Response truncated due to length", "provider", "ollama")
			}
			out <- llm.NewFinalChunk(resp.DoneReason, usage)
			llm.LogUsage(o.model, usage)
		}
		return nil
	})

	if err != nil {
		slog.Error("Stream error", "provider", "ollama", "model", o.model, "chunks", chunkIdx, "error", err)
		if started {
			out <- llm.NewErrorChunk(fmt.Sprintf("Stream interrupted: %v", err), err, true)
			return
		}
		select {
		case ready <- err:
		default:
			// Waiter timed out; surface the failure in-band instead
			out <- llm.NewErrorChunk(fmt.Sprintf("Error loading model %s: %v", o.model, err), err, true)
		}
		return
	}

	if !started {
		select {
		case ready <- nil:
		default:
		}
	}
}

// convertTools round-trips the registry's function-wrapped declarations
// through JSON into the SDK's typed schema.
func (o *OllamaClient) convertTools(availableTools any) []api.Tool {
	if availableTools == nil {
		return nil
	}
	wire, err := json.Marshal(availableTools)
	if err != nil {
		slog.Error("Failed to marshal tools", "provider", "ollama", "error", err)
		return nil
	}
	var converted []api.Tool
	if err := json.Unmarshal(wire, &converted); err != nil {
		slog.Error("Failed to unmarshal to api.Tool", "provider", "ollama", "error", err)
		return nil
	}
	return converted
}

func convertToolCalls(calls []api.ToolCall) []llm.ToolCall {
	var converted []llm.ToolCall
	for _, tc := range calls {
		args, err := json.Marshal(tc.Function.Arguments)
		if err != nil {
			slog.Warn("Failed to marshal tool call arguments", "provider", "ollama", "error", err)
			args = []byte("{}")
		}
		converted = append(converted, llm.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Function: llm.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: string(args),
			},
		})
		slog.Debug("Tool call", "provider", "ollama", "name", tc.Function.Name, "id", tc.ID)
	}
	return converted
}

// convertMessages flattens content blocks into Ollama's single-string
// message format, thinking text first.
func (o *OllamaClient) convertMessages(messages []llm.Message) []api.Message {
	var converted []api.Message

	for _, m := range messages {
		text := m.GetTextContent()
		thinking := m.GetThinkingContent()

		combined := thinking + text
		if thinking != "" && text != "" {
			combined = thinking + "\n" + text
		}

		msg := api.Message{Role: m.Role, Content: combined}

		if m.Role == "assistant" && len(m.ToolCalls) > 0 {
			for _, tc := range m.ToolCalls {
				var args api.ToolCallFunctionArguments
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
					slog.Warn("Failed to unmarshal tool arguments for history", "provider", "ollama", "error", err)
				}
				msg.ToolCalls = append(msg.ToolCalls, api.ToolCall{
					ID: tc.ID,
					Function: api.ToolCallFunction{
						Name:      tc.Function.Name,
						Arguments: args,
					},
				})
			}
		}
		if m.Role == "tool" {
			msg.ToolCallID = m.ToolCallID
		}

		converted = append(converted, msg)
	}

	return converted
}

// escapeFixingTransport repairs illegal JSON escapes in the response body.
// Some local models emit sequences like \$ inside JSON strings, which
// breaks decoding of the NDJSON stream.
type escapeFixingTransport struct {
	next http.RoundTripper
}

func (t *escapeFixingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	ct := resp.Header.Get("Content-Type")
	if strings.Contains(ct, "application/json") || strings.Contains(ct, "application/x-ndjson") {
		resp.Body = &escapeFixingBody{body: resp.Body}
	}
	return resp, nil
}

var illegalEscapeRegex = regexp.MustCompile(`\\([^\/\\bfnrtu"])`)

type escapeFixingBody struct {
	body io.ReadCloser
}

func (b *escapeFixingBody) Read(p []byte) (n int, err error) {
	n, err = b.body.Read(p)
	if n > 0 {
		// Dropping the backslash only ever shortens the buffer, so the
		// rewrite can happen in place
		fixed := illegalEscapeRegex.ReplaceAllString(string(p[:n]), "$1")
		if len(fixed) < n {
			copy(p, fixed)
			n = len(fixed)
		}
	}
	return n, err
}

func (b *escapeFixingBody) Close() error {
	return b.body.Close()
}
