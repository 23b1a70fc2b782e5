// Package openailm adapts the official OpenAI Go SDK to the llm.LLMClient
// contract. It speaks the Responses API, so the same client also covers
// OpenAI-compatible endpoints reached through base_url.
package openailm

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	jsoniter "github.com/json-iterator/go"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"

	"policypilot/pkg/llm"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Client struct {
	sdk          *openai.Client
	provider     string
	model        string
	debugEnabled bool
	options      map[string]any
}

func NewClient(provider, apiKey, model, baseURL string, options map[string]any) (*Client, error) {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	sdk := openai.NewClient(opts...)
	return &Client{
		sdk:      &sdk,
		provider: provider,
		model:    model,
		options:  options,
	}, nil
}

func (c *Client) Provider() string {
	return c.provider
}

func (c *Client) SetDebug(enabled bool) {
	c.debugEnabled = enabled
}

func (c *Client) IsTransientError(err error) bool {
	return llm.ClassifyTransient(err)
}

// requestParams maps the unified option names onto Responses API fields.
// Unknown options are ignored so one config block can serve all providers.
func (c *Client) requestParams(input []responses.ResponseInputItemUnionParam, availableTools any) (responses.ResponseNewParams, []option.RequestOption) {
	params := responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: input},
	}

	if effortStr, ok := c.options["thinking_effort"].(string); ok && effortStr != "" && effortStr != "off" {
		effort := shared.ReasoningEffortMedium
		switch effortStr {
		case "low":
			effort = shared.ReasoningEffortLow
		case "high":
			effort = shared.ReasoningEffortHigh
		}
		params.Reasoning = shared.ReasoningParam{Effort: effort}
	}

	var reqOpts []option.RequestOption
	if t, ok := c.options["temperature"].(float64); ok {
		reqOpts = append(reqOpts, option.WithJSONSet("temperature", t))
	}
	if p, ok := c.options["top_p"].(float64); ok {
		reqOpts = append(reqOpts, option.WithJSONSet("top_p", p))
	}
	if maxTok, ok := c.options["max_tokens"].(float64); ok {
		reqOpts = append(reqOpts, option.WithJSONSet("max_completion_tokens", int(maxTok)))
	}

	if tools := c.convertTools(availableTools); len(tools) > 0 {
		params.Tools = tools
	}

	return params, reqOpts
}

func (c *Client) StreamChat(ctx context.Context, messages []llm.Message, availableTools any) (<-chan llm.StreamChunk, error) {
	out := make(chan llm.StreamChunk, 100)
	params, reqOpts := c.requestParams(c.convertMessages(messages), availableTools)

	slog.Info("🌊 Streaming", "provider", c.provider, "model", c.model)

	go func() {
		defer close(out)

		stream := c.sdk.Responses.NewStreaming(ctx, params, reqOpts...)
		defer stream.Close()

		debugger := llm.NewStreamDebugger(ctx, c.provider, c.debugEnabled)
		defer debugger.Close()

		acc := &streamState{pendingCalls: make(map[string]*llm.ToolCall)}

		for stream.Next() {
			event := stream.Current()

			raw := rawEventJSON(event)
			if raw != "" {
				debugger.WriteString(raw)
				// Some compatible backends (DeepSeek and friends) put the
				// reasoning stream into nonstandard top-level fields
				if thought := legacyThinking(raw); thought != "" {
					acc.thoughts.WriteString(thought)
					out <- llm.NewThinkingChunk(thought)
				}
			}

			acc.apply(event, out)
		}

		if t := strings.TrimSpace(acc.thoughts.String()); t != "" {
			slog.Debug("Captured full thinking process", "provider", c.provider, "content", t)
		}

		// Tool calls are assembled across many delta events; release them
		// only once the stream has settled
		if calls := acc.collectedCalls(); len(calls) > 0 {
			out <- llm.StreamChunk{ToolCalls: calls}
		}

		if err := stream.Err(); err != nil {
			out <- llm.NewErrorChunk(fmt.Sprintf("Stream error: %v", err), err, true)
			return
		}

		out <- llm.NewFinalChunk(acc.stopReason(), acc.usage)
		if acc.usage != nil {
			llm.LogUsage(c.model, acc.usage)
		}
	}()

	return out, nil
}

// streamState accumulates partial tool calls, usage and the finish reason
// while Responses API events arrive.
type streamState struct {
	pendingCalls map[string]*llm.ToolCall
	usage        *llm.LLMUsage
	finish       string
	thoughts     strings.Builder
}

func (s *streamState) apply(event responses.ResponseStreamEventUnion, out chan<- llm.StreamChunk) {
	switch variant := event.AsAny().(type) {
	case responses.ResponseTextDeltaEvent:
		out <- llm.NewTextChunk(variant.Delta)

	case responses.ResponseReasoningTextDeltaEvent:
		s.thoughts.WriteString(variant.Delta)
		out <- llm.NewThinkingChunk(variant.Delta)

	case responses.ResponseReasoningSummaryTextDeltaEvent:
		s.thoughts.WriteString(variant.Delta)
		out <- llm.NewThinkingChunk(variant.Delta)

	case responses.ResponseFunctionCallArgumentsDeltaEvent:
		s.call(variant.ItemID).Function.Arguments += variant.Delta

	case responses.ResponseFunctionCallArgumentsDoneEvent:
		s.nameCall(variant.ItemID, variant.Name)

	case responses.ResponseOutputItemAddedEvent:
		if variant.Item.Type == "function_call" {
			s.call(variant.Item.ID)
			s.nameCall(variant.Item.ID, variant.Item.Name)
		}

	case responses.ResponseOutputItemDoneEvent:
		// The name sometimes only arrives with the closing item event
		if variant.Item.Type == "function_call" {
			s.nameCall(variant.Item.ID, variant.Item.Name)
		}

	case responses.ResponseCompletedEvent:
		s.finish = llm.StopReasonStop
		if variant.Response.Usage.TotalTokens > 0 {
			s.usage = &llm.LLMUsage{
				PromptTokens:     int(variant.Response.Usage.InputTokens),
				CompletionTokens: int(variant.Response.Usage.OutputTokens),
				TotalTokens:      int(variant.Response.Usage.TotalTokens),
				StopReason:       llm.StopReasonStop,
			}
		}

	case responses.ResponseFailedEvent:
		s.finish = "failed"
		out <- llm.NewErrorChunk("API Response Failed", nil, true)

	case responses.ResponseIncompleteEvent:
		s.finish = llm.StopReasonLength
		out <- llm.NewErrorChunk("API Response Incomplete", nil, true)

	case responses.ResponseErrorEvent:
		out <- llm.NewErrorChunk(fmt.Sprintf("API Error: %s", variant.Message), nil, true)
	}
}

func (s *streamState) call(id string) *llm.ToolCall {
	tc, ok := s.pendingCalls[id]
	if !ok {
		tc = &llm.ToolCall{ID: id}
		s.pendingCalls[id] = tc
	}
	return tc
}

func (s *streamState) nameCall(id, name string) {
	if name == "" {
		return
	}
	tc := s.call(id)
	tc.Name = name
	tc.Function.Name = name
}

func (s *streamState) collectedCalls() []llm.ToolCall {
	if len(s.pendingCalls) == 0 {
		return nil
	}
	calls := make([]llm.ToolCall, 0, len(s.pendingCalls))
	for _, tc := range s.pendingCalls {
		calls = append(calls, *tc)
	}
	return calls
}

func (s *streamState) stopReason() string {
	switch strings.ToLower(s.finish) {
	case "", "stop":
		return llm.StopReasonStop
	case "length":
		return llm.StopReasonLength
	default:
		return s.finish
	}
}

// rawEventJSON reads the unexported 'raw' string out of event.JSON via
// reflection. The SDK keeps the wire payload private, but the debugger and
// the legacy thinking fallback both need it.
func rawEventJSON(event responses.ResponseStreamEventUnion) string {
	rv := reflect.ValueOf(event.JSON)
	if rv.Kind() != reflect.Struct {
		return ""
	}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		if rt.Field(i).Name == "raw" {
			return rv.Field(i).String()
		}
	}
	return ""
}

// legacyThinking extracts reasoning text from nonstandard top-level fields.
func legacyThinking(raw string) string {
	var probe struct {
		Reasoning        string `json:"reasoning"`
		Thinking         string `json:"thinking"`
		ReasoningContent string `json:"reasoning_content"`
	}
	if json.Unmarshal([]byte(raw), &probe) != nil {
		return ""
	}
	if probe.Reasoning != "" {
		return probe.Reasoning
	}
	if probe.Thinking != "" {
		return probe.Thinking
	}
	return probe.ReasoningContent
}

func (c *Client) convertMessages(messages []llm.Message) []responses.ResponseInputItemUnionParam {
	items := make([]responses.ResponseInputItemUnionParam, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case "system":
			items = append(items, responses.ResponseInputItemParamOfMessage(
				m.GetTextContent(), responses.EasyInputMessageRoleSystem))
		case "user":
			items = append(items, responses.ResponseInputItemParamOfMessage(
				m.GetTextContent(), responses.EasyInputMessageRoleUser))
		case "assistant":
			if text := m.GetTextContent(); text != "" {
				items = append(items, responses.ResponseInputItemParamOfMessage(
					text, responses.EasyInputMessageRoleAssistant))
			}
			for _, tc := range m.ToolCalls {
				items = append(items, responses.ResponseInputItemParamOfFunctionCall(
					tc.Function.Arguments, tc.ID, tc.Name))
			}
		case "tool":
			items = append(items, responses.ResponseInputItemParamOfFunctionCallOutput(
				m.ToolCallID, m.GetTextContent()))
		}
	}

	return items
}

// convertTools unpacks the function-wrapped declarations produced by
// tools.ToolRegistry.ToOllamaFormat, which is also the OpenAI shape.
func (c *Client) convertTools(availableTools any) []responses.ToolUnionParam {
	rawTools, ok := availableTools.([]map[string]any)
	if !ok {
		return nil
	}

	var converted []responses.ToolUnionParam
	for _, t := range rawTools {
		fn, ok := t["function"].(map[string]any)
		if !ok {
			continue
		}
		name, _ := fn["name"].(string)
		desc, _ := fn["description"].(string)
		params, _ := fn["parameters"].(map[string]any)

		converted = append(converted, responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        name,
				Description: openai.String(desc),
				Parameters:  params,
			},
		})
	}
	return converted
}
