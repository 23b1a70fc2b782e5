package handler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policypilot/pkg/api"
	"policypilot/pkg/config"
	"policypilot/pkg/llm"
	"policypilot/pkg/tools"
	"policypilot/pkg/tools/funds"
)

// scriptedClient replays prepared chunk sequences, one per StreamChat call.
type scriptedClient struct {
	mu        sync.Mutex
	scripts   [][]llm.StreamChunk
	calls     int
	toolsSeen []any
	transient bool
}

func (c *scriptedClient) StreamChat(ctx context.Context, messages []llm.Message, availableTools any) (<-chan llm.StreamChunk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.toolsSeen = append(c.toolsSeen, availableTools)
	if c.calls >= len(c.scripts) {
		return nil, errors.New("no more scripted responses")
	}
	script := c.scripts[c.calls]
	c.calls++

	ch := make(chan llm.StreamChunk, len(script))
	for _, chunk := range script {
		ch <- chunk
	}
	close(ch)
	return ch, nil
}

func (c *scriptedClient) IsTransientError(err error) bool { return c.transient }
func (c *scriptedClient) Provider() string                { return "gemini" }
func (c *scriptedClient) SetDebug(enabled bool)           {}

// recordingResponder captures everything the handler sends back.
type recordingResponder struct {
	mu       sync.Mutex
	replies  []string
	streamed []string
	signals  []string
}

func (r *recordingResponder) SendReply(session api.SessionContext, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, content)
	return nil
}

func (r *recordingResponder) StreamReply(session api.SessionContext, blocks <-chan llm.ContentBlock) error {
	var sb strings.Builder
	for b := range blocks {
		if b.Type == llm.BlockTypeText {
			sb.WriteString(b.Text)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streamed = append(r.streamed, sb.String())
	return nil
}

func (r *recordingResponder) SendSignal(session api.SessionContext, signal string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, signal)
	return nil
}

func (r *recordingResponder) allStreamed() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.streamed, "")
}

func testSystemConfig() *config.SystemConfig {
	cfg := config.DefaultSystemConfig()
	cfg.RetryDelayMs = 1
	cfg.ThinkingInitDelayMs = 10000 // Keep timers out of the way
	cfg.ThinkingTokenDelayMs = 10000
	return cfg
}

func newTestHandler(t *testing.T, client llm.LLMClient) (*ChatHandler, *recordingResponder) {
	t.Helper()

	registry := tools.NewToolRegistry()
	registry.Register(funds.NewExtractISINsTool())
	registry.Register(funds.NewBuildPortfolioTool(config.DefaultAdvisorConfig()))

	sessions := llm.NewSessionManager("") // No persistence in tests
	h := NewChatHandler(client, sessions, testSystemConfig(), registry, "You are a fund advisor.")

	responder := &recordingResponder{}
	h.SetResponder(responder)
	return h, responder
}

func testMessage(content string) *api.UnifiedMessage {
	return &api.UnifiedMessage{
		Session: api.SessionContext{ChannelID: "test", UserID: "u1", ChatID: "c1", Username: "tester"},
		Content: content,
	}
}

func finalChunk(reason string) llm.StreamChunk {
	return llm.NewFinalChunk(reason, &llm.LLMUsage{StopReason: reason, TotalTokens: 10})
}

func TestOnMessagePlainReply(t *testing.T) {
	client := &scriptedClient{scripts: [][]llm.StreamChunk{
		{llm.NewTextChunk("Hello, "), llm.NewTextChunk("paste your funds."), finalChunk(llm.StopReasonStop)},
	}}
	h, responder := newTestHandler(t, client)

	h.OnMessage(testMessage("hi"))

	assert.Equal(t, "Hello, paste your funds.", responder.allStreamed())

	history, err := h.sessions.GetHistory("test_c1")
	require.NoError(t, err)
	msgs := history.GetMessages()
	require.Len(t, msgs, 3) // system, user, assistant
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "hi", msgs[1].GetTextContent())
	assert.Equal(t, "Hello, paste your funds.", msgs[2].GetTextContent())
}

func TestOnMessageToolCallLoop(t *testing.T) {
	toolCall := llm.ToolCall{
		ID:   "call-1",
		Name: "extract_isins",
		Function: llm.FunctionCall{
			Name:      "extract_isins",
			Arguments: `{"text":"check IE00B4L5Y983"}`,
		},
	}
	client := &scriptedClient{scripts: [][]llm.StreamChunk{
		{{ToolCalls: []llm.ToolCall{toolCall}}, finalChunk(llm.StopReasonStop)},
		{llm.NewTextChunk("Found one valid ISIN."), finalChunk(llm.StopReasonStop)},
	}}
	h, responder := newTestHandler(t, client)

	h.OnMessage(testMessage("check IE00B4L5Y983"))

	assert.Equal(t, 2, client.calls)
	assert.Contains(t, responder.allStreamed(), "IE00B4L5Y983")
	assert.Contains(t, responder.allStreamed(), "Found one valid ISIN.")
	assert.Contains(t, responder.signals, "role:system")

	history, _ := h.sessions.GetHistory("test_c1")
	msgs := history.GetMessages()
	// system, user, assistant(tool call), tool result, final assistant
	require.Len(t, msgs, 5)
	assert.Equal(t, "tool", msgs[3].Role)
	assert.Equal(t, "call-1", msgs[3].ToolCallID)
	assert.Equal(t, "extract_isins", msgs[3].ToolName)
	assert.Contains(t, msgs[3].GetTextContent(), "IE00B4L5Y983")
}

func TestOnMessageRetriesTransientError(t *testing.T) {
	boom := errors.New("connection reset")
	client := &scriptedClient{
		transient: true,
		scripts: [][]llm.StreamChunk{
			{llm.NewErrorChunk("Stream interrupted", boom, true)},
			{llm.NewTextChunk("Recovered."), finalChunk(llm.StopReasonStop)},
		},
	}
	h, responder := newTestHandler(t, client)

	h.OnMessage(testMessage("hello"))

	assert.Equal(t, 2, client.calls)
	assert.Contains(t, responder.allStreamed(), "Recovered.")
}

func TestOnMessageGivesUpOnPermanentError(t *testing.T) {
	boom := errors.New("401 unauthorized")
	client := &scriptedClient{
		transient: false,
		scripts: [][]llm.StreamChunk{
			{llm.NewErrorChunk("API error", boom, true)},
		},
	}
	h, responder := newTestHandler(t, client)

	h.OnMessage(testMessage("hello"))

	assert.Equal(t, 1, client.calls)
	require.NotEmpty(t, responder.replies)
	assert.Contains(t, responder.replies[len(responder.replies)-1], "401 unauthorized")
}

func TestSlashReset(t *testing.T) {
	client := &scriptedClient{scripts: [][]llm.StreamChunk{
		{llm.NewTextChunk("reply"), finalChunk(llm.StopReasonStop)},
	}}
	h, responder := newTestHandler(t, client)

	h.OnMessage(testMessage("hello"))
	h.OnMessage(testMessage("/reset"))

	history, _ := h.sessions.GetHistory("test_c1")
	msgs := history.GetMessages()
	require.Len(t, msgs, 1) // System prompt survives
	assert.Equal(t, "system", msgs[0].Role)
	assert.Contains(t, responder.replies[len(responder.replies)-1], "Conversation reset")
}

func TestSlashNoTools(t *testing.T) {
	client := &scriptedClient{scripts: [][]llm.StreamChunk{
		{llm.NewTextChunk("plain answer"), finalChunk(llm.StopReasonStop)},
	}}
	h, responder := newTestHandler(t, client)

	h.OnMessage(testMessage("/notools what is a TER?"))

	require.Equal(t, 1, client.calls)
	assert.Nil(t, client.toolsSeen[0])
	assert.Contains(t, responder.allStreamed(), "plain answer")
}

func TestSlashToolExecution(t *testing.T) {
	client := &scriptedClient{}
	h, responder := newTestHandler(t, client)

	h.OnMessage(testMessage(`/extract_isins {"text":"try LU0323577923"}`))

	assert.Equal(t, 0, client.calls) // Manual execution bypasses the LLM
	assert.Contains(t, responder.allStreamed(), "LU0323577923")
}

func TestToolSchemaSelectionByProvider(t *testing.T) {
	client := &scriptedClient{scripts: [][]llm.StreamChunk{
		{llm.NewTextChunk("ok"), finalChunk(llm.StopReasonStop)},
	}}
	h, _ := newTestHandler(t, client)

	h.OnMessage(testMessage("hello"))

	require.Equal(t, 1, client.calls)
	decls, ok := client.toolsSeen[0].([]map[string]any)
	require.True(t, ok)
	require.Len(t, decls, 2)
	// Gemini format is flat: name at the top level
	assert.Equal(t, "build_portfolio", decls[0]["name"])
	assert.Equal(t, "extract_isins", decls[1]["name"])
}

func TestUpdateSystemPromptReplacesSeed(t *testing.T) {
	client := &scriptedClient{scripts: [][]llm.StreamChunk{
		{llm.NewTextChunk("a"), finalChunk(llm.StopReasonStop)},
		{llm.NewTextChunk("b"), finalChunk(llm.StopReasonStop)},
	}}
	h, _ := newTestHandler(t, client)

	h.OnMessage(testMessage("first"))
	h.UpdateSystemPrompt("New policy instruction.")
	h.OnMessage(testMessage("second"))

	history, _ := h.sessions.GetHistory("test_c1")
	msgs := history.GetMessages()
	assert.Equal(t, "New policy instruction.", msgs[0].GetTextContent())
}
