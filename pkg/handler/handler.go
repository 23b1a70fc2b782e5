package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"policypilot/pkg/api"
	"policypilot/pkg/config"
	"policypilot/pkg/llm"
	"policypilot/pkg/tools"
	"policypilot/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ChatHandler orchestrates the advisory conversation flow: session history,
// the agentic reasoning loop, tool execution and error recovery. It
// implements api.GatewayHandler, so the gateway injects itself as responder.
type ChatHandler struct {
	client       llm.LLMClient
	responder    api.MessageResponder
	sessions     *llm.SessionManager
	systemConfig *config.SystemConfig
	toolRegistry api.ToolRegistry
	systemPrompt string
}

// NewChatHandler initializes a ChatHandler. The tool registry is injected
// so the composition root can share tool instances with config hot reload.
func NewChatHandler(client llm.LLMClient, sessions *llm.SessionManager, sysCfg *config.SystemConfig, registry api.ToolRegistry, systemPrompt string) *ChatHandler {
	h := &ChatHandler{
		client:       client,
		sessions:     sessions,
		systemConfig: sysCfg,
		toolRegistry: registry,
		systemPrompt: systemPrompt,
	}

	client.SetDebug(sysCfg.DebugChunks)

	return h
}

// SetResponder implements api.ResponderAware.
func (h *ChatHandler) SetResponder(responder api.MessageResponder) {
	h.responder = responder
}

// UpdateSystemPrompt swaps the system instruction, used on config reload.
// Existing sessions pick it up on their next message.
func (h *ChatHandler) UpdateSystemPrompt(prompt string) {
	h.systemPrompt = prompt
}

// sessionID isolates histories per channel and chat, so a Telegram group
// and the web UI never share context.
func sessionID(s api.SessionContext) string {
	return fmt.Sprintf("%s_%s", s.ChannelID, s.ChatID)
}

// OnMessage is the primary entry point for processing an incoming message:
// slash command interception, history append, the agentic loop, and
// transcript persistence.
func (h *ChatHandler) OnMessage(msg *api.UnifiedMessage) {
	if msg.DebugID == "" {
		msg.DebugID = utils.TimestampID()
	}
	start := time.Now()

	slog.Info("💬 Message received",
		"channel", msg.Session.ChannelID, "user", msg.Session.Username, "chars", len(msg.Content), "debug_id", msg.DebugID)

	sid := sessionID(msg.Session)
	history, err := h.sessions.GetHistory(sid)
	if err != nil {
		slog.Error("Failed to load session history", "session", sid, "error", err)
		h.responder.SendReply(msg.Session, fmt.Sprintf("❌ Error: %v", err))
		return
	}
	history.EnsureSystemMessage(h.systemPrompt)

	// Slash commands are handled directly and never enter history
	if strings.HasPrefix(msg.Content, "/") {
		h.handleSlashCommand(msg, history)
		return
	}

	history.Add(llm.NewUserMessage(msg.Content))

	assistantMsg := h.processLLMStream(msg, history)

	if len(assistantMsg.Content) > 0 {
		history.Add(assistantMsg)
	}

	if err := h.sessions.SaveSession(sid); err != nil {
		slog.Warn("Failed to persist session", "session", sid, "error", err)
	}

	slog.Info("✅ Agent loop finished", "duration", time.Since(start).String(), "debug_id", msg.DebugID)
}

// processLLMStream manages the core agentic reasoning loop: streaming
// response forwarding, tool execution recursion, continuation on length
// truncation and transparent retries on transient errors.
func (h *ChatHandler) processLLMStream(msg *api.UnifiedMessage, history *llm.ChatHistory) llm.Message {
	timeout := time.Duration(h.systemConfig.LLMTimeoutMs) * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Group all chunk debug logs of this agent loop into one folder
	if msg.DebugID != "" {
		ctx = context.WithValue(ctx, llm.DebugDirContextKey, msg.DebugID)
	}

	thinkingSent := false
	delay := time.Duration(h.systemConfig.ThinkingInitDelayMs) * time.Millisecond
	initTimer := time.AfterFunc(delay, func() {
		h.responder.SendSignal(msg.Session, "thinking")
		thinkingSent = true
	})

	// Select the tool schema format matching the active provider
	var availableTools any
	if h.systemConfig.EnableTools && !msg.NoTools {
		switch pName := h.client.Provider(); pName {
		case "gemini":
			availableTools = h.toolRegistry.ToGeminiFormat()
		case "ollama", "openai":
			availableTools = h.toolRegistry.ToOllamaFormat()
		default:
			slog.Warn("Unknown provider format", "provider", pName)
		}
	}

	chunkCh, err := h.client.StreamChat(ctx, history.GetMessages(), availableTools)
	initTimer.Stop()

	if err != nil {
		slog.Error("LLM stream init failed", "error", err)
		h.responder.SendReply(msg.Session, fmt.Sprintf("❌ Error: %v", err))
		return llm.Message{}
	}

	blockCh := make(chan llm.ContentBlock, h.systemConfig.InternalChannelBuffer)
	streamDone := make(chan struct{})
	go func() {
		defer close(streamDone)
		if err := h.responder.StreamReply(msg.Session, blockCh); err != nil {
			slog.Error("Failed to stream reply", "error", err)
		}
	}()

	// The stream must be closed and drained before any recursion, otherwise
	// the next loop iteration interleaves with this one's output.
	closed := false
	safeClose := func() {
		if !closed {
			close(blockCh)
			<-streamDone
			closed = true
		}
	}
	defer safeClose()

	assistantMsg, streamErr := h.collectChunks(msg.Session, chunkCh, blockCh, thinkingSent)

	safeClose()

	if len(assistantMsg.ToolCalls) > 0 {
		history.Add(assistantMsg)

		for _, tc := range assistantMsg.ToolCalls {
			resultBlocks := h.executeToolCall(ctx, tc)

			// The tool result must enter history even on failure, or the
			// next provider call rejects the dangling tool call
			toolResMsg := llm.Message{
				Role:       "tool",
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
				Content:    resultBlocks,
			}
			history.Add(toolResMsg)

			// Forward tool output to the frontend under a system role
			h.responder.SendSignal(msg.Session, "role:system")

			resCh := make(chan llm.ContentBlock, len(toolResMsg.Content))
			for _, b := range toolResMsg.Content {
				resCh <- b
			}
			close(resCh)
			if err := h.responder.StreamReply(msg.Session, resCh); err != nil {
				slog.Error("Failed to stream tool result", "error", err)
			}
		}

		// Let the model process the tool outcomes
		return h.processLLMStream(msg, history)
	}

	reason := "UNKNOWN"
	if assistantMsg.Usage != nil {
		reason = assistantMsg.Usage.StopReason
	}

	hasContent, hasThinking, preview := summarizeContent(assistantMsg)
	isNormal := streamErr == nil && (hasContent || hasThinking) &&
		(reason == llm.StopReasonStop || reason == llm.StopReasonLength || reason == "UNKNOWN")

	if !isNormal {
		// Continuation: the model ran out of tokens mid-blueprint
		if reason == llm.StopReasonLength && (hasContent || hasThinking) {
			maxCont := h.systemConfig.MaxContinuations
			if msg.ContinueCount < maxCont {
				msg.ContinueCount++
				slog.Info("🔄 Truncation detected, continuing",
					"continuation", fmt.Sprintf("%d/%d", msg.ContinueCount, maxCont), "preview", preview)

				h.responder.SendReply(msg.Session,
					fmt.Sprintf("⚠️ Content truncated due to length, attempting to continue (%d/%d)...", msg.ContinueCount, maxCont))

				history.Add(assistantMsg)

				time.Sleep(time.Duration(h.systemConfig.RetryDelayMs) * time.Millisecond)
				return h.processLLMStream(msg, history)
			}
			slog.Warn("Max continuation reached", "max", maxCont)
			h.responder.SendReply(msg.Session, "❌ Max continuation reached, forced stop.")
			return assistantMsg
		}

		if h.attemptRetry(msg, reason, streamErr, preview) {
			return h.processLLMStream(msg, history)
		}
	}

	return assistantMsg
}

// executeToolCall resolves and runs one tool call, always returning
// non-empty result blocks so the conversation can continue.
func (h *ChatHandler) executeToolCall(ctx context.Context, tc llm.ToolCall) []llm.ContentBlock {
	tool, ok := h.toolRegistry.Get(tc.Name)
	if !ok {
		slog.Error("Unknown tool call", "name", tc.Name)
		return []llm.ContentBlock{llm.NewTextBlock(fmt.Sprintf("Error: Unknown tool '%s'", tc.Name))}
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
		slog.Error("Failed to parse tool args", "tool", tc.Name, "error", err)
		return []llm.ContentBlock{llm.NewTextBlock(fmt.Sprintf("Error: Failed to parse tool arguments: %v", err))}
	}

	slog.Info("🛠️ Executing tool", "name", tc.Name)
	res, err := tool.Execute(ctx, args)
	if err != nil {
		slog.Error("Tool execution error", "tool", tc.Name, "error", err)
		return []llm.ContentBlock{llm.NewTextBlock(fmt.Sprintf("Error: Tool execution failed: %v", err))}
	}

	return convertToolResult(res)
}

// collectChunks consumes a StreamChunk channel, forwarding user-facing
// blocks to the gateway while accumulating the final assistant message.
// A streaming pause before the first chunk triggers the thinking signal.
func (h *ChatHandler) collectChunks(session api.SessionContext, chunkCh <-chan llm.StreamChunk, blockCh chan<- llm.ContentBlock, alreadySentThinking bool) (llm.Message, error) {
	var textContent string
	var thinkingContent string
	var errorContent string
	var toolCalls []llm.ToolCall
	var lastUsage *llm.LLMUsage
	var lastError error
	firstChunkReceived := false

	var thinkingTimer *time.Timer
	var timerChan <-chan time.Time
	if !alreadySentThinking {
		delay := time.Duration(h.systemConfig.ThinkingTokenDelayMs) * time.Millisecond
		thinkingTimer = time.NewTimer(delay)
		defer thinkingTimer.Stop()
		timerChan = thinkingTimer.C
	}

Phase1Loop:
	for !firstChunkReceived {
		select {
		case chunk, ok := <-chunkCh:
			if !ok {
				return llm.Message{}, nil // Channel closed with no content
			}
			if chunk.RawError != nil {
				return llm.Message{}, chunk.RawError
			}
			firstChunkReceived = true
			if thinkingTimer != nil {
				thinkingTimer.Stop()
			}
			textContent, thinkingContent, errorContent = h.processChunk(chunk, textContent, thinkingContent, errorContent, blockCh)
			if len(chunk.ToolCalls) > 0 {
				toolCalls = append(toolCalls, chunk.ToolCalls...)
			}
			if chunk.Usage != nil {
				lastUsage = chunk.Usage
			}
			if chunk.IsFinal {
				break Phase1Loop
			}

		case <-timerChan:
			h.responder.SendSignal(session, "thinking")
			timerChan = nil // Send only once
		}
	}

	for chunk := range chunkCh {
		if chunk.RawError != nil {
			lastError = chunk.RawError
		}
		textContent, thinkingContent, errorContent = h.processChunk(chunk, textContent, thinkingContent, errorContent, blockCh)

		if len(chunk.ToolCalls) > 0 {
			toolCalls = append(toolCalls, chunk.ToolCalls...)
		}

		if chunk.Usage != nil {
			lastUsage = chunk.Usage
		}

		if chunk.IsFinal {
			break
		}
	}

	msg := llm.Message{
		Role:      "assistant",
		Content:   []llm.ContentBlock{},
		ToolCalls: toolCalls,
		Usage:     lastUsage,
	}

	if thinkingContent != "" {
		msg.Content = append(msg.Content, llm.NewThinkingBlock(thinkingContent))
	}

	if textContent != "" {
		msg.Content = append(msg.Content, llm.NewTextBlock(textContent))
	}

	if errorContent != "" {
		msg.Content = append(msg.Content, llm.NewErrorBlock(errorContent))
	}

	return msg, lastError
}

// processChunk extracts text, thinking and error fragments from one chunk,
// appending them to the accumulation buffers and emitting UI blocks.
func (h *ChatHandler) processChunk(chunk llm.StreamChunk, currentText, currentThinking, currentError string, blockCh chan<- llm.ContentBlock) (string, string, string) {
	if chunk.Error != "" {
		errorMsg := fmt.Sprintf("\n❌ %s", chunk.Error)
		currentError += errorMsg
		blockCh <- llm.NewErrorBlock(errorMsg)
	}

	for _, block := range chunk.ContentBlocks {
		switch block.Type {
		case llm.BlockTypeText:
			currentText += block.Text
			blockCh <- block

		case llm.BlockTypeThinking:
			currentThinking += block.Text
			if h.systemConfig.ShowThinking {
				blockCh <- block
			}
		}
	}

	return currentText, currentThinking, currentError
}

// handleSlashCommand executes manual commands for debugging and session
// control:
//
//	/reset                     wipe the current session transcript
//	/notools <text>            converse without tool calling
//	/portfolio <JSON args>     run build_portfolio directly
//	/<tool_name> <JSON args>   run any registered tool directly
func (h *ChatHandler) handleSlashCommand(msg *api.UnifiedMessage, history *llm.ChatHistory) {
	parts := strings.SplitN(strings.TrimPrefix(msg.Content, "/"), " ", 2)
	command := parts[0]
	rest := ""
	if len(parts) > 1 {
		rest = strings.TrimSpace(parts[1])
	}

	switch command {
	case "reset":
		history.Clear()
		h.sessions.SaveSession(sessionID(msg.Session))
		h.responder.SendReply(msg.Session, "🔄 Conversation reset. Paste a fund list to start over.")
		return

	case "notools":
		if rest == "" {
			h.responder.SendReply(msg.Session, "❌ Usage: /notools [your message]")
			return
		}
		msg.NoTools = true
		msg.Content = rest
		history.Add(llm.NewUserMessage(msg.Content))
		assistantMsg := h.processLLMStream(msg, history)
		if len(assistantMsg.Content) > 0 {
			history.Add(assistantMsg)
		}
		h.sessions.SaveSession(sessionID(msg.Session))
		return

	case "portfolio":
		// Shorthand for the pipeline tool
		command = "build_portfolio"
	}

	tool, ok := h.toolRegistry.Get(command)
	if !ok {
		h.responder.SendReply(msg.Session,
			fmt.Sprintf("❌ Unknown command: /%s\nAvailable: /reset, /notools, /portfolio, or /[tool_name] [JSON params]", command))
		return
	}

	args := make(map[string]any)
	if rest != "" {
		if err := json.Unmarshal([]byte(rest), &args); err != nil {
			// Convenience for text-only tools: treat the rest as the text arg
			args = map[string]any{"text": rest}
		}
	}

	h.responder.SendReply(msg.Session, fmt.Sprintf("🛠️ Manually executing tool: %s...", tool.Name()))
	res, err := tool.Execute(context.Background(), args)
	if err != nil {
		h.responder.SendReply(msg.Session, fmt.Sprintf("❌ Execution error: %v", err))
		return
	}

	blocks := convertToolResult(res)
	resCh := make(chan llm.ContentBlock, len(blocks))
	for _, b := range blocks {
		resCh <- b
	}
	close(resCh)
	_ = h.responder.StreamReply(msg.Session, resCh)
}

// attemptRetry checks whether a retry is allowed and notifies the user.
// Error classification is delegated entirely to the LLM client's
// IsTransientError; the handler never parses error strings itself.
func (h *ChatHandler) attemptRetry(msg *api.UnifiedMessage, reason string, streamErr error, preview string) bool {
	if streamErr != nil && !h.client.IsTransientError(streamErr) {
		slog.Error("Non-transient error, skipping retry", "error", streamErr)
		h.responder.SendReply(msg.Session, fmt.Sprintf("❌ %v", streamErr))
		return false
	}

	maxRetries := h.systemConfig.MaxRetries
	if msg.RetryCount >= maxRetries {
		slog.Error("Max retries reached", "max", maxRetries, "reason", reason, "error", streamErr)
		h.responder.SendReply(msg.Session, "❌ AI response remains abnormal, please try rephrasing or restarting the conversation.")
		return false
	}

	msg.RetryCount++
	slog.Warn("⚠️ Abnormal response, retrying",
		"reason", reason,
		"error", streamErr,
		"preview", preview,
		"retry", fmt.Sprintf("%d/%d", msg.RetryCount, maxRetries),
	)

	retryNotice := fmt.Sprintf("⚠️ Abnormal response (%s), attempting automatic fix (%d/%d)...", reason, msg.RetryCount, maxRetries)
	if streamErr != nil {
		retryNotice = fmt.Sprintf("⚠️ Connection error (%v), attempting automatic recovery (%d/%d)...", streamErr, msg.RetryCount, maxRetries)
	}
	h.responder.SendReply(msg.Session, retryNotice)

	time.Sleep(time.Duration(h.systemConfig.RetryDelayMs) * time.Millisecond)
	return true
}

// summarizeContent scans the assistant message and returns whether it has
// text content, thinking content, and a truncated preview for logging.
func summarizeContent(msg llm.Message) (hasContent, hasThinking bool, preview string) {
	var sb strings.Builder
	for _, b := range msg.Content {
		if b.Type == llm.BlockTypeThinking && b.Text != "" {
			hasThinking = true
		}
		if b.Type == llm.BlockTypeText && b.Text != "" {
			hasContent = true
		}
		sb.WriteString(b.Text)
	}
	preview = sb.String()
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return
}

// convertToolResult transforms a tools.ToolResult into llm.ContentBlocks,
// guaranteeing non-empty output so providers never see an empty tool reply.
func convertToolResult(res *tools.ToolResult) []llm.ContentBlock {
	var blocks []llm.ContentBlock
	for _, b := range res.Content {
		if b.Text != "" {
			blocks = append(blocks, llm.NewTextBlock(b.Text))
		}
	}
	if len(blocks) == 0 {
		blocks = append(blocks, llm.NewTextBlock("(No output)"))
	}
	return blocks
}
