package llm

import (
	"os"
	"path/filepath"
	"sync"
)

// ChatHistory manages one conversation's message log. It is safe for
// concurrent use; channels append user turns while the handler appends
// assistant and tool turns.
type ChatHistory struct {
	messages []Message
	mu       sync.RWMutex
}

// NewChatHistory creates an empty history.
func NewChatHistory() *ChatHistory {
	return &ChatHistory{
		messages: make([]Message, 0),
	}
}

// Add appends a message.
func (h *ChatHistory) Add(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = append(h.messages, msg)
}

// GetMessages returns a copy of the current history.
func (h *ChatHistory) GetMessages() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	cp := make([]Message, len(h.messages))
	copy(cp, h.messages)
	return cp
}

// Len returns the current message count.
func (h *ChatHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// EnsureSystemMessage guarantees the history starts with the given system
// prompt: inserted when absent, replaced when the prompt changed (e.g.
// after an advisor-config hot reload).
func (h *ChatHistory) EnsureSystemMessage(prompt string) {
	if prompt == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.messages) > 0 && h.messages[0].Role == "system" {
		if h.messages[0].GetTextContent() != prompt {
			h.messages[0] = NewSystemMessage(prompt)
		}
		return
	}

	h.messages = append([]Message{NewSystemMessage(prompt)}, h.messages...)
}

// Clear drops every message, keeping the system prompt if present.
func (h *ChatHistory) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.messages) > 0 && h.messages[0].Role == "system" {
		h.messages = h.messages[:1]
		return
	}
	h.messages = h.messages[:0]
}

// UIMessage is the flattened shape sent to web clients for history replay.
type UIMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// GetMessagesForUI flattens the history for frontend replay: system and
// empty turns are skipped, tool results are labeled as system output.
func (h *ChatHistory) GetMessagesForUI() []UIMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]UIMessage, 0, len(h.messages))
	for _, m := range h.messages {
		if m.Role == "system" {
			continue
		}
		text := m.GetTextContent()
		if text == "" {
			continue
		}
		role := m.Role
		if role == "tool" {
			role = "system"
		}
		out = append(out, UIMessage{Role: role, Text: text})
	}
	return out
}

// Save persists the full transcript as JSON.
func (h *ChatHistory) Save(path string) error {
	h.mu.RLock()
	data, err := json.MarshalIndent(h.messages, "", "  ")
	h.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Load restores a transcript saved by Save. A missing file is not an
// error; the session simply starts fresh.
func (h *ChatHistory) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return err
	}

	h.mu.Lock()
	h.messages = messages
	h.mu.Unlock()
	return nil
}
