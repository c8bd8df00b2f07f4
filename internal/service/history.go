package service

import (
	"sync"

	"docuchat/internal/llm"
)

// history is one session's conversation log, bounded to maxTurns
// user/assistant exchanges. The oldest turn is evicted first.
type history struct {
	mu       sync.Mutex
	messages []llm.Message
	maxTurns int
}

func newHistory(maxTurns int) *history {
	if maxTurns <= 0 {
		maxTurns = 10
	}
	return &history{maxTurns: maxTurns}
}

// appendTurn records one user message and the assistant's reply, then
// trims to the newest maxTurns exchanges.
func (h *history) appendTurn(user, assistant string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = append(h.messages,
		llm.Message{Role: llm.RoleUser, Content: user},
		llm.Message{Role: llm.RoleAssistant, Content: assistant},
	)
	if excess := len(h.messages) - h.maxTurns*2; excess > 0 {
		h.messages = append(h.messages[:0:0], h.messages[excess:]...)
	}
}

// snapshot returns a copy of the current messages.
func (h *history) snapshot() []llm.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]llm.Message, len(h.messages))
	copy(out, h.messages)
	return out
}
