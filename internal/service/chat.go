package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chat_service.go -package=mocks -mock_names=ChatService=MockChatService docuchat/internal/service ChatService

import (
	"context"
	"strings"
	"sync"

	"docuchat/internal/contextutil"
	"docuchat/internal/document"
	"docuchat/internal/llm"
)

// Retriever fetches the chunks most relevant to a query. This interface
// is defined from the service layer's perspective (consumer-first).
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]document.Chunk, error)
}

// ChatModel is the slice of the LLM client the chat loop needs.
type ChatModel interface {
	Chat(ctx context.Context, system string, messages []llm.Message) (string, error)
}

// ChatRequest represents a chat request in the domain layer.
type ChatRequest struct {
	SessionID string
	Message   string
}

// Source is one retrieved chunk cited in a reply.
type Source struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// ChatResponse represents a chat response in the domain layer.
type ChatResponse struct {
	Reply   string
	Sources []Source
}

// ChatService provides retrieval-augmented chat over per-session
// conversation history.
type ChatService interface {
	// ProcessChat answers one message, grounded in retrieved chunks.
	ProcessChat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	// ClearSession drops a session's conversation history.
	ClearSession(sessionID string)
}

type chatService struct {
	retriever Retriever
	model     ChatModel
	maxTurns  int

	mu       sync.Mutex
	sessions map[string]*history
}

// NewChatService creates a ChatService keeping at most maxTurns
// exchanges of history per session.
func NewChatService(retriever Retriever, model ChatModel, maxTurns int) ChatService {
	return &chatService{
		retriever: retriever,
		model:     model,
		maxTurns:  maxTurns,
		sessions:  make(map[string]*history),
	}
}

func (s *chatService) session(id string) *history {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.sessions[id]
	if !ok {
		h = newHistory(s.maxTurns)
		s.sessions[id] = h
	}
	return h
}

// ProcessChat retrieves context for the message, asks the chat model
// with the session's history, and records the completed turn.
func (s *chatService) ProcessChat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(req.Message) == "" {
		logger.WarnContext(ctx, "empty message in chat request")
		return ChatResponse{}, &ValidationError{
			Field:   "message",
			Message: "cannot be empty",
		}
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "default"
	}

	chunks, err := s.retriever.Retrieve(ctx, req.Message)
	if err != nil {
		logger.ErrorContext(ctx, "retrieval failed", "error", err)
		return ChatResponse{}, WrapError(err, "failed to retrieve context")
	}

	hist := s.session(sessionID)
	messages := append(hist.snapshot(), llm.Message{Role: llm.RoleUser, Content: req.Message})

	reply, err := s.model.Chat(ctx, buildSystemPrompt(chunks), messages)
	if err != nil {
		logger.ErrorContext(ctx, "failed to get chat model response", "error", err)
		return ChatResponse{}, WrapError(err, "failed to get chat model response")
	}

	hist.appendTurn(req.Message, reply)

	sources := make([]Source, len(chunks))
	for i, chunk := range chunks {
		sources[i] = Source{Text: chunk.Text, Metadata: chunk.Metadata}
	}

	logger.InfoContext(ctx, "chat request processed",
		"session_id", sessionID, "retrieved", len(chunks), "reply_length", len(reply))
	return ChatResponse{Reply: reply, Sources: sources}, nil
}

// ClearSession drops the history for sessionID. Unknown ids are a
// no-op.
func (s *chatService) ClearSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
