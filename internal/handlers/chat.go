package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"docuchat/internal/contextutil"
	"docuchat/internal/service"
)

// ChatHandler handles HTTP requests for chat.
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// ChatRequest represents the HTTP request payload for chat.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatResponse represents the HTTP response payload for chat.
type ChatResponse struct {
	Reply   string           `json:"reply"`
	Sources []service.Source `json:"sources"`
}

// ServeHTTP handles POST /api/chat.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	svcResp, err := h.chatService.ProcessChat(ctx, service.ChatRequest{
		SessionID: req.SessionID,
		Message:   req.Message,
	})
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to process chat request")
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Reply:   svcResp.Reply,
		Sources: svcResp.Sources,
	})
}

// SessionHandler clears a session's conversation history.
type SessionHandler struct {
	chatService service.ChatService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(chatService service.ChatService) *SessionHandler {
	return &SessionHandler{chatService: chatService}
}

// ServeHTTP handles DELETE /api/sessions/{sessionID}.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "Session id is required")
		return
	}
	h.chatService.ClearSession(sessionID)
	w.WriteHeader(http.StatusNoContent)
}
