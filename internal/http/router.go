// Package http assembles the API router.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"docuchat/internal/handlers"
	"docuchat/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	ChatService service.ChatService
	Searcher    handlers.Searcher
	Ingester    handlers.Ingester
	IndexAdmin  handlers.IndexAdmin
	IndexStatus handlers.IndexStatus
	UploadsDir  string
}

// NewRouter creates the API router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	chatHandler := handlers.NewChatHandler(deps.ChatService)
	sessionHandler := handlers.NewSessionHandler(deps.ChatService)
	searchHandler := handlers.NewSearchHandler(deps.Searcher)
	documentsHandler := handlers.NewDocumentsHandler(deps.Ingester, deps.IndexAdmin, deps.UploadsDir)
	clearHandler := handlers.NewClearHandler(deps.IndexAdmin)
	healthHandler := handlers.NewHealthHandler(deps.IndexStatus)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/chat", chatHandler)
		r.Method(http.MethodDelete, "/sessions/{sessionID}", sessionHandler)
		r.Method(http.MethodGet, "/search", searchHandler)
		r.Method(http.MethodPost, "/documents", documentsHandler)
		r.Method(http.MethodDelete, "/documents", documentsHandler)
		r.Method(http.MethodPost, "/index/clear", clearHandler)
		r.Method(http.MethodGet, "/health", healthHandler)
	})

	return r
}
