package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"docuchat/internal/contextutil"
	"docuchat/internal/vectorindex"
)

// Searcher is the slice of the vector index engine the search endpoint
// needs.
type Searcher interface {
	SearchWithScore(ctx context.Context, query string, k int) ([]vectorindex.ScoredChunk, error)
}

// SearchHandler handles similarity search requests.
type SearchHandler struct {
	searcher Searcher
	maxK     int
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(searcher Searcher) *SearchHandler {
	return &SearchHandler{searcher: searcher, maxK: 20}
}

// SearchResult is one hit in the search response.
type SearchResult struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Score    float32        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// SearchResponse represents the HTTP response payload for search.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// ServeHTTP handles GET /api/search?q=...&k=...
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "Query parameter q is required")
		return
	}

	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "Invalid k parameter")
			return
		}
		k = parsed
	}
	if k > h.maxK {
		k = h.maxK
	}

	scored, err := h.searcher.SearchWithScore(ctx, query, k)
	if err != nil {
		logger.ErrorContext(ctx, "search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Search failed")
		return
	}

	results := make([]SearchResult, len(scored))
	for i, s := range scored {
		results[i] = SearchResult{
			ID:       s.Chunk.ID,
			Text:     s.Chunk.Text,
			Score:    s.Score,
			Metadata: s.Chunk.Metadata,
		}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
