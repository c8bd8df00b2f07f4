package handlers

import (
	"context"
	"net/http"
	"time"

	"docuchat/internal/contextutil"
)

// IndexStatus reports on the vector index's availability.
type IndexStatus interface {
	Count(ctx context.Context) (int, error)
}

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	index   IndexStatus
	timeout time.Duration
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(index IndexStatus) *HealthHandler {
	return &HealthHandler{index: index, timeout: 5 * time.Second}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Chunks    int               `json:"chunks"`
}

// ServeHTTP handles GET /api/health. Returns 200 when the index is
// reachable, 503 otherwise.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	count, err := h.index.Count(checkCtx)
	if err != nil {
		logger.WarnContext(ctx, "vector index health check failed", "error", err)
		checks["vector_index"] = "error"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["vector_index"] = "ok"
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Chunks:    count,
	})
}
