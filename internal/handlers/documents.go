package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"

	"docuchat/internal/contextutil"
	"docuchat/internal/loader"
)

// Ingester runs uploaded files through the ingestion pipeline.
type Ingester interface {
	IngestFile(ctx context.Context, path string, skipRecorded bool) (int, error)
}

// IndexAdmin covers the maintenance operations of the vector index
// engine.
type IndexAdmin interface {
	DeleteBySource(ctx context.Context, sources []string) bool
	Clear(ctx context.Context) error
}

// DocumentsHandler handles document upload, ingestion and deletion.
type DocumentsHandler struct {
	ingester   Ingester
	admin      IndexAdmin
	uploadsDir string
	maxUpload  int64
}

// NewDocumentsHandler creates a new DocumentsHandler storing uploads
// under uploadsDir.
func NewDocumentsHandler(ingester Ingester, admin IndexAdmin, uploadsDir string) *DocumentsHandler {
	return &DocumentsHandler{
		ingester:   ingester,
		admin:      admin,
		uploadsDir: uploadsDir,
		maxUpload:  64 << 20,
	}
}

// IngestedFile reports one uploaded file's ingestion outcome.
type IngestedFile struct {
	FileName string `json:"file_name"`
	Path     string `json:"path"`
	Chunks   int    `json:"chunks"`
}

// UploadResponse represents the HTTP response payload for uploads.
type UploadResponse struct {
	Ingested []IngestedFile `json:"ingested"`
}

// DeleteRequest represents the HTTP request payload for deletion.
type DeleteRequest struct {
	Sources []string `json:"sources"`
}

// DeleteResponse represents the HTTP response payload for deletion.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// ServeHTTP dispatches POST (upload + ingest) and DELETE (by source).
func (h *DocumentsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.upload(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *DocumentsHandler) upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		logger.WarnContext(ctx, "invalid multipart form", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}

	var ingested []IngestedFile
	for _, header := range files {
		if !loader.Supported(header.Filename) {
			err := &loader.UnsupportedFormatError{Extension: filepath.Ext(header.Filename)}
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
			return
		}

		f, err := header.Open()
		if err != nil {
			logger.ErrorContext(ctx, "failed to open upload", "file", header.Filename, "error", err)
			writeError(w, http.StatusBadRequest, "Failed to read upload")
			return
		}
		path, err := loader.SaveUpload(f, h.uploadsDir, header.Filename)
		_ = f.Close()
		if err != nil {
			logger.ErrorContext(ctx, "failed to save upload", "file", header.Filename, "error", err)
			writeError(w, http.StatusBadRequest, "Failed to save upload")
			return
		}

		n, err := h.ingester.IngestFile(ctx, path, false)
		if err != nil {
			var unsupported *loader.UnsupportedFormatError
			if errors.As(err, &unsupported) {
				writeError(w, http.StatusUnsupportedMediaType, unsupported.Error())
				return
			}
			logger.ErrorContext(ctx, "failed to ingest upload", "path", path, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to ingest document")
			return
		}

		ingested = append(ingested, IngestedFile{
			FileName: header.Filename,
			Path:     path,
			Chunks:   n,
		})
	}

	writeJSON(w, http.StatusCreated, UploadResponse{Ingested: ingested})
}

func (h *DocumentsHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req DeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Sources) == 0 {
		writeError(w, http.StatusBadRequest, "At least one source is required")
		return
	}

	deleted := h.admin.DeleteBySource(ctx, req.Sources)
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: deleted})
}

// ClearHandler resets the whole index.
type ClearHandler struct {
	admin IndexAdmin
}

// NewClearHandler creates a new ClearHandler.
func NewClearHandler(admin IndexAdmin) *ClearHandler {
	return &ClearHandler{admin: admin}
}

// ServeHTTP handles POST /api/index/clear.
func (h *ClearHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := h.admin.Clear(ctx); err != nil {
		logger.ErrorContext(ctx, "failed to clear index", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to clear index")
		return
	}
	logger.InfoContext(ctx, "index cleared")
	w.WriteHeader(http.StatusNoContent)
}
