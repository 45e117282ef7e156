package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"docchat/internal/contextutil"
	"docchat/internal/indexer"
	"docchat/internal/llm"
)

// ImportHandler handles HTTP requests for importing documents into the corpus.
type ImportHandler struct {
	pipeline *indexer.Pipeline
}

// NewImportHandler creates a new ImportHandler.
func NewImportHandler(pipeline *indexer.Pipeline) *ImportHandler {
	return &ImportHandler{pipeline: pipeline}
}

// ImportRequest represents the HTTP request payload for document import.
type ImportRequest struct {
	// SourcePath identifies the document; re-importing the same path
	// with changed content replaces its chunks.
	SourcePath string `json:"source_path"`
	Content    string `json:"content"`
}

// ServeHTTP handles POST /api/documents/import.
func (h *ImportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.SourcePath == "" {
		writeError(w, http.StatusBadRequest, "source_path cannot be empty")
		return
	}

	report, err := h.pipeline.ImportDocument(ctx, req.SourcePath, []byte(req.Content))
	if err != nil {
		logger.ErrorContext(ctx, "failed to import document", "source_path", req.SourcePath, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, llm.ErrEmbeddingBackend) {
			status = http.StatusBadGateway
		}
		writeError(w, status, "failed to import document")
		return
	}

	writeJSON(w, http.StatusOK, report)
}
