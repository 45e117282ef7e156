package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"docchat/internal/contextutil"
	"docchat/internal/llm"
	"docchat/internal/rag"
	"docchat/internal/vectorstore"
)

// ChatHandler handles HTTP requests for answering queries.
type ChatHandler struct {
	engine rag.Engine
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(engine rag.Engine) *ChatHandler {
	return &ChatHandler{engine: engine}
}

// ChatRequest represents the HTTP request payload for chat.
type ChatRequest struct {
	// SessionID continues an existing session; empty starts a new one.
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ServeHTTP handles POST /api/chat.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message cannot be empty")
		return
	}

	answer, err := h.engine.Answer(ctx, req.SessionID, req.Message)
	if err != nil {
		logger.ErrorContext(ctx, "failed to answer query", "error", err)
		writeError(w, statusForError(err), "failed to answer query")
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

// statusForError maps the error taxonomy onto HTTP statuses: caller
// mistakes are 400s, backend failures are 502s, everything else 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, rag.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, llm.ErrEmbeddingBackend),
		errors.Is(err, llm.ErrGenerationBackend),
		errors.Is(err, vectorstore.ErrIndexUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
