package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"docchat/internal/contextutil"
	"docchat/internal/storage"
)

// SessionHandler handles HTTP requests for chat session management.
type SessionHandler struct {
	sessions storage.SessionStore
	ttl      time.Duration
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions storage.SessionStore, ttl time.Duration) *SessionHandler {
	return &SessionHandler{sessions: sessions, ttl: ttl}
}

// SessionResponse represents a created session.
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TurnResponse represents one conversation turn.
type TurnResponse struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryResponse represents a session's ordered turns.
type HistoryResponse struct {
	SessionID string         `json:"session_id"`
	Turns     []TurnResponse `json:"turns"`
}

// Create handles POST /api/sessions.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	session, err := h.sessions.Create(ctx, h.ttl)
	if err != nil {
		logger.ErrorContext(ctx, "failed to create session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, SessionResponse{
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
	})
}

// History handles GET /api/sessions/{id}/turns.
func (h *SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	sessionID := chi.URLParam(r, "id")
	turns, err := h.sessions.History(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		logger.ErrorContext(ctx, "failed to load session history", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load session history")
		return
	}

	resp := HistoryResponse{SessionID: sessionID, Turns: make([]TurnResponse, 0, len(turns))}
	for _, turn := range turns {
		resp.Turns = append(resp.Turns, TurnResponse{
			Role:      turn.Role,
			Text:      turn.Text,
			CreatedAt: turn.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
