package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"docchat/internal/handlers"
	"docchat/internal/indexer"
	"docchat/internal/rag"
	"docchat/internal/storage"
	"docchat/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Engine     rag.Engine
	Sessions   storage.SessionStore
	Pipeline   *indexer.Pipeline
	Primary    *vectorstore.QdrantIndex // nil when running local-only
	SessionTTL time.Duration
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)
	r.Use(LoggerMiddleware)

	chatHandler := handlers.NewChatHandler(deps.Engine)
	sessionHandler := handlers.NewSessionHandler(deps.Sessions, deps.SessionTTL)
	importHandler := handlers.NewImportHandler(deps.Pipeline)
	healthHandler := handlers.NewHealthHandler(deps.Primary)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/chat", chatHandler)
		r.Post("/sessions", sessionHandler.Create)
		r.Get("/sessions/{id}/turns", sessionHandler.History)
		r.Method(http.MethodPost, "/documents/import", importHandler)
	})

	r.Method(http.MethodGet, "/healthz", healthHandler)

	return r
}
