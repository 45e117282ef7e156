package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"docchat/internal/indexer"
	"docchat/internal/rag"
	rag_mocks "docchat/internal/rag/mocks"
	"docchat/internal/storage"
	storage_mocks "docchat/internal/storage/mocks"
	vectorstore_mocks "docchat/internal/vectorstore/mocks"
)

func newTestRouter(t *testing.T, ctrl *gomock.Controller) (http.Handler, *rag_mocks.MockEngine, *storage_mocks.MockSessionStore) {
	t.Helper()

	engine := rag_mocks.NewMockEngine(ctrl)
	sessions := storage_mocks.NewMockSessionStore(ctrl)
	docRepo := storage_mocks.NewMockDocumentStore(ctrl)
	chunkRepo := storage_mocks.NewMockChunkStore(ctrl)
	index := vectorstore_mocks.NewMockVectorIndex(ctrl)

	chunker, err := indexer.NewWindowChunker(100, 20)
	if err != nil {
		t.Fatalf("NewWindowChunker() error = %v", err)
	}
	pipeline := indexer.NewPipeline(docRepo, chunkRepo, nil, index, chunker, 3)

	router := NewRouter(&Deps{
		Engine:     engine,
		Sessions:   sessions,
		Pipeline:   pipeline,
		Primary:    nil,
		SessionTTL: 30 * time.Minute,
	})
	return router, engine, sessions
}

func TestNewRouter_Routes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router, engine, sessions := newTestRouter(t, ctrl)

	engine.EXPECT().Answer(gomock.Any(), "", "hello").Return(rag.Answer{SessionID: "s1", Text: "hi"}, nil)
	sessions.EXPECT().Create(gomock.Any(), 30*time.Minute).Return(&storage.SessionRecord{ID: "s1"}, nil)
	sessions.EXPECT().History(gomock.Any(), "s1").Return([]storage.Turn{}, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{name: "chat", method: http.MethodPost, path: "/api/chat", body: `{"message":"hello"}`, wantStatus: http.StatusOK},
		{name: "create session", method: http.MethodPost, path: "/api/sessions", wantStatus: http.StatusCreated},
		{name: "session history", method: http.MethodGet, path: "/api/sessions/s1/turns", wantStatus: http.StatusOK},
		{name: "health", method: http.MethodGet, path: "/healthz", wantStatus: http.StatusOK},
		{name: "unknown route", method: http.MethodGet, path: "/nope", wantStatus: http.StatusNotFound},
		{name: "chat wrong method", method: http.MethodGet, path: "/api/chat", wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewReader([]byte(tt.body)))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("%s %s status = %d, want %d (body: %s)", tt.method, tt.path, rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestNewRouter_ImportRoute(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router, _, _ := newTestRouter(t, ctrl)

	// Empty source path is rejected before the pipeline runs, so the
	// route is exercised without any store expectations.
	req := httptest.NewRequest(http.MethodPost, "/api/documents/import", bytes.NewReader([]byte(`{"source_path":""}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 (body: %s)", rec.Code, rec.Body.String())
	}
}
