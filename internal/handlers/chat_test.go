package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/mock/gomock"

	"docchat/internal/llm"
	"docchat/internal/rag"
	"docchat/internal/rag/mocks"
	"docchat/internal/vectorstore"
)

func TestNewChatHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler := NewChatHandler(mocks.NewMockEngine(ctrl))
	if handler == nil {
		t.Fatal("NewChatHandler() returned nil")
	}
}

func TestChatHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		mockSetup  func(*mocks.MockEngine)
		wantStatus int
		check      func(t *testing.T, body []byte)
	}{
		{
			name:   "successful answer",
			method: http.MethodPost,
			body:   `{"session_id":"s1","message":"how do I install?"}`,
			mockSetup: func(m *mocks.MockEngine) {
				m.EXPECT().Answer(gomock.Any(), "s1", "how do I install?").Return(rag.Answer{
					SessionID:      "s1",
					Text:           "Run make install.",
					SourceChunkIDs: []string{"c1"},
					UsedFallback:   false,
				}, nil)
			},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var answer rag.Answer
				if err := json.Unmarshal(body, &answer); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if answer.Text != "Run make install." {
					t.Errorf("answer = %q", answer.Text)
				}
				if answer.SessionID != "s1" {
					t.Errorf("session_id = %q, want s1", answer.SessionID)
				}
			},
		},
		{
			name:       "method not allowed",
			method:     http.MethodGet,
			body:       "",
			mockSetup:  func(m *mocks.MockEngine) {},
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "invalid body",
			method:     http.MethodPost,
			body:       "{not json",
			mockSetup:  func(m *mocks.MockEngine) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty message",
			method:     http.MethodPost,
			body:       `{"message":""}`,
			mockSetup:  func(m *mocks.MockEngine) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "invalid query maps to 400",
			method: http.MethodPost,
			body:   `{"message":"q"}`,
			mockSetup: func(m *mocks.MockEngine) {
				m.EXPECT().Answer(gomock.Any(), "", "q").Return(rag.Answer{}, rag.ErrInvalidConfig)
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "generation backend failure maps to 502",
			method: http.MethodPost,
			body:   `{"message":"q"}`,
			mockSetup: func(m *mocks.MockEngine) {
				m.EXPECT().Answer(gomock.Any(), "", "q").Return(rag.Answer{}, llm.ErrGenerationBackend)
			},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:   "embedding backend failure maps to 502",
			method: http.MethodPost,
			body:   `{"message":"q"}`,
			mockSetup: func(m *mocks.MockEngine) {
				m.EXPECT().Answer(gomock.Any(), "", "q").Return(rag.Answer{}, llm.ErrEmbeddingBackend)
			},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:   "index unavailable maps to 502",
			method: http.MethodPost,
			body:   `{"message":"q"}`,
			mockSetup: func(m *mocks.MockEngine) {
				m.EXPECT().Answer(gomock.Any(), "", "q").Return(rag.Answer{}, vectorstore.ErrIndexUnavailable)
			},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:   "unexpected error maps to 500",
			method: http.MethodPost,
			body:   `{"message":"q"}`,
			mockSetup: func(m *mocks.MockEngine) {
				m.EXPECT().Answer(gomock.Any(), "", "q").Return(rag.Answer{}, errors.New("boom"))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockEngine := mocks.NewMockEngine(ctrl)
			tt.mockSetup(mockEngine)
			handler := NewChatHandler(mockEngine)

			req := httptest.NewRequest(tt.method, "/api/chat", bytes.NewReader([]byte(tt.body)))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body: %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.check != nil {
				tt.check(t, rec.Body.Bytes())
			}
		})
	}
}
