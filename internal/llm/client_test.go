package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080", "test-key", "test-model")
	if client == nil {
		t.Fatal("NewClient() returned nil")
	}
	if client.Model != "test-model" {
		t.Errorf("NewClient() Model = %v, want test-model", client.Model)
	}
}

func TestClient_ChatWithMessages(t *testing.T) {
	tests := []struct {
		name       string
		messages   []Message
		params     ChatParams
		serverResp func(w http.ResponseWriter, r *http.Request)
		wantErr    bool
		want       string
	}{
		{
			name: "successful completion",
			messages: []Message{
				{Role: "system", Content: "You are helpful."},
				{Role: "user", Content: "Hello"},
			},
			params: ChatParams{},
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/chat/completions" {
					t.Errorf("expected /v1/chat/completions, got %s", r.URL.Path)
				}

				var req ChatRequest
				_ = json.NewDecoder(r.Body).Decode(&req)
				if len(req.Messages) != 2 {
					t.Errorf("request carried %d messages, want 2", len(req.Messages))
				}
				if req.Model != "test-model" {
					t.Errorf("request model = %q, want client default test-model", req.Model)
				}

				resp := ChatResponse{
					Choices: []ChatChoice{
						{Message: ChatChoiceMessage{Role: "assistant", Content: "Hi there"}},
					},
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(resp)
			},
			want: "Hi there",
		},
		{
			name:     "params model overrides default",
			messages: []Message{{Role: "user", Content: "q"}},
			params:   ChatParams{Model: "override-model"},
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				var req ChatRequest
				_ = json.NewDecoder(r.Body).Decode(&req)
				if req.Model != "override-model" {
					t.Errorf("request model = %q, want override-model", req.Model)
				}

				resp := ChatResponse{
					Choices: []ChatChoice{
						{Message: ChatChoiceMessage{Role: "assistant", Content: "ok"}},
					},
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(resp)
			},
			want: "ok",
		},
		{
			name:     "no choices",
			messages: []Message{{Role: "user", Content: "q"}},
			params:   ChatParams{},
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(ChatResponse{})
			},
			wantErr: true,
		},
		{
			name:     "client error is not retried",
			messages: []Message{{Role: "user", Content: "q"}},
			params:   ChatParams{},
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad request", http.StatusBadRequest)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResp))
			defer server.Close()

			client := NewClient(server.URL, "test-key", "test-model")
			got, err := client.ChatWithMessages(context.Background(), tt.messages, tt.params)

			if tt.wantErr {
				if err == nil {
					t.Error("ChatWithMessages() expected error, got nil")
				}
				if err != nil && !errors.Is(err, ErrGenerationBackend) {
					t.Errorf("ChatWithMessages() error = %v, want ErrGenerationBackend", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ChatWithMessages() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ChatWithMessages() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClient_ChatWithMessages_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		resp := ChatResponse{
			Choices: []ChatChoice{
				{Message: ChatChoiceMessage{Role: "assistant", Content: "recovered"}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "test-model")
	got, err := client.ChatWithMessages(context.Background(), []Message{{Role: "user", Content: "q"}}, ChatParams{})
	if err != nil {
		t.Fatalf("ChatWithMessages() error = %v, want retry to succeed", err)
	}
	if got != "recovered" {
		t.Errorf("ChatWithMessages() = %q, want recovered", got)
	}
	if calls.Load() != 2 {
		t.Errorf("ChatWithMessages() made %d calls, want 2", calls.Load())
	}
}
