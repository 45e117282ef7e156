package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_engine.go -package=mocks docchat/internal/rag Engine

import (
	"context"
	"errors"

	"docchat/internal/llm"
)

// ErrInvalidConfig is returned for invalid retrieval or assembly
// parameters (non-positive budget, empty query).
var ErrInvalidConfig = errors.New("invalid retrieval config")

// RetrievalResult is one ranked retrieval hit, hydrated with the chunk
// text and its document of origin. Ephemeral: produced per query,
// never persisted.
type RetrievalResult struct {
	ChunkID       string
	Score         float32
	Rank          int // 1-based rank in backend order
	Text          string
	DocumentTitle string
	ChunkIndex    int
}

// Answer is the result of answering one query against the corpus.
type Answer struct {
	// SessionID identifies the session the exchange was recorded in.
	// A new ID is returned when the request carried none or an expired one.
	SessionID string `json:"session_id"`
	// Text is the generated answer.
	Text string `json:"answer"`
	// SourceChunkIDs lists the chunks whose text was included in the
	// prompt context, highest-scoring first.
	SourceChunkIDs []string `json:"source_chunk_ids"`
	// UsedFallback reports whether retrieval served from the local
	// exact-scan index instead of the primary.
	UsedFallback bool `json:"used_fallback"`
}

// Embedder generates one embedding vector per input text, in input order.
// llm.EmbeddingsClient satisfies it.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a completion for an ordered message list.
// llm.Client satisfies it.
type Generator interface {
	ChatWithMessages(ctx context.Context, messages []llm.Message, params llm.ChatParams) (string, error)
}

// Engine answers questions over the document corpus using
// retrieval-augmented generation.
type Engine interface {
	// Answer retrieves context for the query, generates an answer, and
	// records the exchange in the session. An empty sessionID starts a
	// new session; so does an expired one.
	Answer(ctx context.Context, sessionID, query string) (Answer, error)
}
