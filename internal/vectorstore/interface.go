package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_index.go -package=mocks docchat/internal/vectorstore VectorIndex

import (
	"context"
	"errors"
)

var (
	// ErrIndexUnavailable is returned when the remote index cannot be
	// reached (connection or timeout errors). The retriever falls back
	// to the local exact scan on this error.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrDimensionMismatch is returned when a vector's dimension does
	// not match the configured embedding dimension. Never retried and
	// never silently truncated or padded.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Point represents a vector point with metadata, keyed by chunk ID.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a single similarity search hit.
type SearchResult struct {
	ID    string
	Score float32
	Meta  map[string]any
}

// VectorIndex is the similarity-search capability. Two implementations
// exist: QdrantIndex (remote approximate index) and LocalIndex (exact
// scan over vectors held in the document store). Both rank with cosine
// similarity over the same embedding dimension, so a fallback
// substitution changes availability, not ranking.
type VectorIndex interface {
	// Upsert inserts or updates points in the index.
	Upsert(ctx context.Context, points []Point) error

	// Delete removes points by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Search returns up to topK results ordered by descending score.
	Search(ctx context.Context, query []float32, topK int) ([]SearchResult, error)
}
