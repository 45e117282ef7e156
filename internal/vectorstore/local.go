package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"

	"docchat/internal/contextutil"
	"docchat/internal/storage"
)

// VectorSource supplies the stored chunk vectors scanned by LocalIndex.
// storage.ChunkRepo satisfies it.
type VectorSource interface {
	ListAllVectors(ctx context.Context) ([]storage.ChunkVector, error)
}

// LocalIndex implements VectorIndex with an exact cosine-similarity
// scan over the vectors held in the document store. It serves as the
// fallback when the remote index is unavailable, and as the only
// backend when no remote index is configured.
//
// The index holds no state of its own: vectors live in storage, so the
// index is always consistent with it and needs no rebuild. Each search
// scans a fresh snapshot returned by the source, which keeps concurrent
// imports from being observed half-applied.
type LocalIndex struct {
	source     VectorSource
	vectorSize int
}

// NewLocalIndex creates a local exact-scan index over the given vector source.
func NewLocalIndex(source VectorSource, vectorSize int) *LocalIndex {
	return &LocalIndex{
		source:     source,
		vectorSize: vectorSize,
	}
}

// Upsert validates dimensions but stores nothing: the import pipeline
// persists vectors through the chunk store, which is this index's
// source of truth.
func (s *LocalIndex) Upsert(ctx context.Context, points []Point) error {
	for _, point := range points {
		if len(point.Vec) != s.vectorSize {
			return fmt.Errorf("%w: point %s has dimension %d, expected %d", ErrDimensionMismatch, point.ID, len(point.Vec), s.vectorSize)
		}
	}
	return nil
}

// Delete is a no-op for the same reason as Upsert: deleting the chunk
// from storage removes it from every subsequent scan.
func (s *LocalIndex) Delete(ctx context.Context, ids []string) error {
	return nil
}

// Search scans all stored vectors and returns the topK most similar by
// cosine similarity, descending. Ties keep storage order, so repeated
// searches over the same corpus rank identically.
func (s *LocalIndex) Search(ctx context.Context, query []float32, topK int) ([]SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if topK <= 0 {
		return nil, fmt.Errorf("topK must be greater than 0")
	}
	if len(query) != s.vectorSize {
		return nil, fmt.Errorf("%w: query has dimension %d, expected %d", ErrDimensionMismatch, len(query), s.vectorSize)
	}

	vectors, err := s.source.ListAllVectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored vectors: %w", err)
	}

	results := make([]SearchResult, 0, len(vectors))
	for _, cv := range vectors {
		if len(cv.Vec) != s.vectorSize {
			return nil, fmt.Errorf("%w: stored vector for chunk %s has dimension %d, expected %d", ErrDimensionMismatch, cv.ChunkID, len(cv.Vec), s.vectorSize)
		}
		results = append(results, SearchResult{
			ID:    cv.ChunkID,
			Score: cosineSimilarity(query, cv.Vec),
		})
	}

	// Stable sort preserves storage order for equal scores.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}

	logger.DebugContext(ctx, "local scan completed", "scanned", len(vectors), "top_k", topK, "results", len(results))
	return results, nil
}

// cosineSimilarity computes the cosine of the angle between a and b.
// Matches the ranking metric of the remote index's cosine distance.
// Zero vectors score 0.
func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
