package rag

import (
	"context"
	"errors"
	"fmt"

	"docchat/internal/contextutil"
	"docchat/internal/storage"
	"docchat/internal/vectorstore"
)

// Retriever embeds queries and runs similarity search with failover.
// It composes against the VectorIndex capability, not a concrete
// backend: primary is tried first, and on ErrIndexUnavailable the call
// is retried once against the fallback. The substitution is invisible
// in the result shape; only the usedFallback flag reports it. Failover
// is decided per call and never persists across calls.
type Retriever struct {
	embedder    Embedder
	primary     vectorstore.VectorIndex // nil when no remote index is configured
	fallback    vectorstore.VectorIndex
	chunkRepo   storage.ChunkStore
	docRepo     storage.DocumentStore
	defaultTopK int
	maxTopK     int
}

// NewRetriever creates a retriever. primary may be nil, in which case
// every search goes straight to the fallback.
func NewRetriever(
	embedder Embedder,
	primary vectorstore.VectorIndex,
	fallback vectorstore.VectorIndex,
	chunkRepo storage.ChunkStore,
	docRepo storage.DocumentStore,
	defaultTopK, maxTopK int,
) *Retriever {
	return &Retriever{
		embedder:    embedder,
		primary:     primary,
		fallback:    fallback,
		chunkRepo:   chunkRepo,
		docRepo:     docRepo,
		defaultTopK: defaultTopK,
		maxTopK:     maxTopK,
	}
}

// Retrieve returns the chunks most relevant to queryText, ranked by
// descending score, filtered to scores >= minScore. An empty result is
// a valid non-error outcome meaning "no relevant context". topK <= 0
// uses the configured default; values above the configured maximum are
// clamped, not rejected. Equal scores keep the backend's native order.
func (r *Retriever) Retrieve(ctx context.Context, queryText string, topK int, minScore float32) ([]RetrievalResult, bool, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if topK <= 0 {
		topK = r.defaultTopK
	}
	if topK > r.maxTopK {
		logger.DebugContext(ctx, "clamping topK", "requested", topK, "max", r.maxTopK)
		topK = r.maxTopK
	}

	embeddings, err := r.embedder.EmbedTexts(ctx, []string{queryText})
	if err != nil {
		return nil, false, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, false, fmt.Errorf("no embedding returned for query")
	}
	queryVector := embeddings[0]

	hits, usedFallback, err := r.search(ctx, queryVector, topK)
	if err != nil {
		return nil, usedFallback, err
	}

	results := make([]RetrievalResult, 0, len(hits))
	titles := make(map[string]string)
	for _, hit := range hits {
		if hit.Score < minScore {
			continue
		}

		chunk, err := r.chunkRepo.GetByID(ctx, hit.ID)
		if err != nil {
			// An index entry without a stored chunk means the index is
			// stale; skip the hit rather than failing the query.
			logger.WarnContext(ctx, "chunk missing from storage, skipping hit", "chunk_id", hit.ID, "error", err)
			continue
		}

		title, ok := titles[chunk.DocumentID]
		if !ok {
			doc, err := r.docRepo.GetByID(ctx, chunk.DocumentID)
			if err != nil {
				logger.WarnContext(ctx, "document missing for chunk", "document_id", chunk.DocumentID, "error", err)
				title = chunk.DocumentID
			} else {
				title = doc.Title
			}
			titles[chunk.DocumentID] = title
		}

		results = append(results, RetrievalResult{
			ChunkID:       chunk.ID,
			Score:         hit.Score,
			Rank:          len(results) + 1,
			Text:          chunk.Text,
			DocumentTitle: title,
			ChunkIndex:    chunk.ChunkIndex,
		})
	}

	logger.InfoContext(ctx, "retrieval completed",
		"hits", len(hits),
		"results", len(results),
		"top_k", topK,
		"min_score", minScore,
		"used_fallback", usedFallback,
	)
	return results, usedFallback, nil
}

// search runs the similarity search with the primary-then-fallback policy.
func (r *Retriever) search(ctx context.Context, queryVector []float32, topK int) ([]vectorstore.SearchResult, bool, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if r.primary == nil {
		hits, err := r.fallback.Search(ctx, queryVector, topK)
		if err != nil {
			return nil, true, fmt.Errorf("fallback search failed: %w", err)
		}
		return hits, true, nil
	}

	hits, err := r.primary.Search(ctx, queryVector, topK)
	if err == nil {
		return hits, false, nil
	}
	if !errors.Is(err, vectorstore.ErrIndexUnavailable) {
		return nil, false, fmt.Errorf("primary search failed: %w", err)
	}

	logger.WarnContext(ctx, "primary index unavailable, falling back to local scan", "error", err)
	hits, err = r.fallback.Search(ctx, queryVector, topK)
	if err != nil {
		return nil, true, fmt.Errorf("fallback search failed after primary unavailable: %w", err)
	}
	return hits, true, nil
}
