package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"docchat/internal/contextutil"
	"docchat/internal/storage"
	"docchat/internal/vectorstore"
)

// Embedder generates one embedding vector per input text, in input order.
// Defined from the pipeline's perspective; llm.EmbeddingsClient satisfies it.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Pipeline orchestrates importing documents: chunking, embedding,
// persisting chunks and vectors, and indexing into the vector index.
// Imports may run concurrently with query-time retrieval; the index
// tolerates reads during writes and the local fallback scans a
// storage snapshot.
type Pipeline struct {
	docRepo    storage.DocumentStore
	chunkRepo  storage.ChunkStore
	embedder   Embedder
	index      vectorstore.VectorIndex
	chunker    *WindowChunker
	vectorSize int
}

// ImportReport summarizes one import run.
type ImportReport struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Chunks     int    `json:"chunks"`
	Skipped    bool   `json:"skipped"` // true when content hash was unchanged
}

// NewPipeline creates a new import pipeline.
func NewPipeline(
	docRepo storage.DocumentStore,
	chunkRepo storage.ChunkStore,
	embedder Embedder,
	index vectorstore.VectorIndex,
	chunker *WindowChunker,
	vectorSize int,
) *Pipeline {
	return &Pipeline{
		docRepo:    docRepo,
		chunkRepo:  chunkRepo,
		embedder:   embedder,
		index:      index,
		chunker:    chunker,
		vectorSize: vectorSize,
	}
}

// ImportDocument imports a single document: chunks it, embeds the
// chunks, persists chunks with their vectors, and indexes them.
// Re-importing unchanged content (same hash) is skipped. Re-importing
// changed content replaces the document's whole chunk set; the old set
// is removed from both the index and storage first, so chunk ordinals
// stay contiguous and the index never holds chunks storage has dropped.
func (p *Pipeline) ImportDocument(ctx context.Context, sourcePath string, content []byte) (*ImportReport, error) {
	logger := contextutil.LoggerFromContext(ctx)

	hash := sha256.Sum256(content)
	hashHex := fmt.Sprintf("%x", hash)

	existing, err := p.docRepo.GetBySourcePath(ctx, sourcePath)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing document: %w", err)
	}

	if existing != nil && existing.Hash == hashHex {
		logger.DebugContext(ctx, "skipping unchanged document", "source_path", sourcePath, "hash", hashHex)
		return &ImportReport{DocumentID: existing.ID, Title: existing.Title, Skipped: true}, nil
	}

	title := DocumentTitle(content, filepath.Base(sourcePath))
	chunks := p.chunker.ChunkText(string(content))

	docID := uuid.New().String()
	if existing != nil {
		docID = existing.ID
	}

	// Embed before touching storage so a backend failure leaves the
	// previous document and chunk set fully intact.
	var embeddings [][]float32
	if len(chunks) > 0 {
		chunkTexts := make([]string, len(chunks))
		for i, chunk := range chunks {
			chunkTexts[i] = chunk.Text
		}

		embeddings, err = p.embedder.EmbedTexts(ctx, chunkTexts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks: %w", err)
		}
		if len(embeddings) != len(chunks) {
			return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(embeddings))
		}
	}

	// Chunk rows reference the document, so the row must exist before
	// they are inserted. The hash stays empty until the whole chunk set
	// is persisted: a half-imported document must never match the
	// unchanged-content skip on retry.
	if err := p.docRepo.Upsert(ctx, &storage.DocumentRecord{
		ID:         docID,
		Title:      title,
		SourcePath: sourcePath,
		Content:    string(content),
	}); err != nil {
		return nil, fmt.Errorf("failed to upsert document: %w", err)
	}

	// Remove the superseded chunk set from the index first, then storage.
	if existing != nil {
		oldChunkIDs, err := p.chunkRepo.ListIDsByDocument(ctx, docID)
		if err != nil {
			return nil, fmt.Errorf("failed to list old chunk IDs: %w", err)
		}

		if len(oldChunkIDs) > 0 {
			if err := p.index.Delete(ctx, oldChunkIDs); err != nil {
				logger.WarnContext(ctx, "failed to delete old chunks from index", "error", err, "count", len(oldChunkIDs))
				// Continue anyway - upsert below overwrites live IDs and
				// ReindexAll can rebuild the index from storage.
			}

			if err := p.chunkRepo.DeleteByDocument(ctx, docID); err != nil {
				return nil, fmt.Errorf("failed to delete old chunks: %w", err)
			}
		}
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, chunk := range chunks {
		chunkID := uuid.New().String()

		if err := p.chunkRepo.Insert(ctx, &storage.ChunkRecord{
			ID:          chunkID,
			DocumentID:  docID,
			ChunkIndex:  chunk.Index,
			StartOffset: chunk.Start,
			EndOffset:   chunk.End,
			Text:        chunk.Text,
		}); err != nil {
			return nil, fmt.Errorf("failed to insert chunk: %w", err)
		}

		if err := p.chunkRepo.SetVector(ctx, chunkID, embeddings[i]); err != nil {
			return nil, fmt.Errorf("failed to store chunk vector: %w", err)
		}

		points[i] = vectorstore.Point{
			ID:  chunkID,
			Vec: embeddings[i],
			Meta: map[string]any{
				"document_id":    docID,
				"document_title": title,
				"source_path":    sourcePath,
				"chunk_index":    chunk.Index,
			},
		}
	}

	if len(points) > 0 {
		if err := p.index.Upsert(ctx, points); err != nil {
			return nil, fmt.Errorf("failed to upsert vectors: %w", err)
		}
	}

	if err := p.docRepo.Upsert(ctx, &storage.DocumentRecord{
		ID:         docID,
		Title:      title,
		SourcePath: sourcePath,
		Content:    string(content),
		Hash:       hashHex,
	}); err != nil {
		return nil, fmt.Errorf("failed to record content hash: %w", err)
	}

	logger.InfoContext(ctx, "imported document", "source_path", sourcePath, "title", title, "chunks", len(chunks))
	return &ImportReport{DocumentID: docID, Title: title, Chunks: len(chunks)}, nil
}

// ReindexAll rebuilds the vector index from storage. The index is a
// derived cache keyed by chunk ID, so a full rebuild restores
// consistency after index-side loss. Chunks missing a vector of the
// current dimension are re-embedded first.
func (p *Pipeline) ReindexAll(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	docs, err := p.docRepo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	var indexed, reembedded int
	for _, doc := range docs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		chunks, err := p.chunkRepo.ListByDocument(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("failed to list chunks for document %s: %w", doc.ID, err)
		}

		points := make([]vectorstore.Point, 0, len(chunks))
		for _, chunk := range chunks {
			vec, dim, err := p.chunkRepo.GetVector(ctx, chunk.ID)
			if err != nil {
				return fmt.Errorf("failed to load vector for chunk %s: %w", chunk.ID, err)
			}

			// Skip re-embedding chunks that already carry a vector of
			// the current dimension.
			if vec == nil || dim != p.vectorSize {
				vectors, err := p.embedder.EmbedTexts(ctx, []string{chunk.Text})
				if err != nil {
					return fmt.Errorf("failed to re-embed chunk %s: %w", chunk.ID, err)
				}
				vec = vectors[0]
				if err := p.chunkRepo.SetVector(ctx, chunk.ID, vec); err != nil {
					return fmt.Errorf("failed to store re-embedded vector: %w", err)
				}
				reembedded++
			}

			points = append(points, vectorstore.Point{
				ID:  chunk.ID,
				Vec: vec,
				Meta: map[string]any{
					"document_id":    doc.ID,
					"document_title": doc.Title,
					"source_path":    doc.SourcePath,
					"chunk_index":    chunk.ChunkIndex,
				},
			})
		}

		if len(points) > 0 {
			if err := p.index.Upsert(ctx, points); err != nil {
				return fmt.Errorf("failed to upsert vectors for document %s: %w", doc.ID, err)
			}
			indexed += len(points)
		}
	}

	logger.InfoContext(ctx, "reindex completed", "documents", len(docs), "chunks_indexed", indexed, "chunks_reembedded", reembedded)
	return nil
}
