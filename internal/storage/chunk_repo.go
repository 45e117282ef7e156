package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chunk_store.go -package=mocks docchat/internal/storage ChunkStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// ChunkStore defines the interface for chunk storage operations.
type ChunkStore interface {
	// Insert inserts a single chunk into the database.
	// The chunk.ID must be set (UUID) before calling this method.
	Insert(ctx context.Context, chunk *ChunkRecord) error
	// DeleteByDocument deletes all chunks for a given document ID.
	DeleteByDocument(ctx context.Context, documentID string) error
	// ListIDsByDocument returns all chunk IDs for a document, ordered by chunk_index.
	ListIDsByDocument(ctx context.Context, documentID string) ([]string, error)
	// ListByDocument returns all chunks for a document, ordered by chunk_index.
	ListByDocument(ctx context.Context, documentID string) ([]*ChunkRecord, error)
	// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*ChunkRecord, error)
	// SetVector attaches an embedding vector to a chunk, replacing any
	// previous vector in one statement. A chunk either has no vector or
	// a whole one; partial updates are not possible.
	SetVector(ctx context.Context, id string, vec []float32) error
	// GetVector returns the chunk's embedding vector and its dimension.
	// A chunk without a vector returns (nil, 0, nil).
	GetVector(ctx context.Context, id string) ([]float32, int, error)
	// ListAllVectors returns every stored (chunk ID, vector) pair.
	// The local fallback index scans these for exact similarity search.
	ListAllVectors(ctx context.Context) ([]ChunkVector, error)
}

// ChunkRepo provides methods for chunk operations.
// It implements the ChunkStore interface.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// Insert inserts a single chunk into the database.
func (r *ChunkRepo) Insert(ctx context.Context, chunk *ChunkRecord) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO chunks (id, document_id, chunk_index, start_offset, end_offset, text) VALUES (?, ?, ?, ?, ?, ?)",
		chunk.ID, chunk.DocumentID, chunk.ChunkIndex, chunk.StartOffset, chunk.EndOffset, chunk.Text,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	return nil
}

// DeleteByDocument deletes all chunks for a given document ID.
// Used when re-importing a document to remove the superseded chunk set.
func (r *ChunkRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks by document: %w", err)
	}
	return nil
}

// ListIDsByDocument returns all chunk IDs for a document, ordered by chunk_index.
// Returns an empty slice if no chunks exist (not an error).
// Used to collect vector index point IDs for deletion before re-importing.
func (r *ChunkRepo) ListIDsByDocument(ctx context.Context, documentID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM chunks WHERE document_id = ? ORDER BY chunk_index",
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk IDs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan chunk ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

// ListByDocument returns all chunks for a document, ordered by chunk_index.
func (r *ChunkRepo) ListByDocument(ctx context.Context, documentID string) ([]*ChunkRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, document_id, chunk_index, start_offset, end_offset, text, created_at FROM chunks WHERE document_id = ? ORDER BY chunk_index",
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var chunks []*ChunkRecord
	for rows.Next() {
		var chunk ChunkRecord
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.ChunkIndex, &chunk.StartOffset, &chunk.EndOffset, &chunk.Text, &chunk.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, &chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return chunks, nil
}

// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
func (r *ChunkRepo) GetByID(ctx context.Context, id string) (*ChunkRecord, error) {
	var chunk ChunkRecord
	err := r.db.QueryRowContext(ctx,
		"SELECT id, document_id, chunk_index, start_offset, end_offset, text, created_at FROM chunks WHERE id = ?",
		id,
	).Scan(&chunk.ID, &chunk.DocumentID, &chunk.ChunkIndex, &chunk.StartOffset, &chunk.EndOffset, &chunk.Text, &chunk.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk: %w", err)
	}

	return &chunk, nil
}

// SetVector attaches an embedding vector to a chunk.
// Vectors are stored JSON-encoded alongside the chunk so the local
// fallback index can be rebuilt from storage alone.
func (r *ChunkRepo) SetVector(ctx context.Context, id string, vec []float32) error {
	encoded, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("failed to encode vector: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		"UPDATE chunks SET embedding = ?, embedding_dim = ? WHERE id = ?",
		string(encoded), len(vec), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set chunk vector: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check vector update: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetVector returns the chunk's embedding vector and its dimension.
func (r *ChunkRepo) GetVector(ctx context.Context, id string) ([]float32, int, error) {
	var encoded sql.NullString
	var dim int
	err := r.db.QueryRowContext(ctx,
		"SELECT embedding, embedding_dim FROM chunks WHERE id = ?", id,
	).Scan(&encoded, &dim)

	if err == sql.ErrNoRows {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query chunk vector: %w", err)
	}

	if !encoded.Valid || encoded.String == "" {
		return nil, 0, nil
	}

	var vec []float32
	if err := json.Unmarshal([]byte(encoded.String), &vec); err != nil {
		return nil, 0, fmt.Errorf("failed to decode vector: %w", err)
	}
	return vec, dim, nil
}

// ListAllVectors returns every stored (chunk ID, vector) pair.
// Chunks without a vector are skipped. The returned slice is a fresh
// copy, so callers get a read-consistent snapshot of the stored vectors.
func (r *ChunkRepo) ListAllVectors(ctx context.Context) ([]ChunkVector, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, embedding FROM chunks WHERE embedding IS NOT NULL ORDER BY document_id, chunk_index")
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk vectors: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var vectors []ChunkVector
	for rows.Next() {
		var id, encoded string
		if err := rows.Scan(&id, &encoded); err != nil {
			return nil, fmt.Errorf("failed to scan chunk vector: %w", err)
		}
		var vec []float32
		if err := json.Unmarshal([]byte(encoded), &vec); err != nil {
			return nil, fmt.Errorf("failed to decode vector for chunk %s: %w", id, err)
		}
		vectors = append(vectors, ChunkVector{ChunkID: id, Vec: vec})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return vectors, nil
}
