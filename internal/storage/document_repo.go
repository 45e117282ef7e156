package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_store.go -package=mocks docchat/internal/storage DocumentStore

import (
	"context"
	"database/sql"
	"fmt"
)

// DocumentStore defines the interface for document storage operations.
type DocumentStore interface {
	// Upsert inserts a document or updates it in place when the source
	// path already exists. The document's ID must be set before calling.
	Upsert(ctx context.Context, doc *DocumentRecord) error
	// GetByID gets a document by its ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*DocumentRecord, error)
	// GetBySourcePath gets a document by its source path. Returns ErrNotFound if not found.
	GetBySourcePath(ctx context.Context, sourcePath string) (*DocumentRecord, error)
	// ListAll returns all documents ordered by title.
	ListAll(ctx context.Context) ([]*DocumentRecord, error)
}

// DocumentRepo provides methods for document operations.
// It implements the DocumentStore interface.
type DocumentRepo struct {
	db *sql.DB
}

// NewDocumentRepo creates a new DocumentRepo.
func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Upsert inserts a document or updates it in place when the source path already exists.
func (r *DocumentRepo) Upsert(ctx context.Context, doc *DocumentRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (id, title, source_path, content, hash) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(source_path) DO UPDATE SET title = excluded.title, content = excluded.content, hash = excluded.hash`,
		doc.ID, doc.Title, doc.SourcePath, doc.Content, doc.Hash,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// GetByID gets a document by its ID. Returns ErrNotFound if not found.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*DocumentRecord, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		"SELECT id, title, source_path, content, hash, created_at FROM documents WHERE id = ?", id))
}

// GetBySourcePath gets a document by its source path. Returns ErrNotFound if not found.
func (r *DocumentRepo) GetBySourcePath(ctx context.Context, sourcePath string) (*DocumentRecord, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		"SELECT id, title, source_path, content, hash, created_at FROM documents WHERE source_path = ?", sourcePath))
}

func (r *DocumentRepo) scanOne(row *sql.Row) (*DocumentRecord, error) {
	var doc DocumentRecord
	err := row.Scan(&doc.ID, &doc.Title, &doc.SourcePath, &doc.Content, &doc.Hash, &doc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}
	return &doc, nil
}

// ListAll returns all documents ordered by title.
func (r *DocumentRepo) ListAll(ctx context.Context) ([]*DocumentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, title, source_path, content, hash, created_at FROM documents ORDER BY title")
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var docs []*DocumentRecord
	for rows.Next() {
		var doc DocumentRecord
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.SourcePath, &doc.Content, &doc.Hash, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, &doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return docs, nil
}
