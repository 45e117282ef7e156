package storage

import (
	"context"
	"errors"
	"testing"
)

func insertTestDocument(t *testing.T, repo *DocumentRepo, id, sourcePath string) {
	t.Helper()
	err := repo.Upsert(context.Background(), &DocumentRecord{
		ID:         id,
		Title:      "Test",
		SourcePath: sourcePath,
		Content:    "content",
		Hash:       "hash",
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
}

func TestChunkRepo_InsertAndGet(t *testing.T) {
	db := newTestDB(t)
	docRepo := NewDocumentRepo(db)
	repo := NewChunkRepo(db)
	ctx := context.Background()

	insertTestDocument(t, docRepo, "doc-1", "a.md")

	chunk := &ChunkRecord{
		ID:          "chunk-1",
		DocumentID:  "doc-1",
		ChunkIndex:  0,
		StartOffset: 0,
		EndOffset:   10,
		Text:        "some text.",
	}
	if err := repo.Insert(ctx, chunk); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "chunk-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Text != chunk.Text || got.DocumentID != "doc-1" || got.EndOffset != 10 {
		t.Errorf("GetByID() = %+v, want fields from %+v", got, chunk)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestChunkRepo_Insert_ForeignKeyEnforced(t *testing.T) {
	db := newTestDB(t)
	repo := NewChunkRepo(db)

	err := repo.Insert(context.Background(), &ChunkRecord{
		ID:         "chunk-orphan",
		DocumentID: "no-such-doc",
		Text:       "orphan",
	})
	if err == nil {
		t.Error("Insert() with missing document should fail")
	}
}

func TestChunkRepo_ListByDocumentOrdered(t *testing.T) {
	db := newTestDB(t)
	docRepo := NewDocumentRepo(db)
	repo := NewChunkRepo(db)
	ctx := context.Background()

	insertTestDocument(t, docRepo, "doc-1", "a.md")

	// Insert out of index order
	for _, c := range []*ChunkRecord{
		{ID: "c2", DocumentID: "doc-1", ChunkIndex: 2, Text: "third"},
		{ID: "c0", DocumentID: "doc-1", ChunkIndex: 0, Text: "first"},
		{ID: "c1", DocumentID: "doc-1", ChunkIndex: 1, Text: "second"},
	} {
		if err := repo.Insert(ctx, c); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	chunks, err := repo.ListByDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("ListByDocument() error = %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("ListByDocument() = %d chunks, want 3", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.ChunkIndex != i {
			t.Errorf("ListByDocument() chunk[%d].ChunkIndex = %d, want %d", i, chunk.ChunkIndex, i)
		}
	}

	ids, err := repo.ListIDsByDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("ListIDsByDocument() error = %v", err)
	}
	want := []string{"c0", "c1", "c2"}
	for i, id := range ids {
		if id != want[i] {
			t.Errorf("ListIDsByDocument()[%d] = %q, want %q", i, id, want[i])
		}
	}
}

func TestChunkRepo_DeleteByDocument(t *testing.T) {
	db := newTestDB(t)
	docRepo := NewDocumentRepo(db)
	repo := NewChunkRepo(db)
	ctx := context.Background()

	insertTestDocument(t, docRepo, "doc-1", "a.md")
	insertTestDocument(t, docRepo, "doc-2", "b.md")

	mustInsert := func(c *ChunkRecord) {
		if err := repo.Insert(ctx, c); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	mustInsert(&ChunkRecord{ID: "c1", DocumentID: "doc-1", ChunkIndex: 0, Text: "a"})
	mustInsert(&ChunkRecord{ID: "c2", DocumentID: "doc-2", ChunkIndex: 0, Text: "b"})

	if err := repo.DeleteByDocument(ctx, "doc-1"); err != nil {
		t.Fatalf("DeleteByDocument() error = %v", err)
	}

	if _, err := repo.GetByID(ctx, "c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("chunk c1 should be deleted, got err = %v", err)
	}
	if _, err := repo.GetByID(ctx, "c2"); err != nil {
		t.Errorf("chunk c2 of another document should survive, got err = %v", err)
	}
}

func TestChunkRepo_Vectors(t *testing.T) {
	db := newTestDB(t)
	docRepo := NewDocumentRepo(db)
	repo := NewChunkRepo(db)
	ctx := context.Background()

	insertTestDocument(t, docRepo, "doc-1", "a.md")
	if err := repo.Insert(ctx, &ChunkRecord{ID: "c1", DocumentID: "doc-1", ChunkIndex: 0, Text: "a"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	// No vector yet
	vec, dim, err := repo.GetVector(ctx, "c1")
	if err != nil {
		t.Fatalf("GetVector() error = %v", err)
	}
	if vec != nil || dim != 0 {
		t.Errorf("GetVector() before SetVector = (%v, %d), want (nil, 0)", vec, dim)
	}

	want := []float32{0.1, 0.2, 0.3}
	if err := repo.SetVector(ctx, "c1", want); err != nil {
		t.Fatalf("SetVector() error = %v", err)
	}

	vec, dim, err = repo.GetVector(ctx, "c1")
	if err != nil {
		t.Fatalf("GetVector() error = %v", err)
	}
	if dim != 3 || len(vec) != 3 {
		t.Fatalf("GetVector() = (%v, %d), want dimension 3", vec, dim)
	}
	for i := range want {
		if vec[i] != want[i] {
			t.Errorf("GetVector()[%d] = %v, want %v", i, vec[i], want[i])
		}
	}

	// Replacing the vector is a whole-value update
	if err := repo.SetVector(ctx, "c1", []float32{1, 2}); err != nil {
		t.Fatalf("SetVector() replace error = %v", err)
	}
	vec, dim, err = repo.GetVector(ctx, "c1")
	if err != nil {
		t.Fatalf("GetVector() error = %v", err)
	}
	if dim != 2 || len(vec) != 2 {
		t.Errorf("GetVector() after replace = (%v, %d), want dimension 2", vec, dim)
	}

	if err := repo.SetVector(ctx, "missing", want); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetVector() on missing chunk error = %v, want ErrNotFound", err)
	}
}

func TestChunkRepo_ListAllVectors(t *testing.T) {
	db := newTestDB(t)
	docRepo := NewDocumentRepo(db)
	repo := NewChunkRepo(db)
	ctx := context.Background()

	insertTestDocument(t, docRepo, "doc-1", "a.md")

	mustInsert := func(c *ChunkRecord) {
		if err := repo.Insert(ctx, c); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	mustInsert(&ChunkRecord{ID: "c1", DocumentID: "doc-1", ChunkIndex: 0, Text: "a"})
	mustInsert(&ChunkRecord{ID: "c2", DocumentID: "doc-1", ChunkIndex: 1, Text: "b"})

	// Only c1 gets a vector; c2 must be skipped.
	if err := repo.SetVector(ctx, "c1", []float32{1, 0}); err != nil {
		t.Fatalf("SetVector() error = %v", err)
	}

	vectors, err := repo.ListAllVectors(ctx)
	if err != nil {
		t.Fatalf("ListAllVectors() error = %v", err)
	}
	if len(vectors) != 1 {
		t.Fatalf("ListAllVectors() = %d vectors, want 1 (vectorless chunks skipped)", len(vectors))
	}
	if vectors[0].ChunkID != "c1" {
		t.Errorf("ListAllVectors()[0].ChunkID = %q, want c1", vectors[0].ChunkID)
	}
}
