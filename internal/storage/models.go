package storage

import "time"

// DocumentRecord represents an imported document in the database.
// The content is immutable once chunked; re-importing a changed
// document replaces its chunk set rather than mutating the old one.
type DocumentRecord struct {
	ID         string // UUID
	Title      string
	SourcePath string // path or URI the document was imported from
	Content    string
	Hash       string // SHA256 hex string of content
	CreatedAt  time.Time
}

// ChunkRecord represents a chunk of a document's text, sized for
// retrieval. Offsets are rune offsets into the parent document content.
type ChunkRecord struct {
	ID          string // UUID (same as the vector index point ID)
	DocumentID  string // UUID (foreign key to documents.id)
	ChunkIndex  int    // Ordinal within document (starts at 0, gapless)
	StartOffset int    // Rune offset, inclusive
	EndOffset   int    // Rune offset, exclusive
	Text        string
	CreatedAt   time.Time
}

// ChunkVector pairs a chunk ID with its embedding vector.
// Used by the local fallback index to scan all stored vectors.
type ChunkVector struct {
	ChunkID string
	Vec     []float32
}

// SessionRecord represents a chat session with an expiry.
type SessionRecord struct {
	ID        string // UUID
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Turn is a single conversation turn within a session.
type Turn struct {
	Seq       int    // Monotonic sequence within the session (starts at 1)
	Role      string // "user" or "assistant"
	Text      string
	CreatedAt time.Time
}
