package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_session_store.go -package=mocks docchat/internal/storage SessionStore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionStore defines the interface for chat session storage.
// Sessions are append-only logs of turns with an expiry; expired
// sessions behave as if they do not exist.
type SessionStore interface {
	// Create creates a new session expiring after ttl.
	Create(ctx context.Context, ttl time.Duration) (*SessionRecord, error)
	// Get returns a session by ID. Expired or missing sessions return ErrNotFound.
	Get(ctx context.Context, id string) (*SessionRecord, error)
	// History returns the session's turns ordered by sequence number.
	History(ctx context.Context, id string) ([]Turn, error)
	// AppendTurn appends a turn to the session log. Appends are atomic
	// per session: concurrent callers never lose or interleave a turn.
	AppendTurn(ctx context.Context, id string, role, text string) error
	// Touch extends the session expiry to ttl from now.
	Touch(ctx context.Context, id string, ttl time.Duration) error
}

// SessionRepo provides methods for chat session operations.
// It implements the SessionStore interface.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo creates a new SessionRepo.
func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session expiring after ttl.
func (r *SessionRepo) Create(ctx context.Context, ttl time.Duration) (*SessionRecord, error) {
	now := time.Now().UTC()
	session := &SessionRecord{
		ID:        uuid.New().String(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO sessions (id, created_at, expires_at) VALUES (?, ?, ?)",
		session.ID, session.CreatedAt, session.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create session: %v", ErrSessionStore, err)
	}

	return session, nil
}

// Get returns a session by ID. Expired or missing sessions return ErrNotFound.
func (r *SessionRepo) Get(ctx context.Context, id string) (*SessionRecord, error) {
	var session SessionRecord
	err := r.db.QueryRowContext(ctx,
		"SELECT id, created_at, expires_at FROM sessions WHERE id = ?", id,
	).Scan(&session.ID, &session.CreatedAt, &session.ExpiresAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query session: %v", ErrSessionStore, err)
	}

	if time.Now().UTC().After(session.ExpiresAt) {
		return nil, ErrNotFound
	}

	return &session, nil
}

// History returns the session's turns ordered by sequence number.
// An existing session with no turns returns an empty slice.
func (r *SessionRepo) History(ctx context.Context, id string) ([]Turn, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT seq, role, text, created_at FROM turns WHERE session_id = ? ORDER BY seq", id)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query turns: %v", ErrSessionStore, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var turns []Turn
	for rows.Next() {
		var turn Turn
		if err := rows.Scan(&turn.Seq, &turn.Role, &turn.Text, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan turn: %v", ErrSessionStore, err)
		}
		turns = append(turns, turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration error: %v", ErrSessionStore, err)
	}

	return turns, nil
}

// AppendTurn appends a turn to the session log.
// The sequence number is allocated inside the same transaction as the
// insert, so two concurrent appends to one session both land with
// distinct consecutive sequence numbers (no lost update).
func (r *SessionRepo) AppendTurn(ctx context.Context, id string, role, text string) error {
	if role != "user" && role != "assistant" {
		return fmt.Errorf("%w: invalid role %q", ErrSessionStore, role)
	}

	if _, err := r.Get(ctx, id); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", ErrSessionStore, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO turns (session_id, seq, role, text)
		 SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ? FROM turns WHERE session_id = ?`,
		id, role, text, id,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to append turn: %v", ErrSessionStore, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit turn: %v", ErrSessionStore, err)
	}

	return nil
}

// Touch extends the session expiry to ttl from now.
func (r *SessionRepo) Touch(ctx context.Context, id string, ttl time.Duration) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET expires_at = ? WHERE id = ?",
		time.Now().UTC().Add(ttl), id,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to touch session: %v", ErrSessionStore, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to check touch: %v", ErrSessionStore, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeExpired deletes sessions (and their turns, via cascade) whose
// expiry has passed. Safe to run periodically; returns the number of
// sessions removed.
func (r *SessionRepo) PurgeExpired(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at < ?", time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: failed to purge sessions: %v", ErrSessionStore, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count purged sessions: %v", ErrSessionStore, err)
	}
	return int(affected), nil
}
