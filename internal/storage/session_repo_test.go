package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSessionRepo_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepo(db)
	ctx := context.Background()

	session, err := repo.Create(ctx, time.Hour)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if session.ID == "" {
		t.Fatal("Create() returned empty ID")
	}
	if !session.ExpiresAt.After(session.CreatedAt) {
		t.Error("Create() expiry should be after creation time")
	}

	got, err := repo.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != session.ID {
		t.Errorf("Get() ID = %q, want %q", got.ID, session.ID)
	}
}

func TestSessionRepo_Get_Missing(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepo(db)

	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestSessionRepo_Get_Expired(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepo(db)
	ctx := context.Background()

	session, err := repo.Create(ctx, -time.Second)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// An expired session behaves exactly like a missing one.
	if _, err := repo.Get(ctx, session.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() on expired session error = %v, want ErrNotFound", err)
	}
	if _, err := repo.History(ctx, session.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("History() on expired session error = %v, want ErrNotFound", err)
	}
	if err := repo.AppendTurn(ctx, session.ID, "user", "hi"); !errors.Is(err, ErrNotFound) {
		t.Errorf("AppendTurn() on expired session error = %v, want ErrNotFound", err)
	}
}

func TestSessionRepo_AppendTurnAndHistory(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepo(db)
	ctx := context.Background()

	session, err := repo.Create(ctx, time.Hour)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	turns := []struct{ role, text string }{
		{"user", "how do I install this?"},
		{"assistant", "run the installer."},
		{"user", "and then?"},
	}
	for _, turn := range turns {
		if err := repo.AppendTurn(ctx, session.ID, turn.role, turn.text); err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
	}

	history, err := repo.History(ctx, session.ID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != len(turns) {
		t.Fatalf("History() = %d turns, want %d", len(history), len(turns))
	}
	for i, turn := range history {
		if turn.Seq != i+1 {
			t.Errorf("History()[%d].Seq = %d, want %d", i, turn.Seq, i+1)
		}
		if turn.Role != turns[i].role || turn.Text != turns[i].text {
			t.Errorf("History()[%d] = %q/%q, want %q/%q", i, turn.Role, turn.Text, turns[i].role, turns[i].text)
		}
	}
}

func TestSessionRepo_AppendTurn_InvalidRole(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepo(db)
	ctx := context.Background()

	session, err := repo.Create(ctx, time.Hour)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.AppendTurn(ctx, session.ID, "system", "nope"); err == nil {
		t.Error("AppendTurn() with invalid role should fail")
	}
}

func TestSessionRepo_AppendTurn_ConcurrentNoLostUpdate(t *testing.T) {
	db := newTestDB(t)
	// Serialize writes through one connection; the sequence allocation
	// must still be correct when callers race for it.
	db.SetMaxOpenConns(1)
	repo := NewSessionRepo(db)
	ctx := context.Background()

	session, err := repo.Create(ctx, time.Hour)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	const goroutines = 5
	const perGoroutine = 4

	var wg sync.WaitGroup
	errs := make(chan error, goroutines*perGoroutine)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				if err := repo.AppendTurn(ctx, session.ID, "user", "concurrent"); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("AppendTurn() error = %v", err)
	}

	history, err := repo.History(ctx, session.ID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != goroutines*perGoroutine {
		t.Fatalf("History() = %d turns, want %d (lost update)", len(history), goroutines*perGoroutine)
	}
	for i, turn := range history {
		if turn.Seq != i+1 {
			t.Errorf("History()[%d].Seq = %d, want %d (gap or duplicate)", i, turn.Seq, i+1)
		}
	}
}

func TestSessionRepo_Touch(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepo(db)
	ctx := context.Background()

	session, err := repo.Create(ctx, time.Minute)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.Touch(ctx, session.ID, 2*time.Hour); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}

	got, err := repo.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.ExpiresAt.After(session.ExpiresAt) {
		t.Error("Touch() should extend the expiry")
	}

	if err := repo.Touch(ctx, "missing", time.Hour); !errors.Is(err, ErrNotFound) {
		t.Errorf("Touch() on missing session error = %v, want ErrNotFound", err)
	}
}

func TestSessionRepo_PurgeExpired(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepo(db)
	ctx := context.Background()

	expired, err := repo.Create(ctx, -time.Second)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	live, err := repo.Create(ctx, time.Hour)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	purged, err := repo.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired() error = %v", err)
	}
	if purged != 1 {
		t.Errorf("PurgeExpired() = %d, want 1", purged)
	}

	if _, err := repo.Get(ctx, expired.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired session should be gone, err = %v", err)
	}
	if _, err := repo.Get(ctx, live.ID); err != nil {
		t.Errorf("live session should survive purge, err = %v", err)
	}
}
