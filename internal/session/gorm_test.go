package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-messenger-bot/internal/domain"
)

var gormTestSeq int

// newTestDB opens a unique shared in-memory SQLite database per call so
// tests stay isolated without CGO.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormTestSeq++
	dsn := fmt.Sprintf("file:sessstore%d?mode=memory&cache=shared", gormTestSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Session{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestGormStore_ResolveOrCreate(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := NewGormStore(db, WithGormClock(func() time.Time { return now }))
	ctx := context.Background()

	first, created, err := s.ResolveOrCreate(ctx, "user-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !created || first.UserID != "user-1" {
		t.Fatalf("bad first resolve: created=%v sess=%+v", created, first)
	}

	now = now.Add(time.Minute)
	second, created, err := s.ResolveOrCreate(ctx, "user-1")
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if created || second.ID != first.ID {
		t.Fatalf("expected reuse, got created=%v id=%q want %q", created, second.ID, first.ID)
	}
	if !second.LastSeenAt.After(first.CreatedAt) {
		t.Fatalf("last_seen_at not bumped: %v", second.LastSeenAt)
	}

	if n, _ := s.Len(ctx); n != 1 {
		t.Fatalf("Len = %d; want 1", n)
	}
}

func TestGormStore_GetAndUpdateContext(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()

	sess, _, err := s.ResolveOrCreate(ctx, "user-2")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if err := s.UpdateContext(ctx, sess.ID, domain.Context{"location": "italy"}); err != nil {
		t.Fatalf("UpdateContext: %v", err)
	}
	got, err := s.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Context["location"] != "italy" {
		t.Fatalf("context not round-tripped: %v", got.Context)
	}

	if _, err := s.Get(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("Get(missing) err = %v; want ErrNotFound", err)
	}
	if err := s.UpdateContext(ctx, "missing", domain.Context{}); err != ErrNotFound {
		t.Fatalf("UpdateContext(missing) err = %v; want ErrNotFound", err)
	}
}

func TestGormStore_SurvivesReopen(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()

	sess, _, err := s.ResolveOrCreate(ctx, "user-3")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// A second store over the same handle sees the same session, the way a
	// restarted process would with a file-backed database.
	s2 := NewGormStore(db)
	got, created, err := s2.ResolveOrCreate(ctx, "user-3")
	if err != nil {
		t.Fatalf("resolve via second store: %v", err)
	}
	if created || got.ID != sess.ID {
		t.Fatalf("session not shared: created=%v id=%q want %q", created, got.ID, sess.ID)
	}
}
