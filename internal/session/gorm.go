package session

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-messenger-bot/internal/domain"
	"github.com/tbourn/go-messenger-bot/internal/repo"
)

// GormStore is the SQLite-backed Store driver. It delegates persistence to
// the repo package and relies on the unique user_id index for atomicity of
// first-message session creation.
type GormStore struct {
	DB  *gorm.DB
	now func() time.Time
}

// NewGormStore wraps a migrated *gorm.DB in a Store.
func NewGormStore(db *gorm.DB, opts ...GormOption) *GormStore {
	s := &GormStore{DB: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GormOption configures a GormStore.
type GormOption func(*GormStore)

// WithGormClock overrides the time source for tests.
func WithGormClock(now func() time.Time) GormOption {
	return func(s *GormStore) { s.now = now }
}

// ResolveOrCreate implements Store.
func (s *GormStore) ResolveOrCreate(ctx context.Context, userID string) (*domain.Session, bool, error) {
	now := s.now()

	if sess, err := repo.GetSessionByUser(ctx, s.DB, userID); err == nil {
		if terr := repo.TouchSession(ctx, s.DB, sess.ID, now); terr != nil && !errors.Is(terr, repo.ErrNotFound) {
			return nil, false, terr
		}
		sess.LastSeenAt = now.UTC()
		return sess, false, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, false, err
	}

	sess, err := repo.CreateSession(ctx, s.DB, userID, now)
	if err != nil {
		return nil, false, err
	}
	// CreateSession hands back an existing row when a concurrent insert won.
	created := sess.ID == domain.NewSessionID(now)
	return sess, created, nil
}

// Get implements Store.
func (s *GormStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	sess, err := repo.GetSession(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	return sess, err
}

// UpdateContext implements Store.
func (s *GormStore) UpdateContext(ctx context.Context, id string, sctx domain.Context) error {
	err := repo.UpdateSessionContext(ctx, s.DB, id, sctx, s.now())
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// Len implements Store.
func (s *GormStore) Len(ctx context.Context) (int, error) {
	n, err := repo.CountSessions(ctx, s.DB)
	return int(n), err
}
