// Session repository functions.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics: a missing session yields gorm.ErrRecordNotFound (exported
// here as ErrNotFound); other DB errors propagate raw.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-messenger-bot/internal/domain"
)

// ErrNotFound is returned when a requested session row does not exist.
// It aliases gorm.ErrRecordNotFound for consistency across layers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetSessionByUser fetches the session owned by userID, or ErrNotFound.
func GetSessionByUser(ctx context.Context, db *gorm.DB, userID string) (*domain.Session, error) {
	var s domain.Session
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSession fetches a session by its id, or ErrNotFound.
func GetSession(ctx context.Context, db *gorm.DB, id string) (*domain.Session, error) {
	var s domain.Session
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSession inserts a new session row for userID with an empty context.
// The unique index on user_id makes concurrent first-inserts for one user
// collide; ON CONFLICT DO NOTHING turns the loser into a no-op so the caller
// can re-read the winner's row.
func CreateSession(ctx context.Context, db *gorm.DB, userID string, now time.Time) (*domain.Session, error) {
	s := &domain.Session{
		ID:         domain.NewSessionID(now),
		UserID:     userID,
		Context:    domain.Context{},
		CreatedAt:  now.UTC(),
		LastSeenAt: now.UTC(),
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(s)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return GetSessionByUser(ctx, db, userID)
	}
	return s, nil
}

// TouchSession bumps the session's last-seen timestamp.
func TouchSession(ctx context.Context, db *gorm.DB, id string, now time.Time) error {
	res := db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ?", id).
		Update("last_seen_at", now.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSessionContext replaces the context blob of the session with id.
func UpdateSessionContext(ctx context.Context, db *gorm.DB, id string, sctx domain.Context, now time.Time) error {
	res := db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ?", id).
		Updates(map[string]any{"context": sctx, "last_seen_at": now.UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountSessions returns the number of session rows.
func CountSessions(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Session{}).Count(&n).Error
	return n, err
}

// DeleteSessionsIdleSince removes sessions last seen at or before cutoff and
// reports how many rows were dropped.
func DeleteSessionsIdleSince(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("last_seen_at <= ?", cutoff.UTC()).
		Delete(&domain.Session{})
	return res.RowsAffected, res.Error
}
