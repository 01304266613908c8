// Package domain defines the persistence model for user sessions. The type
// is mapped with GORM for the SQLite-backed store driver and reused as-is by
// the in-memory driver.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Context is the flat key-value blob attached to a session. The live relay
// flow never writes to it; the action registry's merge handler does. It is
// stored as a JSON text column.
type Context map[string]any

// Value implements driver.Valuer so GORM can persist the context as JSON.
// A nil context is stored as SQL NULL.
func (c Context) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner, accepting the JSON text written by Value.
func (c *Context) Scan(src any) error {
	if src == nil {
		*c = nil
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("context: cannot scan %T", src)
	}
	if len(b) == 0 {
		*c = Context{}
		return nil
	}
	return json.Unmarshal(b, c)
}

// Clone returns a shallow copy of the context. Nil stays nil.
func (c Context) Clone() Context {
	if c == nil {
		return nil
	}
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Session correlates an external platform user id with a conversational
// context blob. Sessions are created lazily on the first inbound message
// from an unseen user.
//
// Fields:
//   - ID: opaque time-derived string key (UTC RFC3339Nano at creation).
//   - UserID: the platform's sender id; at most one live session per user.
//   - Context: flat key-value blob, empty on creation.
//   - CreatedAt / LastSeenAt: lifecycle timestamps; LastSeenAt drives TTL
//     eviction in the memory store.
type Session struct {
	ID         string    `json:"id"           gorm:"type:varchar(64);primaryKey"`
	UserID     string    `json:"user_id"      gorm:"type:varchar(64);not null;uniqueIndex:ux_session_user"`
	Context    Context   `json:"context"      gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at" gorm:"index"`
}

// TableName returns the database table name for Session.
func (Session) TableName() string { return "sessions" }

// NewSessionID derives an opaque session key from a wall-clock instant.
// Nanosecond resolution keeps keys distinguishable at any realistic inbound
// message rate.
func NewSessionID(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
