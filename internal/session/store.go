// Package session owns the per-user session store. The Store interface is
// injected into the relay service and the action registry so the backing
// driver (in-memory or SQLite) is a deployment choice, not a hard-wired
// global.
package session

import (
	"context"
	"errors"

	"github.com/tbourn/go-messenger-bot/internal/domain"
)

// ErrNotFound is returned when a session id does not resolve to a live session.
var ErrNotFound = errors.New("session not found")

// Store resolves and tracks user sessions.
//
// Implementations must be safe for concurrent use: two interleaved
// ResolveOrCreate calls for the same unseen user must yield a single
// session, never two.
type Store interface {
	// ResolveOrCreate returns the live session for userID, creating one with
	// an empty context when none exists. The boolean reports whether a new
	// session was created.
	ResolveOrCreate(ctx context.Context, userID string) (*domain.Session, bool, error)

	// Get returns the session with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// UpdateContext replaces the context blob of the session with the given
	// id, or returns ErrNotFound.
	UpdateContext(ctx context.Context, id string, sctx domain.Context) error

	// Len reports the number of live sessions.
	Len(ctx context.Context) (int, error)
}
