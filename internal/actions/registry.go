// Package actions provides the named-action dispatch table: a closed set of
// side-effecting action kinds, each with a handler registered per variant.
// The live webhook flow does not dispatch through it; it is the extension
// point for a future multi-turn intent architecture, and the handlers are
// wired against the real session store and platform client.
package actions

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-messenger-bot/internal/domain"
	"github.com/tbourn/go-messenger-bot/internal/messenger"
	"github.com/tbourn/go-messenger-bot/internal/session"
)

// Kind identifies an action variant. The set is closed: dispatching any
// other value falls through to the blank behavior.
type Kind int

const (
	// KindSay sends a message to the session's user.
	KindSay Kind = iota
	// KindMerge folds extracted entities into the session context.
	KindMerge
	// KindError records a turn-level failure.
	KindError
	// KindBlank is the catch-all: it sets a sentinel context field.
	KindBlank
)

// String returns the action's name.
func (k Kind) String() string {
	switch k {
	case KindSay:
		return "say"
	case KindMerge:
		return "merge"
	case KindError:
		return "error"
	case KindBlank:
		return "blank"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Args carries the per-dispatch inputs; which fields matter depends on the
// kind.
type Args struct {
	Message  string         // KindSay: text to deliver
	Entities domain.Context // KindMerge: extraction results to fold in
	Err      error          // KindError: failure to record
}

// Handler executes one action against a session and returns the (possibly
// updated) context.
type Handler func(ctx context.Context, sessionID string, sctx domain.Context, args Args) (domain.Context, error)

// Registry errors.
var (
	ErrAlreadyRegistered = errors.New("action kind already registered")
	ErrUnknownSession    = errors.New("no user for session")
)

// Registry maps action kinds to handlers. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Kind]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Kind]Handler)}
}

// Register binds a handler to a kind. Each kind may be bound once.
func (r *Registry) Register(k Kind, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.handlers[k]; dup {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, k)
	}
	r.handlers[k] = h
	return nil
}

// Dispatch runs the handler for k. An unregistered kind gets the blank
// behavior: the sentinel "return" field is set on a copy of the context.
func (r *Registry) Dispatch(ctx context.Context, k Kind, sessionID string, sctx domain.Context, args Args) (domain.Context, error) {
	r.mu.RLock()
	h, ok := r.handlers[k]
	r.mu.RUnlock()
	if !ok {
		return Blank(ctx, sessionID, sctx, args)
	}
	return h(ctx, sessionID, sctx, args)
}

// Default builds a registry with the standard handlers bound to the given
// store and platform client.
func Default(store session.Store, m messenger.Client) *Registry {
	r := NewRegistry()
	_ = r.Register(KindSay, Say(store, m))
	_ = r.Register(KindMerge, Merge(store))
	_ = r.Register(KindError, Error())
	_ = r.Register(KindBlank, Blank)
	return r
}

// Say returns the handler that delivers args.Message to the session's user.
func Say(store session.Store, m messenger.Client) Handler {
	return func(ctx context.Context, sessionID string, sctx domain.Context, args Args) (domain.Context, error) {
		sess, err := store.Get(ctx, sessionID)
		if err != nil {
			log.Error().Err(err).Str("session_id", sessionID).Msg("say: session lookup failed")
			return sctx, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
		}
		if err := m.SendText(ctx, sess.UserID, args.Message); err != nil {
			log.Error().Err(err).Str("recipient_id", sess.UserID).Msg("say: send failed")
		}
		return sctx, nil
	}
}

// Merge returns the handler that folds args.Entities into the session
// context and persists the result.
func Merge(store session.Store) Handler {
	return func(ctx context.Context, sessionID string, sctx domain.Context, args Args) (domain.Context, error) {
		merged := sctx.Clone()
		if merged == nil {
			merged = domain.Context{}
		}
		for k, v := range args.Entities {
			merged[k] = v
		}
		if err := store.UpdateContext(ctx, sessionID, merged); err != nil {
			return sctx, err
		}
		return merged, nil
	}
}

// Error returns the handler that records a turn-level failure.
func Error() Handler {
	return func(_ context.Context, sessionID string, sctx domain.Context, args Args) (domain.Context, error) {
		log.Error().Err(args.Err).Str("session_id", sessionID).Msg("action error")
		return sctx, nil
	}
}

// Blank is the catch-all handler; it marks the context with the sentinel
// return field.
func Blank(_ context.Context, _ string, sctx domain.Context, _ Args) (domain.Context, error) {
	out := sctx.Clone()
	if out == nil {
		out = domain.Context{}
	}
	out["return"] = "return String"
	return out, nil
}
