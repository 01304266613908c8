package session

import (
	"context"
	"sync"
	"time"

	"github.com/tbourn/go-messenger-bot/internal/domain"
)

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithTTL bounds the lifetime of idle sessions. A session untouched for ttl
// or longer is evicted on the next lookup. ttl <= 0 disables eviction.
func WithTTL(ttl time.Duration) Option {
	return func(s *MemoryStore) { s.ttl = ttl }
}

// WithClock overrides the time source. Tests use it to drive TTL expiry
// without sleeping.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) { s.now = now }
}

// MemoryStore is the default Store driver: a mutex-guarded pair of maps,
// keyed by external user id for resolution and by session id for registry
// dispatch. Idle sessions are evicted lazily once past the configured TTL,
// keeping memory bounded without a background goroutine.
type MemoryStore struct {
	mu     sync.Mutex
	byUser map[string]*domain.Session
	byID   map[string]*domain.Session
	ttl    time.Duration
	now    func() time.Time

	// sweepN counts lookups since the last full sweep; expired entries that
	// are never looked up again still get reclaimed.
	sweepN int
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byUser: make(map[string]*domain.Session),
		byID:   make(map[string]*domain.Session),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveOrCreate implements Store. Lookups are direct by user id; the lock
// spans the miss-check and the insert so concurrent first messages from one
// user cannot mint duplicate sessions.
func (s *MemoryStore) ResolveOrCreate(_ context.Context, userID string) (*domain.Session, bool, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeSweep(now)

	if sess, ok := s.byUser[userID]; ok && !s.expired(sess, now) {
		sess.LastSeenAt = now
		return copyOf(sess), false, nil
	}

	sess := &domain.Session{
		ID:         domain.NewSessionID(now),
		UserID:     userID,
		Context:    domain.Context{},
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if old, ok := s.byUser[userID]; ok {
		delete(s.byID, old.ID)
	}
	s.byUser[userID] = sess
	s.byID[sess.ID] = sess
	return copyOf(sess), true, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Session, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok || s.expired(sess, now) {
		return nil, ErrNotFound
	}
	return copyOf(sess), nil
}

// UpdateContext implements Store.
func (s *MemoryStore) UpdateContext(_ context.Context, id string, sctx domain.Context) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok || s.expired(sess, now) {
		return ErrNotFound
	}
	sess.Context = sctx.Clone()
	sess.LastSeenAt = now
	return nil
}

// Len implements Store. Expired-but-unswept entries are not counted.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, sess := range s.byUser {
		if !s.expired(sess, now) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) expired(sess *domain.Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.LastSeenAt) >= s.ttl
}

// maybeSweep drops expired entries after a threshold of lookups. Caller
// holds s.mu.
func (s *MemoryStore) maybeSweep(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	s.sweepN++
	if s.sweepN < 1000 {
		return
	}
	s.sweepN = 0
	for uid, sess := range s.byUser {
		if s.expired(sess, now) {
			delete(s.byUser, uid)
			delete(s.byID, sess.ID)
		}
	}
}

// copyOf hands callers their own Session value so store internals are never
// mutated behind the lock's back.
func copyOf(sess *domain.Session) *domain.Session {
	out := *sess
	out.Context = sess.Context.Clone()
	return &out
}
