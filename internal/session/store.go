// Package session holds per-user conversation state for multi-turn voice
// commands.
//
// A [Context] exists only while a command is waiting for missing slots. It is
// owned by the dispatcher for that user: every dispatch reads it, then either
// clears it or writes exactly one updated version back. Expiry is enforced
// lazily on every read, so an expired context is indistinguishable from an
// absent one regardless of whether the background sweeper has run.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/voxtask/voxtask/internal/nlu"
)

// Context is the in-progress command state for one user.
type Context struct {
	// Intent is the pending intent awaiting its remaining slots.
	Intent nlu.Intent

	// Confidence is the classification confidence that produced Intent.
	Confidence float64

	// Entities holds the slots collected so far.
	Entities nlu.EntitySet

	// LastActivity is when the user last advanced this conversation.
	LastActivity time.Time

	// TurnCount is how many utterances have contributed to this command.
	TurnCount int
}

// Store keeps at most one [Context] per user.
//
// Safe for concurrent use across users; per-user ordering is the session
// channel's responsibility, not the store's.
type Store struct {
	inactivityWindow time.Duration
	maxTurns         int
	now              func() time.Time

	mu       sync.Mutex
	contexts map[string]Context
}

// StoreOption is a functional option for [NewStore].
type StoreOption func(*Store)

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a context store. A context expires once it has been idle
// longer than inactivityWindow or has accumulated maxTurns turns.
func NewStore(inactivityWindow time.Duration, maxTurns int, opts ...StoreOption) *Store {
	s := &Store{
		inactivityWindow: inactivityWindow,
		maxTurns:         maxTurns,
		now:              time.Now,
		contexts:         make(map[string]Context),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns the unexpired context for userID. An expired context is evicted
// and reported as absent.
func (s *Store) Get(userID string) (Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contexts[userID]
	if !ok {
		return Context{}, false
	}
	if s.expired(c, s.now()) {
		delete(s.contexts, userID)
		return Context{}, false
	}
	return c, true
}

// Set stores c as the single context for userID, replacing any previous one.
// The entity set is cloned so later mutation by the caller cannot leak in.
func (s *Store) Set(userID string, c Context) {
	c.Entities = c.Entities.Clone()
	if c.LastActivity.IsZero() {
		c.LastActivity = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[userID] = c
}

// Clear removes the context for userID, if any.
func (s *Store) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, userID)
}

// Len returns the number of stored contexts, including any that are expired
// but not yet swept.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contexts)
}

// IsExpired reports whether c would be treated as absent at time now.
func (s *Store) IsExpired(c Context, now time.Time) bool {
	return s.expired(c, now)
}

func (s *Store) expired(c Context, now time.Time) bool {
	if now.Sub(c.LastActivity) > s.inactivityWindow {
		return true
	}
	return c.TurnCount >= s.maxTurns
}

// Sweep evicts every expired context and returns how many were removed.
// Purely memory hygiene; observable behaviour is identical without it.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for userID, c := range s.contexts {
		if s.expired(c, now) {
			delete(s.contexts, userID)
			removed++
		}
	}
	return removed
}

// Run sweeps expired contexts every interval until ctx is cancelled.
// An interval of zero or less disables the sweeper and returns immediately.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				slog.Debug("session: swept expired contexts", "count", n)
			}
		}
	}
}
