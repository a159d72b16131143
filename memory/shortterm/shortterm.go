// Package shortterm provides the in-process short-term context store: a
// volatile, TTL-bounded holding area for recent interactions per user.
package shortterm

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mnemohq/mnemo/memory"
)

// DefaultTTL matches the original deployment's 24-hour context window.
const DefaultTTL = 24 * time.Hour

// Store keeps interactions in a process-local map. It is safe for
// concurrent use and best suited for tests and single-node deployments;
// the redis subpackage provides the same contract with shared state.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	byUser map[string][]memory.Interaction
}

// Option configures the store.
type Option func(*Store)

// WithClock overrides the time source, used by expiry tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New constructs an empty store. A non-positive ttl selects DefaultTTL.
func New(ttl time.Duration, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		ttl:    ttl,
		now:    time.Now,
		byUser: make(map[string][]memory.Interaction),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add appends an interaction for its user.
func (s *Store) Add(ctx context.Context, it memory.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[it.UserID] = append(s.pruneLocked(it.UserID), it)
	return nil
}

// Recent returns up to limit live interactions, most recent first.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]memory.Interaction, error) {
	s.mu.Lock()
	live := s.pruneLocked(userID)
	s.byUser[userID] = live
	out := make([]memory.Interaction, len(live))
	copy(out, live)
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// All returns every live interaction for the user in insertion order.
func (s *Store) All(ctx context.Context, userID string) ([]memory.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := s.pruneLocked(userID)
	s.byUser[userID] = live
	out := make([]memory.Interaction, len(live))
	copy(out, live)
	return out, nil
}

// Drain atomically reads and removes every live interaction for the user.
// The single lock makes the read-and-clear atomic with respect to
// concurrent Add calls for the same user.
func (s *Store) Drain(ctx context.Context, userID string) ([]memory.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := s.pruneLocked(userID)
	delete(s.byUser, userID)
	return live, nil
}

// Close releases resources; nothing to do for the in-process store.
func (s *Store) Close() error {
	return nil
}

// pruneLocked drops expired interactions for the user and returns the live
// remainder. Caller must hold the lock.
func (s *Store) pruneLocked(userID string) []memory.Interaction {
	cutoff := s.now().Add(-s.ttl)
	entries := s.byUser[userID]
	live := entries[:0:0]
	for _, it := range entries {
		if it.Timestamp.After(cutoff) {
			live = append(live, it)
		}
	}
	return live
}
