// Package memstore keeps per-key conversational state in process memory:
// user query histories used to ground follow-up questions and chat sessions.
//
// A Store hands out copies. Callers follow get-or-create, mutate, update;
// concurrent writers for one key race and the last Update wins.
package memstore

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Entity is the constraint for stored values.
type Entity[E any] interface {
	// LastUpdated drives whole-entity age eviction.
	LastUpdated() time.Time
	// Clone returns a deep copy.
	Clone() E
}

// Store keeps entities in a go-cache keyed by id. Each Update replaces the
// entity and restarts its maxAge; Cleanup, which GetOrCreate runs first,
// evicts entities whole by their own LastUpdated stamp.
type Store[E Entity[E]] struct {
	items   *gocache.Cache
	maxAge  time.Duration
	newFunc func(id string, now time.Time) E
	now     func() time.Time
}

// New returns a store that builds missing entities with newFunc and evicts
// those not updated within maxAge. A non-positive maxAge disables eviction.
func New[E Entity[E]](maxAge time.Duration, newFunc func(id string, now time.Time) E) *Store[E] {
	return &Store[E]{
		items:   gocache.New(gocache.NoExpiration, 0),
		maxAge:  maxAge,
		newFunc: newFunc,
		now:     time.Now,
	}
}

// WithClock replaces the time source.
func (s *Store[E]) WithClock(now func() time.Time) *Store[E] {
	s.now = now
	return s
}

// Now exposes the store clock so callers stamp entities consistently.
func (s *Store[E]) Now() time.Time { return s.now() }

func (s *Store[E]) ttl() time.Duration {
	if s.maxAge <= 0 {
		return gocache.NoExpiration
	}
	return s.maxAge
}

// GetOrCreate returns a copy of the entity for id, creating it when missing.
func (s *Store[E]) GetOrCreate(id string) E {
	now := s.now()
	if s.maxAge > 0 {
		s.Cleanup(now.Add(-s.maxAge))
	}

	for {
		if e, ok := s.Get(id); ok {
			return e
		}
		e := s.newFunc(id, now)
		// Add fails when a concurrent caller created id first; read theirs.
		if s.items.Add(id, e, s.ttl()) == nil {
			return e.Clone()
		}
	}
}

// Get returns a copy without creating or cleaning.
func (s *Store[E]) Get(id string) (E, bool) {
	x, ok := s.items.Get(id)
	if !ok {
		var zero E
		return zero, false
	}
	return x.(E).Clone(), true
}

// Update replaces the stored entity; the last writer wins.
func (s *Store[E]) Update(id string, e E) {
	s.items.Set(id, e.Clone(), s.ttl())
}

// Clear removes id and reports whether it existed.
func (s *Store[E]) Clear(id string) bool {
	_, ok := s.items.Get(id)
	s.items.Delete(id)
	return ok
}

// Cleanup removes entities last updated before cutoff and returns how many
// were removed.
func (s *Store[E]) Cleanup(cutoff time.Time) int {
	n := 0
	for id, it := range s.items.Items() {
		if e, ok := it.Object.(E); ok && e.LastUpdated().Before(cutoff) {
			s.items.Delete(id)
			n++
		}
	}
	s.items.DeleteExpired()
	return n
}

// Len counts stored entities, including any past maxAge not yet cleaned.
func (s *Store[E]) Len() int { return s.items.ItemCount() }
