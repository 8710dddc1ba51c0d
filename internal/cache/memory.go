package cache

import (
	"math/rand"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// DefaultSweepProbability is the chance that a Get triggers a full pass
// removing expired entries.
const DefaultSweepProbability = 0.1

// entry carries its own deadline so the injected clock decides liveness;
// go-cache holds the same deadline on the wall clock.
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Options configures a Memory cache.
type Options struct {
	SweepProbability float64 // in [0,1]; negative selects the default
	// SingleFlight collapses concurrent GetOrLoad misses for one key into a
	// single loader call.
	SingleFlight bool
}

// Memory is a typed TTL cache over go-cache with its janitor off. Expired
// entries are never returned; they are removed by a probabilistic sweep on
// Get or replaced by Set.
type Memory[V any] struct {
	items *gocache.Cache

	sweepP float64
	now    func() time.Time
	rnd    func() float64

	single bool
	flight singleflight.Group
}

// New returns an empty cache.
func New[V any](opts Options) *Memory[V] {
	p := opts.SweepProbability
	if p < 0 {
		p = DefaultSweepProbability
	}
	if p > 1 {
		p = 1
	}
	return &Memory[V]{
		items:  gocache.New(gocache.NoExpiration, 0),
		sweepP: p,
		now:    time.Now,
		rnd:    rand.Float64,
		single: opts.SingleFlight,
	}
}

// WithClock replaces the time source.
func (m *Memory[V]) WithClock(now func() time.Time) *Memory[V] {
	m.now = now
	return m
}

// WithRand replaces the sweep dice; fn must return values in [0,1).
func (m *Memory[V]) WithRand(fn func() float64) *Memory[V] {
	m.rnd = fn
	return m
}

// Get returns the live value for k.
func (m *Memory[V]) Get(k Key) (V, bool) {
	now := m.now()
	if m.sweepP > 0 && m.rnd() < m.sweepP {
		m.sweep(now)
	}

	var zero V
	x, ok := m.items.Get(k.String())
	if !ok {
		return zero, false
	}
	e := x.(entry[V])
	if !e.expiresAt.After(now) {
		return zero, false
	}
	return e.value, true
}

// Set stores v under k for ttl. A non-positive ttl stores nothing.
func (m *Memory[V]) Set(k Key, v V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.items.Set(k.String(), entry[V]{value: v, expiresAt: m.now().Add(ttl)}, ttl)
}

func (m *Memory[V]) Invalidate(k Key) { m.items.Delete(k.String()) }

func (m *Memory[V]) Clear() { m.items.Flush() }

// Len counts stored entries, including expired ones not yet swept.
func (m *Memory[V]) Len() int { return m.items.ItemCount() }

// GetOrLoad returns the cached value for k or calls load, storing its result
// for the TTL it returns. hit reports whether the value came from the cache.
// Load errors are returned and nothing is stored.
func (m *Memory[V]) GetOrLoad(k Key, load func() (V, time.Duration, error)) (v V, hit bool, err error) {
	if v, ok := m.Get(k); ok {
		return v, true, nil
	}

	fill := func() (V, error) {
		v, ttl, err := load()
		if err != nil {
			return v, err
		}
		m.Set(k, v, ttl)
		return v, nil
	}

	if !m.single {
		v, err = fill()
		return v, false, err
	}

	res, err, _ := m.flight.Do(k.String(), func() (interface{}, error) {
		// a concurrent flight may have just filled the entry
		if v, ok := m.Get(k); ok {
			return v, nil
		}
		return fill()
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return res.(V), false, nil
}

// sweep drops entries past their wall-clock deadline, then those the
// injected clock considers expired.
func (m *Memory[V]) sweep(now time.Time) {
	m.items.DeleteExpired()
	for k, it := range m.items.Items() {
		if e, ok := it.Object.(entry[V]); ok && !e.expiresAt.After(now) {
			m.items.Delete(k)
		}
	}
}
