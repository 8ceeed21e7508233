package cache

import (
	"errors"
	"sync"
	"time"

	"secsync/pkg/models"
)

// DefaultTTL is how long a cached collection stays valid.
const DefaultTTL = 5 * time.Minute

// ErrCacheMiss is returned by Lookup when nothing was ever stored for a kind.
var ErrCacheMiss = errors.New("cache miss")

// Entry is a cached collection with the time it was fetched.
type Entry struct {
	Value     models.EntityList
	FetchedAt time.Time
}

// Store keeps the last fetched collection per kind.
// Stale entries are kept so they can serve as a fallback.
type Store struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	entries map[models.Kind]Entry
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for validity checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates a store. A non-positive ttl selects DefaultTTL.
func NewStore(ttl time.Duration, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[models.Kind]Entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the validity window.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Get returns the held value (nil when absent) and whether it is still valid.
func (s *Store) Get(kind models.Kind) (models.EntityList, bool) {
	s.mu.RLock()
	entry, ok := s.entries[kind]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return entry.Value, s.now().Sub(entry.FetchedAt) < s.ttl
}

// Lookup returns the raw entry regardless of age.
func (s *Store) Lookup(kind models.Kind) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[kind]
	if !ok || entry.Value == nil {
		return Entry{}, ErrCacheMiss
	}
	return entry, nil
}

// Set overwrites the entry for kind.
func (s *Store) Set(kind models.Kind, value models.EntityList, fetchedAt time.Time) {
	s.mu.Lock()
	s.entries[kind] = Entry{Value: value, FetchedAt: fetchedAt}
	s.mu.Unlock()
}

// Clear drops the given kinds, or every kind when none is given.
func (s *Store) Clear(kinds ...models.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(kinds) == 0 {
		s.entries = make(map[models.Kind]Entry)
		return
	}
	for _, k := range kinds {
		delete(s.entries, k)
	}
}
