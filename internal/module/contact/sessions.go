package contact

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Default session registry limits.
const (
	DefaultSessionTTL  = 30 * time.Minute
	DefaultMaxSessions = 1000
)

// Sessions holds one Directory per open list view. Idle sessions expire after
// the TTL and the least recently used one is evicted when the registry is
// full; evicted directories are closed.
type Sessions struct {
	lister Lister
	opts   []DirectoryOption
	cache  *expirable.LRU[string, *Directory]
}

// NewSessions creates a registry. Non-positive limits select the defaults.
func NewSessions(lister Lister, size int, ttl time.Duration, opts ...DirectoryOption) *Sessions {
	if size <= 0 {
		size = DefaultMaxSessions
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	onEvict := func(_ string, d *Directory) {
		d.Close()
	}
	return &Sessions{
		lister: lister,
		opts:   opts,
		cache:  expirable.NewLRU[string, *Directory](size, onEvict, ttl),
	}
}

// Open starts a new directory session and returns its ID.
func (s *Sessions) Open() (string, *Directory) {
	id := uuid.NewString()
	d := NewDirectory(s.lister, s.opts...)
	s.cache.Add(id, d)
	return id, d
}

// Get returns the directory for id and refreshes its expiry.
func (s *Sessions) Get(id string) (*Directory, bool) {
	d, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	// expirable.LRU only resets the TTL on Add.
	s.cache.Add(id, d)
	return d, true
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	return s.cache.Len()
}

// Purge closes every session.
func (s *Sessions) Purge() {
	s.cache.Purge()
}
