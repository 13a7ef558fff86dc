package shell

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

// Sessions holds terminal sessions and expires the ones left idle.
type Sessions struct {
	mu    sync.Mutex
	root  *Node
	cache *ttlcache.Cache[string, *Shell]
}

// NewSessions creates a session store. Every access to a session extends its life by ttl.
func NewSessions(root *Node, ttl time.Duration) *Sessions {
	cache := ttlcache.New[string, *Shell](
		ttlcache.WithTTL[string, *Shell](ttl),
	)
	go cache.Start()

	return &Sessions{root: root, cache: cache}
}

// New starts a fresh session and returns its id.
func (s *Sessions) New() (string, *Shell) {
	id := uuid.NewString()
	sh := New(s.root)
	s.cache.Set(id, sh, ttlcache.DefaultTTL)
	return id, sh
}

// Get returns the session for id, creating it when it is unknown or expired.
func (s *Sessions) Get(id string) *Shell {
	if id == "" {
		id = "default"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.cache.Get(id); item != nil {
		return item.Value()
	}
	sh := New(s.root)
	s.cache.Set(id, sh, ttlcache.DefaultTTL)
	return sh
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	return s.cache.Len()
}

// Close stops the expiry loop.
func (s *Sessions) Close() {
	s.cache.Stop()
}
