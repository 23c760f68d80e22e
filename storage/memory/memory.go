package memory

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/TechQuilaMx/kestra-rbac-oauth/storage"
)

// DefaultSessionTTL bounds how long a value survives without being rewritten.
const DefaultSessionTTL = 12 * time.Hour

// Store keeps values in process memory and forgets them once the session TTL
// elapses, mirroring browser session storage.
type Store struct {
	c *gocache.Cache
}

var _ storage.Storage = (*Store)(nil)

// New creates an in-memory store. A ttl <= 0 selects DefaultSessionTTL.
func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Store{c: gocache.New(ttl, time.Minute)}
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return "", storage.ErrNotFound
	}
	str, _ := v.(string)
	return str, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.c.SetDefault(key, value)
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.c.Delete(key)
	return nil
}

// Flush drops every value, ending the session.
func (s *Store) Flush() {
	s.c.Flush()
}
