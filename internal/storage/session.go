package storage

import (
	"github.com/patrickmn/go-cache"
)

// SessionStore is a process-scoped store: values live until the process
// exits, like a browser tab's session storage.
type SessionStore struct {
	c *cache.Cache
}

// NewSessionStore creates an empty session-scoped store.
func NewSessionStore() *SessionStore {
	return &SessionStore{c: cache.New(cache.NoExpiration, 0)}
}

func (s *SessionStore) Get(key string) (string, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return "", nil
	}
	str, _ := v.(string)
	return str, nil
}

func (s *SessionStore) Set(key, value string) error {
	s.c.Set(key, value, cache.NoExpiration)
	return nil
}

func (s *SessionStore) Delete(key string) error {
	s.c.Delete(key)
	return nil
}

// Clear drops every key.
func (s *SessionStore) Clear() {
	s.c.Flush()
}
