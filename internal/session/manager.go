package session

import (
	"context"
	"sync"
)

// Manager holds the session of the menu currently on screen. Opening the
// same short code again reuses the session; a different code closes the
// old one and negotiates a new one from scratch.
type Manager struct {
	opts Options

	mu      sync.Mutex
	current *Session
}

// NewManager creates a manager whose sessions share opts.
func NewManager(opts Options) *Manager {
	return &Manager{opts: opts}
}

// Open returns the session for shortCode, running Init the first time
// the code is opened. The session is returned even when Init fails; it
// then simply has no token.
func (m *Manager) Open(ctx context.Context, shortCode string) (*Session, error) {
	m.mu.Lock()
	if m.current != nil && m.current.ShortCode() == shortCode {
		s := m.current
		m.mu.Unlock()
		return s, nil
	}
	if m.current != nil {
		m.current.Close()
	}
	s := New(shortCode, m.opts)
	m.current = s
	m.mu.Unlock()

	return s, s.Init(ctx)
}

// Current returns the open session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Close closes the open session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Close()
		m.current = nil
	}
}
