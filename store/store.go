// Package store provides gamerhub.SessionStore implementations: a yaml file
// on disk for interactive clients, redis for headless agents that keep
// their session out of process, and an in-memory store for tests.
package store

import (
	"sync"

	gamerhub "github.com/gamerhub/gamerhub-go"
)

// Memory is an in-process SessionStore. Useful in tests and for short-lived
// clients that do not need the session to survive a restart.
type Memory struct {
	mu      sync.Mutex
	session *gamerhub.Session
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Restore returns the stored session, or nil if none is stored.
func (m *Memory) Restore() (*gamerhub.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, nil
}

// Persist overwrites the stored session.
func (m *Memory) Persist(session *gamerhub.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = session
	return nil
}

// Clear removes the stored session.
func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}
