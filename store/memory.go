package store

import (
	"context"
	"sync"
)

var _ Store = (*Memory)(nil)

// Memory is an in-process Store. Useful for tests and for callers that manage
// persistence themselves.
type Memory struct {
	mu    sync.RWMutex
	creds *Credentials
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// GetCredentials returns the stored credentials, or ErrNotFound.
func (m *Memory) GetCredentials(_ context.Context) (*Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds == nil {
		return nil, ErrNotFound
	}
	c := *m.creds
	return &c, nil
}

// PutCredentials replaces the stored credentials.
func (m *Memory) PutCredentials(_ context.Context, creds *Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *creds
	m.creds = &c
	return nil
}
