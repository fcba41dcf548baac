// Package prefs provides the key-value preference store used to persist
// workspace state across sessions.
package prefs

import (
	"context"
	"sync"
)

// Store is the preference store contract. Values are opaque strings;
// callers own their encoding.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores a value for key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
}

// MemStore is an in-memory Store, used by tests and throwaway sessions.
//
// MemStore is safe for concurrent use.
type MemStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{values: make(map[string]string)}
}

// Ensure MemStore implements Store.
var _ Store = (*MemStore)(nil)

// Get returns the value for key.
func (m *MemStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	return v, ok, nil
}

// Set stores a value for key.
func (m *MemStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	return nil
}
