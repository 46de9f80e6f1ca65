package storage

import (
	"errors"
	"sync"
)

// ErrNotFound indicates the requested key has never been set or was removed.
var ErrNotFound = errors.New("storage: key not found")

// Store is the key-value persistence port used for client state that must
// survive process restarts: deck cursors, session context, and the active
// session pointer. Values are plain strings; absence is reported via
// ErrNotFound and must be treated by callers as "unset", never as failure.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
}

// Memory is an in-process Store used by tests and as a fallback when no
// database path is configured.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
