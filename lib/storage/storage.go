// Package storage persists component state snapshots between page loads.
//
// Keys are namespaced as "accelade:<key>". Session storage lives as long as
// the process; local storage is durable when backed by a SQLite file.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Prefix namespaces every stored key.
const Prefix = "accelade:"

// ErrClosed is returned by operations on a closed storage.
var ErrClosed = errors.New("storage: closed")

// Key returns the namespaced storage key.
func Key(key string) string {
	if strings.HasPrefix(key, Prefix) {
		return key
	}
	return Prefix + key
}

// Storage holds JSON-serialized state snapshots.
type Storage interface {
	// Load returns the snapshot stored under key, reporting whether one
	// existed. A stored value that fails to decode is an error.
	Load(key string) (map[string]any, bool, error)
	Save(key string, state map[string]any) error
	Remove(key string) error
	// Keys lists stored keys with the prefix stripped.
	Keys() ([]string, error)
	Close() error
}

// Memory is an in-process Storage. It stores encoded JSON so values round
// trip exactly as they would through a browser store.
type Memory struct {
	mu     sync.RWMutex
	items  map[string][]byte
	closed bool
}

var _ Storage = (*Memory)(nil)

// NewMemory returns an empty Memory storage.
func NewMemory() *Memory {
	return &Memory{items: make(map[string][]byte)}
}

func (m *Memory) Load(key string) (map[string]any, bool, error) {
	m.mu.RLock()
	raw, ok := m.items[Key(key)]
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, false, ErrClosed
	}
	if !ok {
		return nil, false, nil
	}
	state, err := decode(key, raw)
	if err != nil {
		return nil, false, err
	}
	return state, true, nil
}

func (m *Memory) Save(key string, state map[string]any) error {
	raw, err := encode(key, state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.items[Key(key)] = raw
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.items, Key(key))
	return nil
}

func (m *Memory) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, strings.TrimPrefix(k, Prefix))
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.items = nil
	m.mu.Unlock()
	return nil
}

func encode(key string, state map[string]any) ([]byte, error) {
	if state == nil {
		state = map[string]any{}
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("storage: encode %q: %w", key, err)
	}
	return raw, nil
}

func decode(key string, raw []byte) (map[string]any, error) {
	var state map[string]any
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("storage: decode %q: %w", key, err)
	}
	if state == nil {
		state = map[string]any{}
	}
	return state, nil
}
