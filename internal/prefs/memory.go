package prefs

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps everything in process memory. It backs tests and
// --ephemeral runs.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
	closed bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Apply(_ context.Context, edits ...Edit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	applyEdits(m.values, edits)
	return nil
}

func (m *MemoryStore) Update(_ context.Context, fn func(get Getter) ([]Edit, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	edits, err := fn(mapGetter(m.values))
	if err != nil {
		return err
	}
	applyEdits(m.values, edits)
	return nil
}

func (m *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return keysWithPrefix(m.values, prefix), nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func mapGetter(values map[string]string) Getter {
	return func(key string) (string, bool, error) {
		v, ok := values[key]
		return v, ok, nil
	}
}

func applyEdits(values map[string]string, edits []Edit) {
	for _, e := range edits {
		if e.Delete {
			delete(values, e.Key)
			continue
		}
		values[e.Key] = e.Value
	}
}

func keysWithPrefix(values map[string]string, prefix string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
