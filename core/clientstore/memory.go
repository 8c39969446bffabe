package clientstore

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Memory is an in-process Storage. Expired entries are dropped lazily on read.
type Memory struct {
	mu    sync.RWMutex
	items map[string]memoryEntry
	now   func() time.Time
}

// NewMemory creates an empty in-memory storage.
func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]memoryEntry),
		now:   time.Now,
	}
}

// Get implements Storage.
func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if key == "" {
		return "", ErrEmptyKey
	}

	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()

	if !ok {
		return "", ErrNotFound
	}
	if e.expired(m.now()) {
		m.mu.Lock()
		// Re-check under the write lock, the entry may have been replaced.
		if cur, ok := m.items[key]; ok && cur.expired(m.now()) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return "", ErrNotFound
	}
	return e.value, nil
}

// GetMany implements Storage.
func (m *Memory) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, k := range keys {
		if k == "" {
			return nil, ErrEmptyKey
		}
	}

	now := m.now()
	out := make(map[string]string, len(keys))

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, k := range keys {
		if e, ok := m.items[k]; ok && !e.expired(now) {
			out[k] = e.value
		}
	}
	return out, nil
}

// SetMany implements Storage.
func (m *Memory) SetMany(ctx context.Context, values map[string]string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for k := range values {
		if k == "" {
			return ErrEmptyKey
		}
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.items[k] = memoryEntry{value: v, expiresAt: expiresAt}
	}
	return nil
}

// Update implements Storage.
func (m *Memory) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, found := m.items[key]
	if found && e.expired(now) {
		e, found = memoryEntry{}, false
	}
	next, err := fn(e.value, found)
	if err != nil {
		return err
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}
	m.items[key] = memoryEntry{value: next, expiresAt: expiresAt}
	return nil
}

// Delete implements Storage.
func (m *Memory) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

// Len returns the number of live entries.
func (m *Memory) Len() int {
	now := m.now()
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.items {
		if !e.expired(now) {
			n++
		}
	}
	return n
}
