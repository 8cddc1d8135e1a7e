package kv

import (
	"context"
	"errors"
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]entry
	now    Clock
	closed bool
}

func NewMemoryStore(now Clock) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{data: make(map[string]entry), now: now}
}

func (m *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = entry{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	if !m.now().Before(e.expiresAt) {
		m.mu.Lock()
		// re-check under the write lock, the key may have been reset meanwhile
		if cur, ok := m.data[key]; ok && !m.now().Before(cur.expiresAt) {
			delete(m.data, key)
		}
		m.mu.Unlock()
		return "", ErrNotFound
	}
	return e.value, nil
}

func (m *MemoryStore) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return errors.New("store closed")
	}
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
