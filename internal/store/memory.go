package store

import (
	"bytes"
	"context"
	"sync"
	"time"
)

type entry struct {
	value    []byte
	expireAt time.Time
}

// Memory is an in-process Store, used where no Redis is available.
type Memory struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]entry
}

// NewMemory creates an empty store. now defaults to time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}

	return &Memory{
		now:     now,
		entries: make(map[string]entry),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok {
		return nil, false, nil
	}

	return bytes.Clone(e.value), true, nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := entry{value: bytes.Clone(value)}
	if ttl > KeepTTL {
		e.expireAt = m.now().Add(ttl)
	} else if old, ok := m.lookup(key); ok {
		e.expireAt = old.expireAt
	}
	m.entries[key] = e

	return nil
}

func (m *Memory) CompareAndPut(_ context.Context, key string, old, value []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok || !bytes.Equal(e.value, old) {
		return false, nil
	}

	e.value = bytes.Clone(value)
	m.entries[key] = e

	return true, nil
}

// lookup drops expired entries lazily. Caller holds mu.
func (m *Memory) lookup(key string) (entry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return entry{}, false
	}

	if !e.expireAt.IsZero() && !m.now().Before(e.expireAt) {
		delete(m.entries, key)
		return entry{}, false
	}

	return e, true
}
