package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process KV implementation used in tests and credential-less
// development. Expiry is checked lazily on read.
type Memory struct {
	mu       sync.RWMutex
	strings  map[string]expiring
	hashes   map[string]map[string]string
	lists    map[string][]string
	sets     map[string]map[string]struct{}
	counters map[string]counter
	now      func() time.Time
}

type expiring struct {
	value    string
	expireAt time.Time // zero means no expiry
}

type counter struct {
	value    int64
	expireAt time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		strings:  make(map[string]expiring),
		hashes:   make(map[string]map[string]string),
		lists:    make(map[string][]string),
		sets:     make(map[string]map[string]struct{}),
		counters: make(map[string]counter),
		now:      time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.strings[key]
	if !ok || (!e.expireAt.IsZero() && m.now().After(e.expireAt)) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := expiring{value: value}
	if ttl > 0 {
		e.expireAt = m.now().Add(ttl)
	}
	m.strings[key] = e
	return nil
}

func (m *Memory) HGet(_ context.Context, key, field string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.hashes[key]
	if !ok {
		return "", false, nil
	}
	v, ok := h[field]
	return v, ok, nil
}

func (m *Memory) HSet(_ context.Context, key, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	h[field] = value
	return nil
}

func (m *Memory) ListAppend(_ context.Context, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append(m.lists[key], values...)
	return nil
}

// ListRange follows Redis LRANGE semantics: inclusive bounds, negative
// indexes count from the tail.
func (m *Memory) ListRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.lists[key]
	n := int64(len(list))
	if n == 0 {
		return nil, nil
	}
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

func (m *Memory) SetAdd(_ context.Context, key, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[key]
	if !ok {
		s = make(map[string]struct{})
		m.sets[key] = s
	}
	if _, exists := s[member]; exists {
		return false, nil
	}
	s[member] = struct{}{}
	return true, nil
}

func (m *Memory) SetContains(_ context.Context, key, member string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sets[key]
	if !ok {
		return false, nil
	}
	_, exists := s[member]
	return exists, nil
}

func (m *Memory) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counters[key]
	if !ok || (!c.expireAt.IsZero() && m.now().After(c.expireAt)) {
		c = counter{}
		if ttl > 0 {
			c.expireAt = m.now().Add(ttl)
		}
	}
	c.value++
	m.counters[key] = c
	return c.value, nil
}

func (m *Memory) Ping(context.Context) error { return nil }
