package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMemorySize bounds the in-process cache when no size is configured.
const DefaultMemorySize = 1000

// Memory is an in-process LRU cache with a fixed TTL for every entry.
type Memory struct {
	lru *expirable.LRU[string, []byte]
	counters
}

// NewMemory creates an in-process cache. Non-positive arguments fall back to
// DefaultMemorySize and DefaultTTL.
func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = DefaultMemorySize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Get returns a copy of the cached value.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.lru.Get(key)
	m.record(ok)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set stores a copy of value.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.lru.Add(key, append([]byte(nil), value...))
	return nil
}

// Delete removes key if present.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}

// Stats returns hit/miss counters and the current entry count.
func (m *Memory) Stats() Stats {
	return m.snapshot(m.lru.Len())
}

// Close purges all entries.
func (m *Memory) Close() error {
	m.lru.Purge()
	return nil
}
