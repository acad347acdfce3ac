// Package cache provides the TTL-aware key/value store backing Certificate
// Transparency discovery. Implementations never expire entries themselves:
// Get returns the stored-at timestamp and staleness is the reader's call.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Store is a minimal get/set key/value store. Both operations are
// best-effort from the caller's perspective: a failed Get degrades to a
// miss, a failed Set skips caching.
type Store interface {
	Get(key string) (value []byte, storedAt time.Time, ok bool)
	Set(key string, value []byte) error
}

type memoryEntry struct {
	value    []byte
	storedAt time.Time
}

// Memory is an in-process Store used when no database path is configured.
// Entries are kept without expiration; readers decide staleness.
type Memory struct {
	c *gocache.Cache
}

// NewMemory creates an in-memory store.
func NewMemory() *Memory {
	return &Memory{c: gocache.New(gocache.NoExpiration, 0)}
}

func (m *Memory) Get(key string) ([]byte, time.Time, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, time.Time{}, false
	}
	entry := v.(memoryEntry)
	return entry.value, entry.storedAt, true
}

func (m *Memory) Set(key string, value []byte) error {
	m.c.Set(key, memoryEntry{value: value, storedAt: time.Now()}, gocache.NoExpiration)
	return nil
}
