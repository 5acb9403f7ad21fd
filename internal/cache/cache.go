// Package cache stores short-lived derived values such as attendance signals. Entries are stale-tolerant:
// readers may observe a value that is up to one TTL old.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// KeyPrefix namespaces every key written by this service.
const KeyPrefix = "fitness:"

// sweepInterval is how often Set drops expired entries of keys that are never read again.
const sweepInterval = time.Minute

// Cache is a keyed store with per-entry expiry. Values are JSON encoded.
type Cache interface {
	// Get decodes the value stored under key into dst and reports whether it was found.
	Get(ctx context.Context, key string, dst any) (bool, error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Delete removes key if present.
	Delete(ctx context.Context, key string) error
}

type entry struct {
	data    []byte
	expires time.Time
}

// Memory is an in-process Cache safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	entries   map[string]entry
	nextSweep time.Time
	now       func() time.Time
}

// NewMemory creates an empty in-process cache. now may be nil to use [time.Now].
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{mu: sync.RWMutex{}, entries: make(map[string]entry), nextSweep: now().Add(sweepInterval), now: now}
}

func (m *Memory) Get(_ context.Context, key string, dst any) (bool, error) {
	m.mu.RLock()
	e, ok := m.entries[KeyPrefix+key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !m.now().Before(e.expires) {
		m.mu.Lock()
		// Another writer may have refreshed the entry in between.
		if cur, found := m.entries[KeyPrefix+key]; found && !m.now().Before(cur.expires) {
			delete(m.entries, KeyPrefix+key)
		}
		m.mu.Unlock()
		return false, nil
	}
	if err := json.Unmarshal(e.data, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if !now.Before(m.nextSweep) {
		for k, e := range m.entries {
			if !now.Before(e.expires) {
				delete(m.entries, k)
			}
		}
		m.nextSweep = now.Add(sweepInterval)
	}
	m.entries[KeyPrefix+key] = entry{data: data, expires: now.Add(ttl)}
	return nil
}

// Len returns the number of stored entries, expired ones included until they are swept.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, KeyPrefix+key)
	m.mu.Unlock()
	return nil
}
