package cache

import (
	"sync"
	"time"
)

// MemoryStore keeps expiring key-value pairs in process memory. It backs the
// OAuth state manager when Redis is not configured, so entries are short
// lived and the dataset stays tiny.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemoryStore creates a store and starts its janitor goroutine
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{entries: make(map[string]memoryEntry)}
	go s.janitor()
	return s
}

// Set stores a value under key until expiration elapses
func (s *MemoryStore) Set(key string, value string, expiration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(expiration)}
}

// Get returns the value for key, or false when missing or expired
func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.value, true
}

// Delete removes key if present
func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// janitor sweeps expired entries so abandoned OAuth states do not pile up
func (s *MemoryStore) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		s.mu.Lock()
		for key, entry := range s.entries {
			if now.After(entry.expiresAt) {
				delete(s.entries, key)
			}
		}
		s.mu.Unlock()
	}
}
