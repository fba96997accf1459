package store

import (
	"context"
	"fmt"
	"sync"

	"docucred/internal/document/models"
	id "docucred/pkg/domain"
	"docucred/pkg/platform/sentinel"
)

type entryKey struct {
	fingerprint models.Fingerprint
	userID      id.UserID
}

// InMemoryStore keeps entries per (fingerprint, user) in memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	seq     int64
	entries map[entryKey][]*models.CacheEntry
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{entries: make(map[entryKey][]*models.CacheEntry)}
}

// Record appends a copy of the entry and assigns the next sequence ID.
func (s *InMemoryStore) Record(_ context.Context, entry *models.CacheEntry) (*models.CacheEntry, error) {
	if entry == nil {
		return nil, fmt.Errorf("entry is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	stored := cloneEntry(entry)
	stored.ID = s.seq
	key := entryKey{fingerprint: entry.Fingerprint, userID: entry.UserID}
	s.entries[key] = append(s.entries[key], stored)
	return cloneEntry(stored), nil
}

func (s *InMemoryStore) Latest(_ context.Context, fingerprint models.Fingerprint, userID id.UserID) (*models.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.CacheEntry
	for _, e := range s.entries[entryKey{fingerprint: fingerprint, userID: userID}] {
		if latest == nil || e.NewerThan(latest) {
			latest = e
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("cache entry: %w", sentinel.ErrNotFound)
	}
	return cloneEntry(latest), nil
}

func (s *InMemoryStore) History(_ context.Context, fingerprint models.Fingerprint, userID id.UserID) ([]*models.CacheEntry, error) {
	s.mu.RLock()
	stored := s.entries[entryKey{fingerprint: fingerprint, userID: userID}]
	out := make([]*models.CacheEntry, 0, len(stored))
	for _, e := range stored {
		out = append(out, cloneEntry(e))
	}
	s.mu.RUnlock()

	newestFirst(out)
	return out, nil
}
