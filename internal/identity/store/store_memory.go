// Package store persists accounts.
//
// Error contract: Find methods return sentinel.ErrNotFound when the user does
// not exist; Create returns sentinel.ErrAlreadyUsed when the username is taken.
package store

import (
	"context"
	"fmt"
	"sync"

	"docucred/internal/identity/models"
	id "docucred/pkg/domain"
	"docucred/pkg/platform/sentinel"
)

// InMemoryUserStore stores users in memory for tests and single-process deployments.
type InMemoryUserStore struct {
	mu         sync.RWMutex
	byID       map[id.UserID]*models.User
	byUsername map[string]id.UserID
}

// NewInMemoryUserStore constructs an empty in-memory user store.
func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{
		byID:       make(map[id.UserID]*models.User),
		byUsername: make(map[string]id.UserID),
	}
}

// Create inserts the user unless the username is taken. The check and insert
// happen under one lock.
func (s *InMemoryUserStore) Create(_ context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("user is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byUsername[user.Username]; taken {
		return fmt.Errorf("username %q: %w", user.Username, sentinel.ErrAlreadyUsed)
	}
	stored := *user
	s.byID[user.ID] = &stored
	s.byUsername[user.Username] = user.ID
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.byID[userID]; ok {
		found := *user
		return &found, nil
	}
	return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryUserStore) FindByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byUsername[username]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	found := *s.byID[userID]
	return &found, nil
}
