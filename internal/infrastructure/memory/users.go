// Package memory provides process-local stores with the same contracts as
// the DynamoDB repos. They back STORE_BACKEND=memory and the service tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-docshare/internal/domain"
)

type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]domain.User
	byEmail map[string]string
}

func NewUserStore() *UserStore {
	return &UserStore{byID: make(map[string]domain.User), byEmail: make(map[string]string)}
}

func (s *UserStore) Create(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := domain.NormalizeEmail(u.Email)
	if _, ok := s.byEmail[email]; ok {
		return fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}
	if _, ok := s.byID[u.UserID]; ok {
		return fmt.Errorf("user exists: %w", domain.ErrConflict)
	}
	cp := *u
	cp.Email = email
	s.byID[u.UserID] = cp
	s.byEmail[email] = u.UserID
	return nil
}

func (s *UserStore) FindByID(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return &u, nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	id, ok := s.byEmail[domain.NormalizeEmail(email)]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return s.FindByID(ctx, id)
}

func (s *UserStore) SetVerified(_ context.Context, userID string) error {
	return s.mutate(userID, func(u *domain.User) { u.EmailVerified = true })
}

func (s *UserStore) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	return s.mutate(userID, func(u *domain.User) { u.PasswordHash = hash })
}

func (s *UserStore) UpdateName(_ context.Context, userID, name string) error {
	return s.mutate(userID, func(u *domain.User) { u.Name = name })
}

func (s *UserStore) mutate(userID string, fn func(*domain.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	s.byID[userID] = u
	return nil
}
