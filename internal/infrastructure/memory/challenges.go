package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-docshare/internal/domain"
)

// ChallengeStore keeps at most one OTP challenge per email.
type ChallengeStore struct {
	mu    sync.Mutex
	items map[string]domain.OtpChallenge
}

func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{items: make(map[string]domain.OtpChallenge)}
}

func (s *ChallengeStore) Put(_ context.Context, c *domain.OtpChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[c.Email] = *c
	return nil
}

func (s *ChallengeStore) Get(_ context.Context, email string) (*domain.OtpChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[email]
	if !ok {
		return nil, fmt.Errorf("challenge not found: %w", domain.ErrNotFound)
	}
	return &c, nil
}

func (s *ChallengeStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, email)
	return nil
}

// Len is the number of stored challenges.
func (s *ChallengeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
