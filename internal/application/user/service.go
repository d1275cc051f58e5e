package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-docshare/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 6

type Service interface {
	UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error)
	ChangePassword(ctx context.Context, userID string, req domain.ChangePasswordRequest) error
}

type userStore interface {
	FindByID(ctx context.Context, userID string) (*domain.User, error)
	UpdateName(ctx context.Context, userID, name string) error
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}

type service struct {
	repo userStore
}

type ServiceDeps struct {
	UserRepo userStore
}

func NewService(deps ServiceDeps) Service {
	return &service{repo: deps.UserRepo}
}

// UpdateProfile changes the display name and returns the stored user.
func (s *service) UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("name is required: %w", domain.ErrValidation)
	}
	if err := s.repo.UpdateName(ctx, userID, name); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, userID)
}

// ChangePassword requires the current password. A wrong current password is
// a validation failure, not an auth failure, so the caller's session survives.
func (s *service) ChangePassword(ctx context.Context, userID string, req domain.ChangePasswordRequest) error {
	if len(req.NewPassword) < minPasswordLen {
		return fmt.Errorf("new password must be at least %d characters: %w", minPasswordLen, domain.ErrValidation)
	}
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return fmt.Errorf("current password is incorrect: %w", domain.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.UpdatePasswordHash(ctx, userID, string(hash))
}
