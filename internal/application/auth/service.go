package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-docshare/internal/domain"
	"github.com/go-docshare/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

// Result is what a successful login or verification hands back.
type Result struct {
	Token string
	User  *domain.User
}

type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error)
	VerifyOTP(ctx context.Context, req domain.VerifyOTPRequest) (*Result, error)
	ResendOTP(ctx context.Context, email string) error
	Login(ctx context.Context, req domain.LoginRequest) (*Result, error)
	Me(ctx context.Context, userID string) (*domain.User, error)
}

type userStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, userID string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	SetVerified(ctx context.Context, userID string) error
}

type otpManager interface {
	Issue(ctx context.Context, email string) (string, error)
	Verify(ctx context.Context, email, code string) error
	Resend(ctx context.Context, email string) (string, error)
}

type tokenMinter interface {
	Mint(userID string) (string, error)
}

type service struct {
	userRepo userStore
	otp      otpManager
	tokens   tokenMinter
}

type ServiceDeps struct {
	UserRepo userStore
	OTP      otpManager
	Tokens   tokenMinter
}

func NewService(deps ServiceDeps) Service {
	return &service{userRepo: deps.UserRepo, otp: deps.OTP, tokens: deps.Tokens}
}

// Register creates an unverified account and sends its first code.
func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	email := domain.NormalizeEmail(req.Email)
	if _, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Email:        email,
		Name:         req.Name,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, err
	}
	if _, err := s.otp.Issue(ctx, email); err != nil {
		return nil, fmt.Errorf("issue verification code: %w", err)
	}
	return u, nil
}

// VerifyOTP consumes the pending code, marks the email verified and opens a session.
func (s *service) VerifyOTP(ctx context.Context, req domain.VerifyOTPRequest) (*Result, error) {
	email := domain.NormalizeEmail(req.Email)
	if err := s.otp.Verify(ctx, email, req.OTP); err != nil {
		return nil, err
	}
	u, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !u.EmailVerified {
		if err := s.userRepo.SetVerified(ctx, u.UserID); err != nil {
			return nil, err
		}
		u.EmailVerified = true
	}
	return s.session(u)
}

// ResendOTP answers the same way whether or not the email has a pending
// registration, so it cannot be used to probe for accounts. A resend inside
// the cooldown is dropped silently for the same reason.
func (s *service) ResendOTP(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	u, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if u.EmailVerified {
		return nil
	}
	if _, err := s.otp.Resend(ctx, email); err != nil {
		if errors.Is(err, domain.ErrTooManyRequests) {
			slog.Debug("otp resend inside cooldown", "email", email)
			return nil
		}
		return err
	}
	return nil
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*Result, error) {
	u, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if !u.EmailVerified {
		return nil, fmt.Errorf("email not verified: %w", domain.ErrForbidden)
	}
	return s.session(u)
}

func (s *service) Me(ctx context.Context, userID string) (*domain.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}

func (s *service) session(u *domain.User) (*Result, error) {
	token, err := s.tokens.Mint(u.UserID)
	if err != nil {
		slog.Error("failed to mint session token", "user_id", u.UserID, "err", err)
		return nil, err
	}
	return &Result{Token: token, User: u}, nil
}
