// Package otp issues and checks one-time email codes.
//
// Each email has at most one live challenge. Issuing a new one replaces the
// old row, so a previously sent code stops working. Only an HMAC of the code
// is stored. Operations on one email are serialised in-process.
package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-docshare/internal/domain"
	"github.com/go-docshare/internal/pkg/keylock"
	"github.com/go-docshare/internal/pkg/otpcode"
	"github.com/google/uuid"
)

// defaultNotifyTimeout stays below the HTTP request timeout so a stalled
// notifier cannot turn a stored challenge into a gateway timeout.
const defaultNotifyTimeout = 5 * time.Second

// MaxAttempts is the number of wrong codes a challenge tolerates. The
// challenge is discarded on the last one and a new code must be requested.
const MaxAttempts = 5

type Service interface {
	Issue(ctx context.Context, email string) (challengeID string, err error)
	Verify(ctx context.Context, email, code string) error
	Resend(ctx context.Context, email string) (challengeID string, err error)
}

type challengeStore interface {
	Put(ctx context.Context, c *domain.OtpChallenge) error
	Get(ctx context.Context, email string) (*domain.OtpChallenge, error)
	Delete(ctx context.Context, email string) error
}

// Notifier delivers a code to its owner. Delivery is best effort.
type Notifier interface {
	SendOTP(ctx context.Context, email, code string) error
}

type service struct {
	store    challengeStore
	notifier Notifier
	hasher   *otpcode.Hasher
	ttl      time.Duration
	cooldown time.Duration
	notifyTO time.Duration
	locks    *keylock.Map
	now      func() time.Time
	generate func() (string, error)
}

type ServiceDeps struct {
	ChallengeRepo  challengeStore
	Notifier       Notifier
	Secret         string
	TTL            time.Duration
	ResendCooldown time.Duration

	// Optional; default to time.Now, otpcode.Generate and 5s.
	Clock         func() time.Time
	Generator     func() (string, error)
	NotifyTimeout time.Duration
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		store:    deps.ChallengeRepo,
		notifier: deps.Notifier,
		hasher:   otpcode.NewHasher(deps.Secret),
		ttl:      deps.TTL,
		cooldown: deps.ResendCooldown,
		notifyTO: deps.NotifyTimeout,
		locks:    keylock.New(),
		now:      deps.Clock,
		generate: deps.Generator,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.generate == nil {
		s.generate = otpcode.Generate
	}
	if s.notifyTO <= 0 {
		s.notifyTO = defaultNotifyTimeout
	}
	return s
}

func (s *service) Issue(ctx context.Context, email string) (string, error) {
	email = domain.NormalizeEmail(email)
	unlock := s.locks.Lock(email)
	c, code, err := s.issueLocked(ctx, email)
	unlock()
	if err != nil {
		return "", err
	}
	s.notify(ctx, email, code)
	return c.ChallengeID, nil
}

// Resend issues a fresh challenge unless the current one was created less
// than the cooldown ago.
func (s *service) Resend(ctx context.Context, email string) (string, error) {
	email = domain.NormalizeEmail(email)
	unlock := s.locks.Lock(email)
	existing, err := s.store.Get(ctx, email)
	switch {
	case err == nil:
		if wait := existing.CreatedAt.Add(s.cooldown).Sub(s.now()); wait > 0 {
			unlock()
			return "", fmt.Errorf("resend available in %ds: %w", int(wait.Seconds()+0.999), domain.ErrTooManyRequests)
		}
	case !errors.Is(err, domain.ErrNotFound):
		unlock()
		return "", err
	}
	c, code, err := s.issueLocked(ctx, email)
	unlock()
	if err != nil {
		return "", err
	}
	s.notify(ctx, email, code)
	return c.ChallengeID, nil
}

func (s *service) issueLocked(ctx context.Context, email string) (*domain.OtpChallenge, string, error) {
	code, err := s.generate()
	if err != nil {
		return nil, "", fmt.Errorf("generate code: %w", err)
	}
	now := s.now().UTC()
	c := &domain.OtpChallenge{
		Email:       email,
		ChallengeID: uuid.NewString(),
		CodeHash:    s.hasher.Hash(email, code),
		ExpiresAt:   now.Add(s.ttl),
		TTL:         domain.TTLSeconds(now.Add(s.ttl)),
		CreatedAt:   now,
	}
	if err := s.store.Put(ctx, c); err != nil {
		return nil, "", err
	}
	return c, code, nil
}

// notify runs after the challenge is stored; a delivery failure leaves the
// challenge valid so the user can ask for a resend.
func (s *service) notify(ctx context.Context, email, code string) {
	if s.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTO)
	defer cancel()
	if err := s.notifier.SendOTP(nctx, email, code); err != nil {
		slog.Warn("failed to deliver OTP", "email", email, "err", err)
	}
}

// Verify consumes the challenge on success. It fails with ErrNotFound when
// no challenge exists, ErrExpired once the TTL has passed, and ErrMismatch
// for a wrong or malformed code. A challenge that has seen MaxAttempts wrong
// codes is deleted, so later calls get ErrNotFound.
func (s *service) Verify(ctx context.Context, email, code string) error {
	email = domain.NormalizeEmail(email)
	unlock := s.locks.Lock(email)
	defer unlock()

	c, err := s.store.Get(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("no pending code for this email: %w", domain.ErrNotFound)
		}
		return err
	}
	if c.Expired(s.now()) {
		if err := s.store.Delete(ctx, email); err != nil {
			slog.Warn("failed to delete expired OTP challenge", "email", email, "err", err)
		}
		return fmt.Errorf("code expired: %w", domain.ErrExpired)
	}
	if !otpcode.WellFormed(code) || !s.hasher.Equal(email, code, c.CodeHash) {
		return s.recordMismatch(ctx, c)
	}
	if err := s.store.Delete(ctx, email); err != nil {
		return fmt.Errorf("consume challenge: %w", err)
	}
	return nil
}

func (s *service) recordMismatch(ctx context.Context, c *domain.OtpChallenge) error {
	c.Attempts++
	if c.Attempts >= MaxAttempts {
		if err := s.store.Delete(ctx, c.Email); err != nil {
			return fmt.Errorf("discard challenge: %w", err)
		}
		return fmt.Errorf("invalid code, too many attempts; request a new code: %w", domain.ErrMismatch)
	}
	if err := s.store.Put(ctx, c); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return fmt.Errorf("invalid code: %w", domain.ErrMismatch)
}
