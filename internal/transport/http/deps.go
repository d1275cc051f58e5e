package http

import (
	"context"
	"io"
	"time"

	"github.com/go-docshare/internal/application/otp"
	"github.com/go-docshare/internal/domain"
	jwtinfra "github.com/go-docshare/internal/infrastructure/jwt"
	"github.com/prometheus/client_golang/prometheus"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	FindByID(ctx context.Context, userID string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	SetVerified(ctx context.Context, userID string) error
	UpdateName(ctx context.Context, userID, name string) error
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}

// ChallengeRepository is the minimal interface the router requires from an OTP challenge store.
type ChallengeRepository interface {
	Put(ctx context.Context, c *domain.OtpChallenge) error
	Get(ctx context.Context, email string) (*domain.OtpChallenge, error)
	Delete(ctx context.Context, email string) error
}

// DocumentRepository is the minimal interface the router requires from a document store.
type DocumentRepository interface {
	Create(ctx context.Context, d *domain.Document) error
	Get(ctx context.Context, docID string) (*domain.Document, error)
	Update(ctx context.Context, docID string, patch domain.DocumentPatch, expectedVersion int64) (*domain.Document, error)
	Delete(ctx context.Context, docID string) error
	ListByOwner(ctx context.Context, userID string) ([]domain.Document, error)
	ListSharedWith(ctx context.Context, userID string) ([]domain.Document, error)
	AppendOrUpdateGrant(ctx context.Context, g *domain.ShareGrant) error
	RemoveGrant(ctx context.Context, docID, userID string) error
}

// ObjectStore is the minimal interface the router requires from an object storage backend.
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo      UserRepository
	ChallengeRepo ChallengeRepository
	DocumentRepo  DocumentRepository
	Objects       ObjectStore
	Notifier      otp.Notifier
	JWTProvider   *jwtinfra.Provider

	// Registry receives the HTTP metrics and backs /metrics. A fresh
	// registry is used when nil.
	Registry *prometheus.Registry
}
