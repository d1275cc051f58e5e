package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-docshare/internal/config"
	"github.com/go-docshare/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the JWT payload fields. IssuedAt is always set; ExpiresAt is
// IssuedAt + session TTL.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Provider mints and verifies RS256 session tokens. Verification is
// stateless: there is no revocation list, so a captured token stays usable
// until its TTL elapses even after the client logs out.
type Provider struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	ttl        time.Duration
	now        func() time.Time
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return NewProviderFromKeys(privKey, pubKey, cfg.SessionTTL), nil
}

func NewProviderFromKeys(priv *rsa.PrivateKey, pub *rsa.PublicKey, ttl time.Duration) *Provider {
	return &Provider{privateKey: priv, publicKey: pub, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source; used by tests to pin issue/verify instants.
func (p *Provider) WithClock(now func() time.Time) *Provider {
	p.now = now
	return p
}

// TTL is the validity window of minted tokens.
func (p *Provider) TTL() time.Duration { return p.ttl }

// Mint signs a new token for userID. Tokens are never refreshed in place;
// re-authenticating mints a fresh one with a new issue time.
func (p *Provider) Mint(userID string) (string, error) {
	issued := p.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(p.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(p.privateKey)
}

// Verify checks the signature first, then the TTL window. It returns a
// domain.ErrUnauthorized-wrapped error for tampered or malformed tokens and a
// domain.ErrExpired-wrapped error once now >= issuedAt + TTL.
func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.publicKey, nil
	},
		jwt.WithTimeFunc(p.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("token expired: %w", domain.ErrExpired)
		}
		return nil, fmt.Errorf("invalid token: %w", domain.ErrUnauthorized)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" || claims.IssuedAt == nil {
		return nil, fmt.Errorf("invalid token claims: %w", domain.ErrUnauthorized)
	}
	if !p.now().Before(claims.IssuedAt.Add(p.ttl)) {
		return nil, fmt.Errorf("token expired: %w", domain.ErrExpired)
	}
	return claims, nil
}
