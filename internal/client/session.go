package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-docshare/internal/domain"
)

// Snapshot is a consistent view of the session. Token and User are either
// both set with Authenticated true, or both empty with Authenticated false.
type Snapshot struct {
	Token         string
	User          *domain.User
	Authenticated bool
}

// Session is the single record of who the client is logged in as. All state
// changes replace token, user and the authenticated flag together.
type Session struct {
	api   *API
	store TokenStore

	mu    sync.RWMutex
	token string
	user  *domain.User
}

func NewSession(api *API, store TokenStore) *Session {
	if store == nil {
		store = &MemoryTokenStore{}
	}
	return &Session{api: api, store: store}
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || s.user == nil {
		return Snapshot{}
	}
	u := *s.user
	return Snapshot{Token: s.token, User: &u, Authenticated: true}
}

// Restore resolves the persisted token into a user. Any failure leaves the
// session cleared; the token file is purged only when the server rejected the
// token, so a network outage does not log the user out for good.
func (s *Session) Restore(ctx context.Context) (Snapshot, error) {
	token, err := s.store.Load()
	if err != nil || token == "" {
		s.clear()
		return Snapshot{}, err
	}
	u, err := s.api.Me(ctx, token)
	if err != nil {
		s.clear()
		if errors.Is(err, domain.ErrUnauthorized) {
			s.purge()
		}
		return Snapshot{}, err
	}
	s.commit(token, u)
	return s.Snapshot(), nil
}

// Login opens a session with a password. On failure the session is left
// fully cleared.
func (s *Session) Login(ctx context.Context, email, password string) (Snapshot, error) {
	token, u, err := s.api.Login(ctx, email, password)
	return s.open(token, u, err)
}

// VerifyOTP opens a session by confirming the emailed code.
func (s *Session) VerifyOTP(ctx context.Context, email, code string) (Snapshot, error) {
	token, u, err := s.api.VerifyOTP(ctx, email, code)
	return s.open(token, u, err)
}

func (s *Session) Register(ctx context.Context, req domain.RegisterRequest) error {
	return s.api.Register(ctx, req)
}

func (s *Session) ResendOTP(ctx context.Context, email string) error {
	return s.api.ResendOTP(ctx, email)
}

// Logout discards the session locally and removes the persisted token. The
// server keeps no session state, so the token itself stays valid until it
// expires.
func (s *Session) Logout() error {
	s.clear()
	return s.store.Clear()
}

// Invalidate clears the session after the server refused its token.
func (s *Session) Invalidate() {
	s.clear()
	s.purge()
}

// UpdateUser merges the non-zero fields of partial into the cached user. It
// does not contact the server.
func (s *Session) UpdateUser(partial domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return
	}
	u := *s.user
	if partial.UserID != "" {
		u.UserID = partial.UserID
	}
	if partial.Email != "" {
		u.Email = partial.Email
	}
	if partial.Name != "" {
		u.Name = partial.Name
	}
	if partial.EmailVerified {
		u.EmailVerified = true
	}
	if !partial.CreatedAt.IsZero() {
		u.CreatedAt = partial.CreatedAt
	}
	if !partial.UpdatedAt.IsZero() {
		u.UpdatedAt = partial.UpdatedAt
	}
	s.user = &u
}

func (s *Session) open(token string, u *domain.User, err error) (Snapshot, error) {
	if err != nil {
		s.clear()
		return Snapshot{}, err
	}
	s.commit(token, u)
	if err := s.store.Save(token); err != nil {
		slog.Warn("failed to persist session token", "err", err)
	}
	return s.Snapshot(), nil
}

func (s *Session) commit(token string, u *domain.User) {
	cp := *u
	s.mu.Lock()
	s.token, s.user = token, &cp
	s.mu.Unlock()
}

func (s *Session) clear() {
	s.mu.Lock()
	s.token, s.user = "", nil
	s.mu.Unlock()
}

func (s *Session) purge() {
	if err := s.store.Clear(); err != nil {
		slog.Warn("failed to remove session token", "err", err)
	}
}

// authed runs fn with the current token. A 401 clears the session.
func (s *Session) authed(fn func(token string) error) error {
	snap := s.Snapshot()
	if !snap.Authenticated {
		return errNotLoggedIn
	}
	err := fn(snap.Token)
	if errors.Is(err, domain.ErrUnauthorized) {
		s.Invalidate()
	}
	return err
}

var errNotLoggedIn = fmt.Errorf("not logged in: %w", domain.ErrUnauthorized)
