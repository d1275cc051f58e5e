package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-docshare/internal/application/auth"
	"github.com/go-docshare/internal/domain"
	"github.com/go-docshare/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	args := m.Called(ctx, req)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) VerifyOTP(ctx context.Context, req domain.VerifyOTPRequest) (*auth.Result, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*auth.Result); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) ResendOTP(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockAuthSvc) Login(ctx context.Context, req domain.LoginRequest) (*auth.Result, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*auth.Result); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) Me(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestRegister_InvalidBody(t *testing.T) {
	h := NewAuthHandler(&mockAuthSvc{})
	rr := httptest.NewRecorder()
	h.Register(rr, jsonReq(t, http.MethodPost, "/api/auth/register", "not-json"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRegister_ValidationFailure(t *testing.T) {
	h := NewAuthHandler(&mockAuthSvc{})
	rr := httptest.NewRecorder()
	h.Register(rr, jsonReq(t, http.MethodPost, "/api/auth/register", domain.RegisterRequest{Name: "Ada", Email: "not-an-email", Password: "secret1"}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeEnvelope(t, rr).Message, "field 'Email' failed 'email'")
}

func TestRegister_EmailTaken(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Register", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("email already registered: %w", domain.ErrConflict))
	h := NewAuthHandler(svc)

	rr := httptest.NewRecorder()
	h.Register(rr, jsonReq(t, http.MethodPost, "/api/auth/register", domain.RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "secret1"}))

	assert.Equal(t, http.StatusConflict, rr.Code)
	svc.AssertExpectations(t)
}

func TestRegister_HappyPath(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Register", mock.Anything, domain.RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "secret1"}).
		Return(&domain.User{UserID: "u1", Email: "ada@example.com"}, nil)
	h := NewAuthHandler(svc)

	rr := httptest.NewRecorder()
	h.Register(rr, jsonReq(t, http.MethodPost, "/api/auth/register", domain.RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "secret1"}))

	assert.Equal(t, http.StatusCreated, rr.Code)
	e := decodeEnvelope(t, rr)
	assert.True(t, e.Success)
	assert.JSONEq(t, `{"email":"ada@example.com"}`, string(e.Data))
	svc.AssertExpectations(t)
}

func TestVerifyOTP_MalformedCodeRejectedBeforeService(t *testing.T) {
	svc := &mockAuthSvc{}
	h := NewAuthHandler(svc)

	rr := httptest.NewRecorder()
	h.VerifyOTP(rr, jsonReq(t, http.MethodPost, "/api/auth/verify-otp", domain.VerifyOTPRequest{Email: "ada@example.com", OTP: "12a456"}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "VerifyOTP", mock.Anything, mock.Anything)
}

func TestVerifyOTP_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no challenge", domain.ErrNotFound, http.StatusNotFound},
		{"expired", domain.ErrExpired, http.StatusGone},
		{"wrong code", domain.ErrMismatch, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthSvc{}
			svc.On("VerifyOTP", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("verify: %w", tt.err))
			h := NewAuthHandler(svc)

			rr := httptest.NewRecorder()
			h.VerifyOTP(rr, jsonReq(t, http.MethodPost, "/api/auth/verify-otp", domain.VerifyOTPRequest{Email: "ada@example.com", OTP: "123456"}))
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestVerifyOTP_ReturnsTokenAndUserAtTopLevel(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("VerifyOTP", mock.Anything, domain.VerifyOTPRequest{Email: "ada@example.com", OTP: "123456"}).
		Return(&auth.Result{Token: "tok", User: &domain.User{UserID: "u1", Email: "ada@example.com", EmailVerified: true}}, nil)
	h := NewAuthHandler(svc)

	rr := httptest.NewRecorder()
	h.VerifyOTP(rr, jsonReq(t, http.MethodPost, "/api/auth/verify-otp", domain.VerifyOTPRequest{Email: "ada@example.com", OTP: "123456"}))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp AuthEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "tok", resp.Token)
	require.NotNil(t, resp.User)
	assert.Equal(t, "u1", resp.User.UserID)
	assert.True(t, resp.User.EmailVerified)
	assert.NotContains(t, rr.Body.String(), "password")
}

func TestResendOTP_Cooldown(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("ResendOTP", mock.Anything, "ada@example.com").Return(fmt.Errorf("wait: %w", domain.ErrTooManyRequests))
	h := NewAuthHandler(svc)

	rr := httptest.NewRecorder()
	h.ResendOTP(rr, jsonReq(t, http.MethodPost, "/api/auth/resend-otp", domain.ResendOTPRequest{Email: "ada@example.com"}))

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestResendOTP_OK(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("ResendOTP", mock.Anything, "ada@example.com").Return(nil)
	h := NewAuthHandler(svc)

	rr := httptest.NewRecorder()
	h.ResendOTP(rr, jsonReq(t, http.MethodPost, "/api/auth/resend-otp", domain.ResendOTPRequest{Email: "ada@example.com"}))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decodeEnvelope(t, rr).Success)
}

func TestLogin_Statuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"bad credentials", domain.ErrUnauthorized, http.StatusUnauthorized},
		{"unverified", domain.ErrForbidden, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthSvc{}
			svc.On("Login", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("login: %w", tt.err))
			h := NewAuthHandler(svc)

			rr := httptest.NewRecorder()
			h.Login(rr, jsonReq(t, http.MethodPost, "/api/auth/login", domain.LoginRequest{Email: "ada@example.com", Password: "x"}))
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestMe_ThroughAuthMiddleware(t *testing.T) {
	p := newTestJWTProvider(t)
	token, err := p.Mint("u1")
	require.NoError(t, err)

	svc := &mockAuthSvc{}
	svc.On("Me", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Name: "Ada"}, nil)
	h := NewAuthHandler(svc)

	r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	middleware.Auth(p)(http.HandlerFunc(h.Me)).ServeHTTP(rr, r)

	require.Equal(t, http.StatusOK, rr.Code)
	var u domain.User
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rr).Data, &u))
	assert.Equal(t, "Ada", u.Name)
}

func TestMe_DeletedUserIsUnauthorized(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Me", mock.Anything, "gone").Return(nil, fmt.Errorf("user: %w", domain.ErrNotFound))
	h := NewAuthHandler(svc)

	rr := httptest.NewRecorder()
	h.Me(rr, asUser(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), "gone"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMe_MissingClaims(t *testing.T) {
	h := NewAuthHandler(&mockAuthSvc{})
	rr := httptest.NewRecorder()
	h.Me(rr, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
