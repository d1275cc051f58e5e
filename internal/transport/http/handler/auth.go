package handler

import (
	"errors"
	"net/http"

	"github.com/go-docshare/internal/application/auth"
	"github.com/go-docshare/internal/domain"
	"github.com/go-docshare/internal/transport/http/middleware"
)

// AuthHandler serves registration, OTP verification and login.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler { return &AuthHandler{svc: svc} }

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	u, err := h.svc.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, Envelope{
		Success: true,
		Data:    map[string]string{"email": u.Email},
		Message: "registration successful, check your email for the verification code",
	})
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyOTPRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	res, err := h.svc.VerifyOTP(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{Success: true, Token: res.Token, User: res.User, Message: "email verified"})
}

func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.ResendOTPRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.svc.ResendOTP(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "if the account is awaiting verification, a new code has been sent")
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	res, err := h.svc.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{Success: true, Token: res.Token, User: res.User})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	u, err := h.svc.Me(r.Context(), claims.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "not authorized, user no longer exists")
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, u)
}
