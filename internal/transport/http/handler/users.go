package handler

import (
	"net/http"

	"github.com/go-docshare/internal/application/user"
	"github.com/go-docshare/internal/domain"
	"github.com/go-docshare/internal/transport/http/middleware"
)

// UserHandler serves the caller's own profile endpoints.
type UserHandler struct {
	svc user.Service
}

func NewUserHandler(svc user.Service) *UserHandler { return &UserHandler{svc: svc} }

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.UpdateProfileRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	u, err := h.svc.UpdateProfile(r.Context(), claims.UserID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, u)
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.ChangePasswordRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), claims.UserID, req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "password updated")
}
