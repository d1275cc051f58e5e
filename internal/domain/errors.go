package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrBadRequest      = errors.New("bad request")
	ErrExpired         = errors.New("expired")
	ErrMismatch        = errors.New("mismatch")
	ErrTooManyRequests = errors.New("too many requests")
	ErrNetwork         = errors.New("network error")
)

// ErrValidation is the failure kind for malformed input caught before core logic.
var ErrValidation = ErrBadRequest
