package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-docshare/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", domain.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("x: %w", domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", domain.ErrExpired), http.StatusGone},
		{fmt.Errorf("x: %w", domain.ErrMismatch), http.StatusUnauthorized},
		{fmt.Errorf("x: %w", domain.ErrUnauthorized), http.StatusUnauthorized},
		{fmt.Errorf("x: %w", domain.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("x: %w", domain.ErrConflict), http.StatusConflict},
		{fmt.Errorf("x: %w", domain.ErrTooManyRequests), http.StatusTooManyRequests},
		{fmt.Errorf("x: %w", domain.ErrNetwork), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestWriteServiceError_HidesInternalErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	writeServiceError(rr, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("dynamodb: table missing"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	e := decodeEnvelope(t, rr)
	assert.False(t, e.Success)
	assert.Equal(t, "server error", e.Message)
}

func TestWriteList_EmptyIsArrayWithCount(t *testing.T) {
	rr := httptest.NewRecorder()
	writeList[domain.Document](rr, nil)

	e := decodeEnvelope(t, rr)
	assert.True(t, e.Success)
	assert.JSONEq(t, `[]`, string(e.Data))
	if assert.NotNil(t, e.Count) {
		assert.Equal(t, 0, *e.Count)
	}
}
