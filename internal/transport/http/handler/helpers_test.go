package handler

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	jwtinfra "github.com/go-docshare/internal/infrastructure/jwt"
	"github.com/go-docshare/internal/transport/http/middleware"
	"github.com/stretchr/testify/require"
)

func newTestJWTProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return jwtinfra.NewProviderFromKeys(key, &key.PublicKey, 24*time.Hour)
}

// jsonReq builds a request whose body is v encoded as JSON; a string v is sent raw.
func jsonReq(t *testing.T, method, target string, v interface{}) *http.Request {
	t.Helper()
	var body []byte
	switch b := v.(type) {
	case nil:
	case string:
		body = []byte(b)
	default:
		var err error
		body, err = json.Marshal(v)
		require.NoError(t, err)
	}
	r := httptest.NewRequest(method, target, bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// asUser attaches claims for userID the way middleware.Auth would.
func asUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.WithClaims(r.Context(), &jwtinfra.Claims{UserID: userID}))
}

// withParams injects chi URL params into the request context.
func withParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Count   *int            `json:"count"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &e), rr.Body.String())
	return e
}
