// Package client is the caller side of the docshare HTTP API: a thin typed
// API wrapper, the Session that owns the current token and user, a file
// backed token store and the OTP resend countdown.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-docshare/internal/domain"
)

// APIError is a non-2xx response. It unwraps to the domain sentinel matching
// its status so callers can use errors.Is.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: %s (status %d)", e.Message, e.Status)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusBadRequest:
		return domain.ErrValidation
	case e.Status == http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case e.Status == http.StatusForbidden:
		return domain.ErrForbidden
	case e.Status == http.StatusNotFound:
		return domain.ErrNotFound
	case e.Status == http.StatusConflict:
		return domain.ErrConflict
	case e.Status == http.StatusGone:
		return domain.ErrExpired
	case e.Status == http.StatusTooManyRequests:
		return domain.ErrTooManyRequests
	case e.Status >= http.StatusInternalServerError:
		return domain.ErrNetwork
	}
	return nil
}

// DocumentDetail is a document as returned to one caller.
type DocumentDetail struct {
	domain.Document
	IsOwner    bool              `json:"isOwner"`
	Permission domain.Permission `json:"permission"`
	FileURL    string            `json:"fileUrl,omitempty"`
}

// UploadRequest describes a new document. Body is streamed as the file part.
type UploadRequest struct {
	Title        string
	Description  string
	DocumentType string
	FileName     string
	Body         io.Reader
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Count   *int            `json:"count"`
	Token   string          `json:"token"`
	User    *domain.User    `json:"user"`
}

// API issues requests against one server. Every request is bounded by the
// http.Client timeout; transport failures wrap domain.ErrNetwork.
type API struct {
	base string
	hc   *http.Client
}

func NewAPI(baseURL string, timeout time.Duration) *API {
	return &API{
		base: strings.TrimRight(baseURL, "/"),
		hc:   &http.Client{Timeout: timeout},
	}
}

// WithHTTPClient replaces the underlying client; used by tests.
func (a *API) WithHTTPClient(hc *http.Client) *API {
	a.hc = hc
	return a
}

func (a *API) Register(ctx context.Context, req domain.RegisterRequest) error {
	_, err := a.doJSON(ctx, http.MethodPost, "/api/auth/register", "", req)
	return err
}

// VerifyOTP exchanges a code for a session. A rejected code surfaces as
// domain.ErrMismatch rather than ErrUnauthorized.
func (a *API) VerifyOTP(ctx context.Context, email, code string) (string, *domain.User, error) {
	env, err := a.doJSON(ctx, http.MethodPost, "/api/auth/verify-otp", "", domain.VerifyOTPRequest{Email: email, OTP: code})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return "", nil, fmt.Errorf("%s: %w", apiErr.Message, domain.ErrMismatch)
		}
		return "", nil, err
	}
	return sessionFrom(env)
}

func (a *API) ResendOTP(ctx context.Context, email string) error {
	_, err := a.doJSON(ctx, http.MethodPost, "/api/auth/resend-otp", "", domain.ResendOTPRequest{Email: email})
	return err
}

func (a *API) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	env, err := a.doJSON(ctx, http.MethodPost, "/api/auth/login", "", domain.LoginRequest{Email: email, Password: password})
	if err != nil {
		return "", nil, err
	}
	return sessionFrom(env)
}

func (a *API) Me(ctx context.Context, token string) (*domain.User, error) {
	var u domain.User
	if err := a.get(ctx, "/api/auth/me", token, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (a *API) UpdateProfile(ctx context.Context, token, name string) (*domain.User, error) {
	env, err := a.doJSON(ctx, http.MethodPut, "/api/users/profile", token, domain.UpdateProfileRequest{Name: name})
	if err != nil {
		return nil, err
	}
	var u domain.User
	return &u, decodeData(env, &u)
}

func (a *API) ChangePassword(ctx context.Context, token, current, next string) error {
	_, err := a.doJSON(ctx, http.MethodPut, "/api/users/password", token, domain.ChangePasswordRequest{CurrentPassword: current, NewPassword: next})
	return err
}

func (a *API) ListDocuments(ctx context.Context, token string) ([]domain.Document, error) {
	var docs []domain.Document
	if err := a.get(ctx, "/api/documents", token, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (a *API) ListShared(ctx context.Context, token string) ([]domain.Document, error) {
	var docs []domain.Document
	if err := a.get(ctx, "/api/documents/shared", token, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (a *API) GetDocument(ctx context.Context, token, docID string) (*DocumentDetail, error) {
	var d DocumentDetail
	if err := a.get(ctx, docPath(docID), token, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (a *API) Upload(ctx context.Context, token string, in UploadRequest) (*domain.Document, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{"title": in.Title, "description": in.Description, "documentType": in.DocumentType} {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	fw, err := mw.CreateFormFile("file", in.FileName)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, in.Body); err != nil {
		return nil, fmt.Errorf("read %s: %w", in.FileName, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	env, err := a.do(ctx, http.MethodPost, "/api/documents", token, &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	var d domain.Document
	return &d, decodeData(env, &d)
}

func (a *API) UpdateDocument(ctx context.Context, token, docID string, patch domain.DocumentPatch) (*domain.Document, error) {
	env, err := a.doJSON(ctx, http.MethodPut, docPath(docID), token, patch)
	if err != nil {
		return nil, err
	}
	var d domain.Document
	return &d, decodeData(env, &d)
}

func (a *API) DeleteDocument(ctx context.Context, token, docID string) error {
	_, err := a.do(ctx, http.MethodDelete, docPath(docID), token, nil, "")
	return err
}

func (a *API) Share(ctx context.Context, token, docID, email string, level domain.AccessLevel) ([]domain.ShareGrant, error) {
	env, err := a.doJSON(ctx, http.MethodPost, docPath(docID)+"/share", token, domain.ShareRequest{Email: email, AccessLevel: string(level)})
	if err != nil {
		return nil, err
	}
	return grantsFrom(env)
}

func (a *API) UpdateAccess(ctx context.Context, token, docID, userID string, level domain.AccessLevel) ([]domain.ShareGrant, error) {
	env, err := a.doJSON(ctx, http.MethodPut, docPath(docID)+"/share/"+url.PathEscape(userID), token, domain.UpdateAccessRequest{AccessLevel: string(level)})
	if err != nil {
		return nil, err
	}
	return grantsFrom(env)
}

func (a *API) Revoke(ctx context.Context, token, docID, userID string) ([]domain.ShareGrant, error) {
	env, err := a.do(ctx, http.MethodDelete, docPath(docID)+"/share/"+url.PathEscape(userID), token, nil, "")
	if err != nil {
		return nil, err
	}
	return grantsFrom(env)
}

func (a *API) get(ctx context.Context, path, token string, out interface{}) error {
	env, err := a.do(ctx, http.MethodGet, path, token, nil, "")
	if err != nil {
		return err
	}
	return decodeData(env, out)
}

func (a *API) doJSON(ctx context.Context, method, path, token string, body interface{}) (*envelope, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return a.do(ctx, method, path, token, bytes.NewReader(b), "application/json")
}

func (a *API) do(ctx context.Context, method, path, token string, body io.Reader, contentType string) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := a.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %v: %w", method, path, err, domain.ErrNetwork)
	}
	defer res.Body.Close()

	var env envelope
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %v: %w", err, domain.ErrNetwork)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && res.StatusCode < 300 {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	if res.StatusCode >= 300 {
		return nil, &APIError{Status: res.StatusCode, Message: env.Message}
	}
	return &env, nil
}

func decodeData(env *envelope, out interface{}) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func sessionFrom(env *envelope) (string, *domain.User, error) {
	if env.Token == "" || env.User == nil {
		return "", nil, errors.New("api: session response missing token or user")
	}
	return env.Token, env.User, nil
}

func grantsFrom(env *envelope) ([]domain.ShareGrant, error) {
	var v struct {
		SharedWith []domain.ShareGrant `json:"sharedWith"`
	}
	if err := decodeData(env, &v); err != nil {
		return nil, err
	}
	return v.SharedWith, nil
}

func docPath(id string) string { return "/api/documents/" + url.PathEscape(id) }
