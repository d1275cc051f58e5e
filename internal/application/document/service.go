// Package document is the authorization boundary for document operations.
// Every call resolves the caller's permission through package access before
// touching storage. Mutations on one document are serialised in-process and
// metadata writes are additionally guarded by an optimistic version check.
package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/go-docshare/internal/application/access"
	"github.com/go-docshare/internal/domain"
	"github.com/go-docshare/internal/pkg/id"
	"github.com/go-docshare/internal/pkg/keylock"
)

// allowedExtensions maps accepted upload extensions to their content type.
var allowedExtensions = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

type UploadInput struct {
	Reader       io.Reader
	Filename     string
	Size         int64
	Title        string
	Description  string
	DocumentType string
	OwnerID      string
}

// Detail is a document as seen by one caller.
type Detail struct {
	*domain.Document
	IsOwner    bool              `json:"isOwner"`
	Permission domain.Permission `json:"permission"`
	FileURL    string            `json:"fileUrl,omitempty"`
}

type Service interface {
	Upload(ctx context.Context, in UploadInput) (*domain.Document, error)
	Get(ctx context.Context, callerID, docID string) (*Detail, error)
	Update(ctx context.Context, callerID, docID string, patch domain.DocumentPatch) (*domain.Document, error)
	Delete(ctx context.Context, callerID, docID string) error
	ListOwned(ctx context.Context, callerID string) ([]domain.Document, error)
	ListShared(ctx context.Context, callerID string) ([]domain.Document, error)
	Share(ctx context.Context, callerID, docID string, req domain.ShareRequest) ([]domain.ShareGrant, error)
	UpdateAccess(ctx context.Context, callerID, docID, granteeID string, level domain.AccessLevel) ([]domain.ShareGrant, error)
	Revoke(ctx context.Context, callerID, docID, granteeID string) ([]domain.ShareGrant, error)
}

type documentStore interface {
	Create(ctx context.Context, d *domain.Document) error
	Get(ctx context.Context, docID string) (*domain.Document, error)
	Update(ctx context.Context, docID string, patch domain.DocumentPatch, expectedVersion int64) (*domain.Document, error)
	Delete(ctx context.Context, docID string) error
	ListByOwner(ctx context.Context, userID string) ([]domain.Document, error)
	ListSharedWith(ctx context.Context, userID string) ([]domain.Document, error)
	AppendOrUpdateGrant(ctx context.Context, g *domain.ShareGrant) error
	RemoveGrant(ctx context.Context, docID, userID string) error
}

type userLookup interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
}

type objectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type service struct {
	docs     documentStore
	users    userLookup
	objects  objectStore
	maxBytes int64
	urlTTL   time.Duration
	locks    *keylock.Map
	now      func() time.Time
}

type ServiceDeps struct {
	DocumentRepo   documentStore
	UserRepo       userLookup
	Objects        objectStore
	MaxUploadBytes int64
	FileURLTTL     time.Duration
	Clock          func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		docs:     deps.DocumentRepo,
		users:    deps.UserRepo,
		objects:  deps.Objects,
		maxBytes: deps.MaxUploadBytes,
		urlTTL:   deps.FileURLTTL,
		locks:    keylock.New(),
		now:      deps.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Upload(ctx context.Context, in UploadInput) (*domain.Document, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", domain.ErrValidation)
	}
	if !domain.ValidDocumentType(in.DocumentType) {
		return nil, fmt.Errorf("unknown document type %q: %w", in.DocumentType, domain.ErrValidation)
	}
	contentType, ok := allowedExtensions[strings.ToLower(path.Ext(in.Filename))]
	if !ok {
		return nil, fmt.Errorf("only pdf, doc, docx, jpg, jpeg and png files are allowed: %w", domain.ErrValidation)
	}
	if in.Size > s.maxBytes {
		return nil, fmt.Errorf("file exceeds %d bytes: %w", s.maxBytes, domain.ErrValidation)
	}

	docID := id.New()
	safeName := sanitizeFilename(in.Filename)
	key := fmt.Sprintf("documents/%s/%s/%s", in.OwnerID, docID, safeName)
	body := &countingReader{r: io.LimitReader(in.Reader, s.maxBytes+1)}
	if _, err := s.objects.Upload(ctx, key, body, contentType); err != nil {
		return nil, err
	}
	if body.n > s.maxBytes {
		s.discardObject(ctx, key)
		return nil, fmt.Errorf("file exceeds %d bytes: %w", s.maxBytes, domain.ErrValidation)
	}

	now := s.now().UTC()
	d := &domain.Document{
		DocumentID:   docID,
		OwnerID:      in.OwnerID,
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
		DocumentType: in.DocumentType,
		FileRef:      key,
		FileName:     safeName,
		ContentType:  contentType,
		Size:         body.n,
		CreatedAt:    now,
		UpdatedAt:    now,
		SharedWith:   []domain.ShareGrant{},
	}
	if err := s.docs.Create(ctx, d); err != nil {
		s.discardObject(ctx, key)
		return nil, err
	}
	return d, nil
}

func (s *service) Get(ctx context.Context, callerID, docID string) (*Detail, error) {
	d, err := s.docs.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	perm := access.Resolve(callerID, d)
	if !access.CanRead(perm) {
		return nil, fmt.Errorf("no access to this document: %w", domain.ErrForbidden)
	}
	out := &Detail{Document: d, IsOwner: perm == domain.PermissionOwner, Permission: perm}
	if d.FileRef != "" {
		url, err := s.objects.PresignedURL(ctx, d.FileRef, s.urlTTL)
		if err != nil {
			slog.Warn("failed to presign document url", "document_id", docID, "err", err)
		} else {
			out.FileURL = url
		}
	}
	return out, nil
}

func (s *service) Update(ctx context.Context, callerID, docID string, patch domain.DocumentPatch) (*domain.Document, error) {
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		if t == "" {
			return nil, fmt.Errorf("title cannot be empty: %w", domain.ErrValidation)
		}
		patch.Title = &t
	}
	if patch.DocumentType != nil && !domain.ValidDocumentType(*patch.DocumentType) {
		return nil, fmt.Errorf("unknown document type %q: %w", *patch.DocumentType, domain.ErrValidation)
	}

	unlock := s.locks.Lock(docID)
	defer unlock()
	d, err := s.docs.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !access.CanMutateMetadata(access.Resolve(callerID, d)) {
		return nil, fmt.Errorf("not allowed to edit this document: %w", domain.ErrForbidden)
	}
	if patch.Empty() {
		return d, nil
	}
	return s.docs.Update(ctx, docID, patch, d.Version)
}

func (s *service) Delete(ctx context.Context, callerID, docID string) error {
	unlock := s.locks.Lock(docID)
	defer unlock()
	d, err := s.docs.Get(ctx, docID)
	if err != nil {
		return err
	}
	if !access.CanDelete(access.Resolve(callerID, d)) {
		return fmt.Errorf("only the owner can delete this document: %w", domain.ErrForbidden)
	}
	if err := s.docs.Delete(ctx, docID); err != nil {
		return err
	}
	if d.FileRef != "" {
		s.discardObject(ctx, d.FileRef)
	}
	return nil
}

func (s *service) ListOwned(ctx context.Context, callerID string) ([]domain.Document, error) {
	return s.docs.ListByOwner(ctx, callerID)
}

func (s *service) ListShared(ctx context.Context, callerID string) ([]domain.Document, error) {
	return s.docs.ListSharedWith(ctx, callerID)
}

// Share grants the user registered under req.Email access to the document.
// Sharing again with the same user only changes the level.
func (s *service) Share(ctx context.Context, callerID, docID string, req domain.ShareRequest) ([]domain.ShareGrant, error) {
	level, err := domain.ParseAccessLevel(req.AccessLevel)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(docID)
	defer unlock()
	d, err := s.docs.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !access.CanShare(access.Resolve(callerID, d)) {
		return nil, fmt.Errorf("only the owner can share this document: %w", domain.ErrForbidden)
	}
	grantee, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("no user registered with that email: %w", domain.ErrNotFound)
		}
		return nil, err
	}
	g, err := access.Share(d, callerID, domain.ShareGrant{
		UserID:      grantee.UserID,
		Email:       grantee.Email,
		Name:        grantee.Name,
		AccessLevel: level,
	}, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.docs.AppendOrUpdateGrant(ctx, &g); err != nil {
		return nil, err
	}
	return d.SharedWith, nil
}

func (s *service) UpdateAccess(ctx context.Context, callerID, docID, granteeID string, level domain.AccessLevel) ([]domain.ShareGrant, error) {
	unlock := s.locks.Lock(docID)
	defer unlock()
	d, err := s.docs.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	g, err := access.UpdateGrantLevel(d, callerID, granteeID, level)
	if err != nil {
		return nil, err
	}
	if err := s.docs.AppendOrUpdateGrant(ctx, &g); err != nil {
		return nil, err
	}
	return d.SharedWith, nil
}

// Revoke is idempotent: revoking a user without a grant returns the
// unchanged grant list.
func (s *service) Revoke(ctx context.Context, callerID, docID, granteeID string) ([]domain.ShareGrant, error) {
	unlock := s.locks.Lock(docID)
	defer unlock()
	d, err := s.docs.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	removed, err := access.Revoke(d, callerID, granteeID)
	if err != nil {
		return nil, err
	}
	if removed {
		if err := s.docs.RemoveGrant(ctx, docID, granteeID); err != nil {
			return nil, err
		}
	}
	return d.SharedWith, nil
}

func (s *service) discardObject(ctx context.Context, key string) {
	if err := s.objects.Delete(ctx, key); err != nil {
		slog.Warn("failed to delete stored object", "key", key, "err", err)
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// sanitizeFilename strips directory components and keeps only safe characters
// (alphanumeric, dot, dash, underscore) to prevent path traversal in object keys.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if result := b.String(); result != "" && result != "." {
		return result
	}
	return "_"
}
