package client

import (
	"context"

	"github.com/go-docshare/internal/domain"
)

// UpdateProfile renames the current user and merges the result into the
// cached user.
func (s *Session) UpdateProfile(ctx context.Context, name string) (*domain.User, error) {
	var u *domain.User
	err := s.authed(func(token string) error {
		var err error
		u, err = s.api.UpdateProfile(ctx, token, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.UpdateUser(*u)
	return u, nil
}

func (s *Session) ChangePassword(ctx context.Context, current, next string) error {
	return s.authed(func(token string) error {
		return s.api.ChangePassword(ctx, token, current, next)
	})
}

func (s *Session) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	var docs []domain.Document
	err := s.authed(func(token string) error {
		var err error
		docs, err = s.api.ListDocuments(ctx, token)
		return err
	})
	return docs, err
}

func (s *Session) ListShared(ctx context.Context) ([]domain.Document, error) {
	var docs []domain.Document
	err := s.authed(func(token string) error {
		var err error
		docs, err = s.api.ListShared(ctx, token)
		return err
	})
	return docs, err
}

func (s *Session) GetDocument(ctx context.Context, docID string) (*DocumentDetail, error) {
	var d *DocumentDetail
	err := s.authed(func(token string) error {
		var err error
		d, err = s.api.GetDocument(ctx, token, docID)
		return err
	})
	return d, err
}

func (s *Session) Upload(ctx context.Context, in UploadRequest) (*domain.Document, error) {
	var d *domain.Document
	err := s.authed(func(token string) error {
		var err error
		d, err = s.api.Upload(ctx, token, in)
		return err
	})
	return d, err
}

func (s *Session) UpdateDocument(ctx context.Context, docID string, patch domain.DocumentPatch) (*domain.Document, error) {
	var d *domain.Document
	err := s.authed(func(token string) error {
		var err error
		d, err = s.api.UpdateDocument(ctx, token, docID, patch)
		return err
	})
	return d, err
}

func (s *Session) DeleteDocument(ctx context.Context, docID string) error {
	return s.authed(func(token string) error {
		return s.api.DeleteDocument(ctx, token, docID)
	})
}

// Share grants email access to docID and returns the updated grant list.
func (s *Session) Share(ctx context.Context, docID, email string, level domain.AccessLevel) ([]domain.ShareGrant, error) {
	var grants []domain.ShareGrant
	err := s.authed(func(token string) error {
		var err error
		grants, err = s.api.Share(ctx, token, docID, email, level)
		return err
	})
	return grants, err
}

func (s *Session) UpdateAccess(ctx context.Context, docID, userID string, level domain.AccessLevel) ([]domain.ShareGrant, error) {
	var grants []domain.ShareGrant
	err := s.authed(func(token string) error {
		var err error
		grants, err = s.api.UpdateAccess(ctx, token, docID, userID, level)
		return err
	})
	return grants, err
}

func (s *Session) Revoke(ctx context.Context, docID, userID string) ([]domain.ShareGrant, error) {
	var grants []domain.ShareGrant
	err := s.authed(func(token string) error {
		var err error
		grants, err = s.api.Revoke(ctx, token, docID, userID)
		return err
	})
	return grants, err
}
