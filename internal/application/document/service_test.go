package document

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-docshare/internal/domain"
	"github.com/go-docshare/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc     Service
	users   *memory.UserStore
	docs    *memory.DocumentStore
	objects *memory.ObjectStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:   memory.NewUserStore(),
		docs:    memory.NewDocumentStore(),
		objects: memory.NewObjectStore(),
	}
	ctx := context.Background()
	for _, u := range []domain.User{
		{UserID: "owner", Email: "owner@x.com", Name: "Owner", EmailVerified: true},
		{UserID: "ed", Email: "ed@x.com", Name: "Editor", EmailVerified: true},
		{UserID: "vi", Email: "vi@x.com", Name: "Viewer", EmailVerified: true},
		{UserID: "stranger", Email: "s@x.com", Name: "Stranger", EmailVerified: true},
	} {
		u := u
		require.NoError(t, f.users.Create(ctx, &u))
	}
	f.svc = NewService(ServiceDeps{
		DocumentRepo:   f.docs,
		UserRepo:       f.users,
		Objects:        f.objects,
		MaxUploadBytes: 1024,
		FileURLTTL:     time.Minute,
	})
	return f
}

func (f *fixture) upload(t *testing.T) *domain.Document {
	t.Helper()
	d, err := f.svc.Upload(context.Background(), UploadInput{
		Reader:       strings.NewReader("%PDF-1.4 test"),
		Filename:     "scan.pdf",
		Size:         13,
		Title:        "Passport",
		DocumentType: domain.DocTypePassport,
		OwnerID:      "owner",
	})
	require.NoError(t, err)
	return d
}

func (f *fixture) shareAll(t *testing.T, docID string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.Share(ctx, "owner", docID, domain.ShareRequest{Email: "ed@x.com", AccessLevel: "edit"})
	require.NoError(t, err)
	_, err = f.svc.Share(ctx, "owner", docID, domain.ShareRequest{Email: "vi@x.com", AccessLevel: "view"})
	require.NoError(t, err)
}

// --- Upload ---

func TestUpload_StoresObjectAndMetadata(t *testing.T) {
	f := newFixture(t)
	d := f.upload(t)

	assert.Equal(t, "owner", d.OwnerID)
	assert.Equal(t, "application/pdf", d.ContentType)
	assert.Equal(t, int64(13), d.Size)
	assert.True(t, f.objects.Has(d.FileRef))
	assert.Empty(t, d.SharedWith)
}

func TestUpload_Rejections(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name string
		in   UploadInput
	}{
		{"extension", UploadInput{Filename: "run.exe", Title: "x", DocumentType: domain.DocTypeOther}},
		{"doc type", UploadInput{Filename: "a.pdf", Title: "x", DocumentType: "Library Card"}},
		{"blank title", UploadInput{Filename: "a.pdf", Title: "  ", DocumentType: domain.DocTypeOther}},
		{"declared size", UploadInput{Filename: "a.pdf", Title: "x", DocumentType: domain.DocTypeOther, Size: 4096}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.in.Reader = strings.NewReader("data")
			tc.in.OwnerID = "owner"
			_, err := f.svc.Upload(context.Background(), tc.in)
			assert.True(t, errors.Is(err, domain.ErrValidation))
		})
	}
}

func TestUpload_ActualSizeOverLimitIsDiscarded(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Upload(context.Background(), UploadInput{
		Reader:       strings.NewReader(strings.Repeat("a", 2048)),
		Filename:     "big.png",
		Size:         10,
		Title:        "big",
		DocumentType: domain.DocTypeOther,
		OwnerID:      "owner",
	})
	assert.True(t, errors.Is(err, domain.ErrValidation))
	owned, _ := f.svc.ListOwned(context.Background(), "owner")
	assert.Empty(t, owned)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "passwd", sanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "my_scan.pdf", sanitizeFilename(`C:\Users\me\my scan.pdf`))
	assert.Equal(t, "_", sanitizeFilename("."))
}

// --- Get ---

func TestGet_PermissionView(t *testing.T) {
	f := newFixture(t)
	d := f.upload(t)
	f.shareAll(t, d.DocumentID)
	ctx := context.Background()

	own, err := f.svc.Get(ctx, "owner", d.DocumentID)
	require.NoError(t, err)
	assert.True(t, own.IsOwner)
	assert.Equal(t, domain.PermissionOwner, own.Permission)
	assert.NotEmpty(t, own.FileURL)

	ed, err := f.svc.Get(ctx, "ed", d.DocumentID)
	require.NoError(t, err)
	assert.False(t, ed.IsOwner)
	assert.Equal(t, domain.PermissionEdit, ed.Permission)

	_, err = f.svc.Get(ctx, "stranger", d.DocumentID)
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	_, err = f.svc.Get(ctx, "owner", "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

// --- Update / Delete ---

func TestEditorCanUpdateButNotDelete(t *testing.T) {
	f := newFixture(t)
	d := f.upload(t)
	f.shareAll(t, d.DocumentID)
	ctx := context.Background()

	title := "Renamed"
	updated, err := f.svc.Update(ctx, "ed", d.DocumentID, domain.DocumentPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Len(t, updated.SharedWith, 2)

	err = f.svc.Delete(ctx, "ed", d.DocumentID)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestViewerCannotUpdate(t *testing.T) {
	f := newFixture(t)
	d := f.upload(t)
	f.shareAll(t, d.DocumentID)

	title := "nope"
	_, err := f.svc.Update(context.Background(), "vi", d.DocumentID, domain.DocumentPatch{Title: &title})
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestUpdate_RejectsBadType(t *testing.T) {
	f := newFixture(t)
	d := f.upload(t)
	bad := "Spaceship"
	_, err := f.svc.Update(context.Background(), "owner", d.DocumentID, domain.DocumentPatch{DocumentType: &bad})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestOwnerDeleteRemovesObjectAndGrants(t *testing.T) {
	f := newFixture(t)
	d := f.upload(t)
	f.shareAll(t, d.DocumentID)
	ctx := context.Background()

	require.NoError(t, f.svc.Delete(ctx, "owner", d.DocumentID))
	assert.False(t, f.objects.Has(d.FileRef))

	shared, err := f.svc.ListShared(ctx, "vi")
	require.NoError(t, err)
	assert.Empty(t, shared)
}

// --- Share / UpdateAccess / Revoke ---

func TestShareTwice_NoDuplicateAndLastLevelWins(t *testing.T) {
	f := newFixture(t)
	d := f.upload(t)
	ctx := context.Background()

	_, err := f.svc.Share(ctx, "owner", d.DocumentID, domain.ShareRequest{Email: "vi@x.com", AccessLevel: "view"})
	require.NoError(t, err)
	grants, err := f.svc.Share(ctx, "owner", d.DocumentID, domain.ShareRequest{Email: "VI@x.com", AccessLevel: "edit"})
	require.NoError(t, err)

	require.Len(t, grants, 1)
	assert.Equal(t, domain.AccessEdit, grants[0].AccessLevel)
	assert.Equal(t, "Viewer", grants[0].Name)
}

func TestShare_Errors(t *testing.T) {
	f := newFixture(t)
	d := f.upload(t)
	f.shareAll(t, d.DocumentID)
	ctx := context.Background()

	_, err := f.svc.Share(ctx, "owner", d.DocumentID, domain.ShareRequest{Email: "owner@x.com", AccessLevel: "view"})
	assert.True(t, errors.Is(err, domain.ErrConflict), "self share")

	_, err = f.svc.Share(ctx, "ed", d.DocumentID, domain.ShareRequest{Email: "s@x.com", AccessLevel: "view"})
	assert.True(t, errors.Is(err, domain.ErrForbidden), "editor cannot share")

	_, err = f.svc.Share(ctx, "owner", d.DocumentID, domain.ShareRequest{Email: "ghost@x.com", AccessLevel: "view"})
	assert.True(t, errors.Is(err, domain.ErrNotFound), "unknown grantee")

	_, err = f.svc.Share(ctx, "owner", d.DocumentID, domain.ShareRequest{Email: "s@x.com", AccessLevel: "admin"})
	assert.True(t, errors.Is(err, domain.ErrValidation), "bad level")
}

func TestConcurrentShares_NoDuplicates(t *testing.T) {
	f := newFixture(t)
	d := f.upload(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		level := "view"
		if i%2 == 0 {
			level = "edit"
		}
		wg.Add(1)
		go func(level string) {
			defer wg.Done()
			_, err := f.svc.Share(ctx, "owner", d.DocumentID, domain.ShareRequest{Email: "vi@x.com", AccessLevel: level})
			assert.NoError(t, err)
		}(level)
	}
	wg.Wait()

	got, err := f.svc.Get(ctx, "owner", d.DocumentID)
	require.NoError(t, err)
	assert.Len(t, got.SharedWith, 1)
}

func TestUpdateAccess(t *testing.T) {
	f := newFixture(t)
	d := f.upload(t)
	f.shareAll(t, d.DocumentID)
	ctx := context.Background()

	grants, err := f.svc.UpdateAccess(ctx, "owner", d.DocumentID, "vi", domain.AccessEdit)
	require.NoError(t, err)
	for _, g := range grants {
		if g.UserID == "vi" {
			assert.Equal(t, domain.AccessEdit, g.AccessLevel)
		}
	}

	_, err = f.svc.UpdateAccess(ctx, "owner", d.DocumentID, "stranger", domain.AccessView)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = f.svc.UpdateAccess(ctx, "ed", d.DocumentID, "vi", domain.AccessView)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestRevoke(t *testing.T) {
	f := newFixture(t)
	d := f.upload(t)
	f.shareAll(t, d.DocumentID)
	ctx := context.Background()

	grants, err := f.svc.Revoke(ctx, "owner", d.DocumentID, "vi")
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, "ed", grants[0].UserID)

	_, err = f.svc.Get(ctx, "vi", d.DocumentID)
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	again, err := f.svc.Revoke(ctx, "owner", d.DocumentID, "vi")
	require.NoError(t, err, "revoking a missing grant is a no-op")
	assert.Len(t, again, 1)

	_, err = f.svc.Revoke(ctx, "ed", d.DocumentID, "ed")
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestListShared(t *testing.T) {
	f := newFixture(t)
	d := f.upload(t)
	f.shareAll(t, d.DocumentID)

	shared, err := f.svc.ListShared(context.Background(), "ed")
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, d.DocumentID, shared[0].DocumentID)

	owned, err := f.svc.ListOwned(context.Background(), "ed")
	require.NoError(t, err)
	assert.Empty(t, owned)
}
