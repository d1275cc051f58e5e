// Package access computes and mutates per-user capabilities on documents.
//
// The owner of a document always resolves to PermissionOwner regardless of
// the grant list; everyone else resolves to the level of their grant, or
// PermissionNone. Only the owner may share, re-level or revoke grants, and
// ownership is never transferred.
package access

import (
	"fmt"
	"time"

	"github.com/go-docshare/internal/domain"
)

// Resolve returns the effective permission userID holds over doc.
func Resolve(userID string, doc *domain.Document) domain.Permission {
	if doc == nil || userID == "" {
		return domain.PermissionNone
	}
	if doc.OwnerID == userID {
		return domain.PermissionOwner
	}
	if g := findGrant(doc, userID); g >= 0 {
		switch doc.SharedWith[g].AccessLevel {
		case domain.AccessEdit:
			return domain.PermissionEdit
		case domain.AccessView:
			return domain.PermissionView
		}
	}
	return domain.PermissionNone
}

func CanRead(p domain.Permission) bool { return p != domain.PermissionNone && p != "" }

func CanMutateMetadata(p domain.Permission) bool {
	return p == domain.PermissionOwner || p == domain.PermissionEdit
}

func CanDelete(p domain.Permission) bool { return p == domain.PermissionOwner }
func CanShare(p domain.Permission) bool  { return p == domain.PermissionOwner }
func CanRevoke(p domain.Permission) bool { return p == domain.PermissionOwner }

// Share inserts a grant for grantee, or overwrites the level of the existing
// one (keeping its original SharedAt). It returns the stored grant.
func Share(doc *domain.Document, callerID string, grantee domain.ShareGrant, now time.Time) (domain.ShareGrant, error) {
	if !CanShare(Resolve(callerID, doc)) {
		return domain.ShareGrant{}, fmt.Errorf("only the owner can share this document: %w", domain.ErrForbidden)
	}
	if grantee.UserID == doc.OwnerID {
		return domain.ShareGrant{}, fmt.Errorf("cannot share a document with its owner: %w", domain.ErrConflict)
	}
	if _, err := domain.ParseAccessLevel(string(grantee.AccessLevel)); err != nil {
		return domain.ShareGrant{}, err
	}
	grantee.DocumentID = doc.DocumentID
	if i := findGrant(doc, grantee.UserID); i >= 0 {
		existing := &doc.SharedWith[i]
		existing.AccessLevel = grantee.AccessLevel
		if grantee.Email != "" {
			existing.Email = grantee.Email
		}
		if grantee.Name != "" {
			existing.Name = grantee.Name
		}
		return *existing, nil
	}
	grantee.SharedAt = now
	doc.SharedWith = append(doc.SharedWith, grantee)
	return grantee, nil
}

// Revoke removes granteeID's grant. Revoking a grant that does not exist is
// a successful no-op; removed reports whether anything changed.
func Revoke(doc *domain.Document, callerID, granteeID string) (removed bool, err error) {
	if !CanRevoke(Resolve(callerID, doc)) {
		return false, fmt.Errorf("only the owner can revoke access: %w", domain.ErrForbidden)
	}
	i := findGrant(doc, granteeID)
	if i < 0 {
		return false, nil
	}
	doc.SharedWith = append(doc.SharedWith[:i], doc.SharedWith[i+1:]...)
	return true, nil
}

// UpdateGrantLevel changes the level of an existing grant.
func UpdateGrantLevel(doc *domain.Document, callerID, granteeID string, level domain.AccessLevel) (domain.ShareGrant, error) {
	if !CanShare(Resolve(callerID, doc)) {
		return domain.ShareGrant{}, fmt.Errorf("only the owner can change access: %w", domain.ErrForbidden)
	}
	if _, err := domain.ParseAccessLevel(string(level)); err != nil {
		return domain.ShareGrant{}, err
	}
	i := findGrant(doc, granteeID)
	if i < 0 {
		return domain.ShareGrant{}, fmt.Errorf("grant not found: %w", domain.ErrNotFound)
	}
	doc.SharedWith[i].AccessLevel = level
	return doc.SharedWith[i], nil
}

func findGrant(doc *domain.Document, userID string) int {
	for i := range doc.SharedWith {
		if doc.SharedWith[i].UserID == userID {
			return i
		}
	}
	return -1
}
