package domain

import (
	"fmt"
	"time"
)

// AccessLevel is the delegated permission stored on a grant.
type AccessLevel string

const (
	AccessView AccessLevel = "view"
	AccessEdit AccessLevel = "edit"
)

// ParseAccessLevel accepts only the literal wire values "view" and "edit".
func ParseAccessLevel(s string) (AccessLevel, error) {
	switch AccessLevel(s) {
	case AccessView, AccessEdit:
		return AccessLevel(s), nil
	}
	return "", fmt.Errorf("access level must be view or edit: %w", ErrValidation)
}

// Permission is the effective capability a user holds over a document.
type Permission string

const (
	PermissionNone  Permission = "none"
	PermissionView  Permission = "view"
	PermissionEdit  Permission = "edit"
	PermissionOwner Permission = "owner"
)

// Document types offered by the upload form.
const (
	DocTypeAadhaar        = "Aadhaar"
	DocTypePAN            = "PAN Card"
	DocTypePassport       = "Passport"
	DocTypeDrivingLicense = "Driving License"
	DocTypeVoterID        = "Voter ID"
	DocTypeOther          = "Other"
)

var documentTypes = map[string]bool{
	DocTypeAadhaar:        true,
	DocTypePAN:            true,
	DocTypePassport:       true,
	DocTypeDrivingLicense: true,
	DocTypeVoterID:        true,
	DocTypeOther:          true,
}

// ValidDocumentType reports whether t is one of the accepted document types.
func ValidDocumentType(t string) bool { return documentTypes[t] }

// ShareGrant associates one non-owner user with one access level on one document.
// PK: document_id, SK: user_id.
type ShareGrant struct {
	DocumentID  string      `json:"-" dynamodbav:"document_id"`
	UserID      string      `json:"userId" dynamodbav:"user_id"`
	Email       string      `json:"email,omitempty" dynamodbav:"email"`
	Name        string      `json:"name,omitempty" dynamodbav:"name"`
	AccessLevel AccessLevel `json:"accessLevel" dynamodbav:"access_level"`
	SharedAt    time.Time   `json:"sharedAt" dynamodbav:"shared_at"`
}

type Document struct {
	DocumentID   string       `json:"_id" dynamodbav:"document_id"`
	OwnerID      string       `json:"owner" dynamodbav:"owner_id"`
	Title        string       `json:"title" dynamodbav:"title"`
	Description  string       `json:"description" dynamodbav:"description"`
	DocumentType string       `json:"documentType" dynamodbav:"document_type"`
	FileRef      string       `json:"-" dynamodbav:"file_ref"`
	FileName     string       `json:"fileName" dynamodbav:"file_name"`
	ContentType  string       `json:"contentType" dynamodbav:"content_type"`
	Size         int64        `json:"size" dynamodbav:"size"`
	Version      int64        `json:"-" dynamodbav:"version"`
	CreatedAt    time.Time    `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt    time.Time    `json:"updatedAt" dynamodbav:"updated_at"`
	SharedWith   []ShareGrant `json:"sharedWith" dynamodbav:"-"`
}

// DocumentPatch carries the metadata fields an owner or editor may change.
type DocumentPatch struct {
	Title        *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description  *string `json:"description" validate:"omitempty,max=2000"`
	DocumentType *string `json:"documentType"`
}

// Empty reports whether the patch changes nothing.
func (p DocumentPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.DocumentType == nil
}

type ShareRequest struct {
	Email       string `json:"email" validate:"required,email"`
	AccessLevel string `json:"accessLevel" validate:"required,oneof=view edit"`
}

type UpdateAccessRequest struct {
	AccessLevel string `json:"accessLevel" validate:"required,oneof=view edit"`
}
