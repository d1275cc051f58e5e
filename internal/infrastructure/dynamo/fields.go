package dynamo

// DynamoDB attribute names used in key and update expressions across repos.
const (
	fieldUserID        = "user_id"
	fieldEmail         = "email"
	fieldName          = "name"
	fieldPasswordHash  = "password_hash"
	fieldEmailVerified = "email_verified"
	fieldUpdatedAt     = "updated_at"
	fieldCreatedAt     = "created_at"

	fieldDocumentID   = "document_id"
	fieldOwnerID      = "owner_id"
	fieldTitle        = "title"
	fieldDescription  = "description"
	fieldDocumentType = "document_type"
	fieldVersion      = "version"

	fieldAccessLevel = "access_level"
	fieldSharedAt    = "shared_at"

	fieldTTL = "ttl"
)

// Index names.
const (
	indexEmail      = "email-index"
	indexOwner      = "owner_id-index"
	indexGrantsUser = "user_id-index"
)
