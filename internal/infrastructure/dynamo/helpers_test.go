package dynamo

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-docshare/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpdateExpr_SingleField(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldName: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "SET #f0 = :v0", ue.Expr)
	assert.Equal(t, map[string]string{"#f0": "name"}, ue.Names)
	_, ok := ue.Values[":v0"]
	assert.True(t, ok)
}

func TestBuildUpdateExpr_MultipleFields_Deterministic(t *testing.T) {
	updates := map[string]interface{}{
		fieldTitle:        "Passport scan",
		fieldDescription:  "front page",
		fieldDocumentType: domain.DocTypePassport,
	}
	ue1, err := buildUpdateExpr(updates)
	require.NoError(t, err)
	ue2, err := buildUpdateExpr(updates)
	require.NoError(t, err)

	assert.Equal(t, ue1.Expr, ue2.Expr)

	// description < document_type < title
	assert.Equal(t, "description", ue1.Names["#f0"])
	assert.Equal(t, "document_type", ue1.Names["#f1"])
	assert.Equal(t, "title", ue1.Names["#f2"])
	assert.Equal(t, "SET #f0 = :v0, #f1 = :v1, #f2 = :v2", ue1.Expr)
}

func TestBuildUpdateExpr_ValuesMarshalledCorrectly(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldEmailVerified: true})
	require.NoError(t, err)
	av, ok := ue.Values[":v0"]
	require.True(t, ok)
	boolVal, isBool := av.(*types.AttributeValueMemberBOOL)
	require.True(t, isBool)
	assert.True(t, boolVal.Value)
}

func TestBuildUpdateExpr_EmptyMap_ReturnsError(t *testing.T) {
	_, err := buildUpdateExpr(map[string]interface{}{})
	assert.ErrorContains(t, err, "no fields to update")
}

func TestPatchUpdates(t *testing.T) {
	title := "New title"
	docType := domain.DocTypePAN
	updates := patchUpdates(domain.DocumentPatch{Title: &title, DocumentType: &docType})

	assert.Equal(t, "New title", updates[fieldTitle])
	assert.Equal(t, "PAN Card", updates[fieldDocumentType])
	_, hasDesc := updates[fieldDescription]
	assert.False(t, hasDesc)
}

func TestChunk(t *testing.T) {
	assert.Nil(t, chunk(nil, 3))
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, chunk([]string{"a", "b", "c"}, 2))
	assert.Equal(t, [][]string{{"a", "b"}}, chunk([]string{"a", "b"}, 2))
}
