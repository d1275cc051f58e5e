package dynamo

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-docshare/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDynamo struct{ mock.Mock }

func (m *mockDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamo) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamo) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.DeleteItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamo) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.QueryOutput)
	return out, args.Error(1)
}

func (m *mockDynamo) BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.BatchGetItemOutput)
	return out, args.Error(1)
}

func item(t *testing.T, v interface{}) map[string]types.AttributeValue {
	t.Helper()
	m, err := attributevalue.MarshalMap(v)
	require.NoError(t, err)
	return m
}

func numberValue(av types.AttributeValue) string {
	n, ok := av.(*types.AttributeValueMemberN)
	if !ok {
		return ""
	}
	return n.Value
}

var noGrants = &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{}}

func TestDocumentRepo_UpdateConditionsOnVersion(t *testing.T) {
	db := &mockDynamo{}
	repo := NewDocumentRepo(db, "documents", "document_grants")
	title := "Renewed passport"
	stored := domain.Document{DocumentID: "d1", OwnerID: "u1", Title: title, Version: 4}

	db.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		if *in.ConditionExpression != "attribute_exists(document_id) AND #cv = :cv" {
			return false
		}
		if in.ExpressionAttributeNames["#cv"] != fieldVersion || numberValue(in.ExpressionAttributeValues[":cv"]) != "3" {
			return false
		}
		for k, name := range in.ExpressionAttributeNames {
			if name == fieldVersion && k != "#cv" {
				return numberValue(in.ExpressionAttributeValues[":v"+strings.TrimPrefix(k, "#f")]) == "4"
			}
		}
		return false
	})).Return(&dynamodb.UpdateItemOutput{Attributes: item(t, stored)}, nil)
	db.On("Query", mock.Anything, mock.Anything).Return(noGrants, nil)

	d, err := repo.Update(context.Background(), "d1", domain.DocumentPatch{Title: &title}, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), d.Version)
	assert.Equal(t, title, d.Title)
	db.AssertExpectations(t)
}

func TestDocumentRepo_UpdateStaleVersionIsConflict(t *testing.T) {
	db := &mockDynamo{}
	repo := NewDocumentRepo(db, "documents", "document_grants")
	title := "x"

	db.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})
	db.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{
		Item: item(t, domain.Document{DocumentID: "d1", Version: 5}),
	}, nil)

	_, err := repo.Update(context.Background(), "d1", domain.DocumentPatch{Title: &title}, 3)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestDocumentRepo_UpdateMissingDocumentIsNotFound(t *testing.T) {
	db := &mockDynamo{}
	repo := NewDocumentRepo(db, "documents", "document_grants")
	title := "x"

	db.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})
	db.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := repo.Update(context.Background(), "gone", domain.DocumentPatch{Title: &title}, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentRepo_GrantUpsertKeepsFirstSharedAt(t *testing.T) {
	db := &mockDynamo{}
	repo := NewDocumentRepo(db, "documents", "document_grants")
	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	now := first.Add(48 * time.Hour)

	db.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return *in.TableName == "document_grants" &&
			strings.Contains(*in.UpdateExpression, "#at = if_not_exists(#at, :at)") &&
			in.ExpressionAttributeNames["#at"] == fieldSharedAt
	})).Return(&dynamodb.UpdateItemOutput{Attributes: item(t, domain.ShareGrant{
		DocumentID: "d1", UserID: "u2", AccessLevel: domain.AccessEdit, SharedAt: first,
	})}, nil)

	g := &domain.ShareGrant{DocumentID: "d1", UserID: "u2", AccessLevel: domain.AccessEdit, SharedAt: now}
	require.NoError(t, repo.AppendOrUpdateGrant(context.Background(), g))
	assert.True(t, g.SharedAt.Equal(first), "got %s", g.SharedAt)
	db.AssertExpectations(t)
}

func TestDocumentRepo_BatchGetRetriesUnprocessedKeys(t *testing.T) {
	db := &mockDynamo{}
	repo := NewDocumentRepo(db, "documents", "document_grants")

	keysIn := func(n int) interface{} {
		return mock.MatchedBy(func(in *dynamodb.BatchGetItemInput) bool {
			return len(in.RequestItems["documents"].Keys) == n
		})
	}
	db.On("BatchGetItem", mock.Anything, keysIn(2)).Return(&dynamodb.BatchGetItemOutput{
		Responses: map[string][]map[string]types.AttributeValue{
			"documents": {item(t, domain.Document{DocumentID: "a"})},
		},
		UnprocessedKeys: map[string]types.KeysAndAttributes{
			"documents": {Keys: []map[string]types.AttributeValue{strKey(fieldDocumentID, "b")}},
		},
	}, nil).Once()
	db.On("BatchGetItem", mock.Anything, keysIn(1)).Return(&dynamodb.BatchGetItemOutput{
		Responses: map[string][]map[string]types.AttributeValue{
			"documents": {item(t, domain.Document{DocumentID: "b"})},
		},
	}, nil).Once()

	docs, err := repo.batchGet(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].DocumentID)
	assert.Equal(t, "b", docs[1].DocumentID)
	db.AssertNumberOfCalls(t, "BatchGetItem", 2)
}

func TestChallengeRepo_PutWritesTTLAndAttempts(t *testing.T) {
	db := &mockDynamo{}
	repo := NewChallengeRepo(db, "otp_challenges")
	exp := time.Date(2026, 3, 1, 12, 10, 0, 500_000_000, time.UTC)

	db.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		_, isString := in.Item["expires_at"].(*types.AttributeValueMemberS)
		return numberValue(in.Item[fieldTTL]) == "1772367001" &&
			numberValue(in.Item["attempts"]) == "2" &&
			isString
	})).Return(&dynamodb.PutItemOutput{}, nil)

	err := repo.Put(context.Background(), &domain.OtpChallenge{
		Email: "a@x.com", Attempts: 2, ExpiresAt: exp, TTL: domain.TTLSeconds(exp),
	})
	require.NoError(t, err)
	db.AssertExpectations(t)
}
