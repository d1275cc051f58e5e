package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-docshare/internal/domain"
)

// ChallengeRepo stores the active OTP challenge per email.
// PK: email. ttl is the table's TTL attribute, so DynamoDB reaps
// stale rows eventually; reads still check expiry themselves.
type ChallengeRepo struct {
	client    API
	tableName string
}

func NewChallengeRepo(client API, tableName string) *ChallengeRepo {
	return &ChallengeRepo{client: client, tableName: tableName}
}

// Put replaces any existing challenge for the email.
func (r *ChallengeRepo) Put(ctx context.Context, c *domain.OtpChallenge) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *ChallengeRepo) Get(ctx context.Context, email string) (*domain.OtpChallenge, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldEmail, email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("challenge not found: %w", domain.ErrNotFound)
	}
	var c domain.OtpChallenge
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ChallengeRepo) Delete(ctx context.Context, email string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldEmail, email),
	})
	return err
}
