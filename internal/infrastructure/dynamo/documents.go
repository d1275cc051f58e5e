package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-docshare/internal/domain"
)

// batchGetLimit is the DynamoDB cap on keys per BatchGetItem request.
const batchGetLimit = 100

// DocumentRepo stores document metadata and share grants in two tables.
//
//	documents:       PK document_id, GSI owner_id-index (owner_id, created_at)
//	document_grants: PK document_id, SK user_id, GSI user_id-index
//
// A grant row per (document, user) pair makes duplicate grantees impossible.
type DocumentRepo struct {
	client      API
	docsTable   string
	grantsTable string
}

func NewDocumentRepo(client API, docsTable, grantsTable string) *DocumentRepo {
	return &DocumentRepo{client: client, docsTable: docsTable, grantsTable: grantsTable}
}

func (r *DocumentRepo) Create(ctx context.Context, d *domain.Document) error {
	item, err := attributevalue.MarshalMap(d)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.docsTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(document_id)"),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("document exists: %w", domain.ErrConflict)
	}
	return err
}

// Get returns the document with its grants attached.
func (r *DocumentRepo) Get(ctx context.Context, docID string) (*domain.Document, error) {
	d, err := r.getItem(ctx, docID)
	if err != nil {
		return nil, err
	}
	if d.SharedWith, err = r.ListGrants(ctx, docID); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *DocumentRepo) getItem(ctx context.Context, docID string) (*domain.Document, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.docsTable),
		Key:            strKey(fieldDocumentID, docID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("document not found: %w", domain.ErrNotFound)
	}
	var d domain.Document
	if err := attributevalue.UnmarshalMap(out.Item, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Update applies patch only if the stored version still equals expectedVersion.
// A stale version yields ErrConflict.
func (r *DocumentRepo) Update(ctx context.Context, docID string, patch domain.DocumentPatch, expectedVersion int64) (*domain.Document, error) {
	updates := patchUpdates(patch)
	updates[fieldUpdatedAt] = time.Now().UTC()
	updates[fieldVersion] = expectedVersion + 1
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return nil, err
	}
	ue.Names["#cv"] = fieldVersion
	ue.Values[":cv"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expectedVersion)}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.docsTable),
		Key:                       strKey(fieldDocumentID, docID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(document_id) AND #cv = :cv"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		if _, gErr := r.getItem(ctx, docID); gErr != nil {
			return nil, gErr
		}
		return nil, fmt.Errorf("document was modified concurrently: %w", domain.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	var d domain.Document
	if err := attributevalue.UnmarshalMap(out.Attributes, &d); err != nil {
		return nil, err
	}
	if d.SharedWith, err = r.ListGrants(ctx, docID); err != nil {
		return nil, err
	}
	return &d, nil
}

// patchUpdates maps the set fields of a patch onto attribute names.
func patchUpdates(p domain.DocumentPatch) map[string]interface{} {
	updates := map[string]interface{}{}
	if p.Title != nil {
		updates[fieldTitle] = *p.Title
	}
	if p.Description != nil {
		updates[fieldDescription] = *p.Description
	}
	if p.DocumentType != nil {
		updates[fieldDocumentType] = *p.DocumentType
	}
	return updates
}

// Delete removes the document row and every grant on it.
func (r *DocumentRepo) Delete(ctx context.Context, docID string) error {
	grants, err := r.ListGrants(ctx, docID)
	if err != nil {
		return err
	}
	for _, g := range grants {
		if err := r.RemoveGrant(ctx, docID, g.UserID); err != nil {
			return fmt.Errorf("remove grant %s: %w", g.UserID, err)
		}
	}
	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.docsTable),
		Key:       strKey(fieldDocumentID, docID),
	})
	return err
}

// ListByOwner returns the owner's documents, newest first.
func (r *DocumentRepo) ListByOwner(ctx context.Context, userID string) ([]domain.Document, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.docsTable),
		IndexName:              aws.String(indexOwner),
		KeyConditionExpression: aws.String("owner_id = :o"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":o": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
	})
	docs := []domain.Document{}
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var batch []domain.Document
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		docs = append(docs, batch...)
	}
	return docs, r.attachGrants(ctx, docs)
}

// ListSharedWith returns documents on which userID holds a grant, newest first.
func (r *DocumentRepo) ListSharedWith(ctx context.Context, userID string) ([]domain.Document, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.grantsTable),
		IndexName:              aws.String(indexGrantsUser),
		KeyConditionExpression: aws.String("user_id = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: userID},
		},
	})
	var ids []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var grants []domain.ShareGrant
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &grants); err != nil {
			return nil, err
		}
		for _, g := range grants {
			ids = append(ids, g.DocumentID)
		}
	}

	docs := []domain.Document{}
	for _, part := range chunk(ids, batchGetLimit) {
		batch, err := r.batchGet(ctx, part)
		if err != nil {
			return nil, err
		}
		docs = append(docs, batch...)
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })
	return docs, r.attachGrants(ctx, docs)
}

func (r *DocumentRepo) batchGet(ctx context.Context, ids []string) ([]domain.Document, error) {
	keys := make([]map[string]types.AttributeValue, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, strKey(fieldDocumentID, id))
	}
	req := map[string]types.KeysAndAttributes{r.docsTable: {Keys: keys}}

	var docs []domain.Document
	for len(req) > 0 {
		out, err := r.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: req})
		if err != nil {
			return nil, err
		}
		var batch []domain.Document
		if err := attributevalue.UnmarshalListOfMaps(out.Responses[r.docsTable], &batch); err != nil {
			return nil, err
		}
		docs = append(docs, batch...)
		req = out.UnprocessedKeys
	}
	return docs, nil
}

func (r *DocumentRepo) attachGrants(ctx context.Context, docs []domain.Document) error {
	for i := range docs {
		grants, err := r.ListGrants(ctx, docs[i].DocumentID)
		if err != nil {
			return err
		}
		docs[i].SharedWith = grants
	}
	return nil
}

// AppendOrUpdateGrant upserts the (document, user) grant. shared_at is kept
// from the first share; g.SharedAt is overwritten with the stored value.
func (r *DocumentRepo) AppendOrUpdateGrant(ctx context.Context, g *domain.ShareGrant) error {
	sharedAt, err := attributevalue.Marshal(g.SharedAt)
	if err != nil {
		return fmt.Errorf("marshal grant: %w", err)
	}
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.grantsTable),
		Key:              compositeKey(fieldDocumentID, g.DocumentID, fieldUserID, g.UserID),
		UpdateExpression: aws.String("SET #lvl = :lvl, #em = :em, #nm = :nm, #at = if_not_exists(#at, :at)"),
		ExpressionAttributeNames: map[string]string{
			"#lvl": fieldAccessLevel,
			"#em":  fieldEmail,
			"#nm":  fieldName,
			"#at":  fieldSharedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":lvl": &types.AttributeValueMemberS{Value: string(g.AccessLevel)},
			":em":  &types.AttributeValueMemberS{Value: g.Email},
			":nm":  &types.AttributeValueMemberS{Value: g.Name},
			":at":  sharedAt,
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		return err
	}
	var stored domain.ShareGrant
	if err := attributevalue.UnmarshalMap(out.Attributes, &stored); err != nil {
		return err
	}
	g.SharedAt = stored.SharedAt
	return nil
}

func (r *DocumentRepo) RemoveGrant(ctx context.Context, docID, userID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.grantsTable),
		Key:       compositeKey(fieldDocumentID, docID, fieldUserID, userID),
	})
	return err
}

// ListGrants returns docID's grants ordered by share time.
func (r *DocumentRepo) ListGrants(ctx context.Context, docID string) ([]domain.ShareGrant, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.grantsTable),
		KeyConditionExpression: aws.String("document_id = :d"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d": &types.AttributeValueMemberS{Value: docID},
		},
		ConsistentRead: aws.Bool(true),
	})
	grants := []domain.ShareGrant{}
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var batch []domain.ShareGrant
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		grants = append(grants, batch...)
	}
	sort.SliceStable(grants, func(i, j int) bool { return grants[i].SharedAt.Before(grants[j].SharedAt) })
	return grants, nil
}
