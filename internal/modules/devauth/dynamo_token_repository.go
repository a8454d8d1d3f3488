package devauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// TokenHashIndex is the GSI on TokenHash used to find a token without its owner
const TokenHashIndex = "TokenHashIndex"

// batchWriteLimit is the DynamoDB cap on requests per BatchWriteItem
const batchWriteLimit = 25

// Single table design: one item per refresh token under its owner.
type tokenItem struct {
	PK        string    `dynamodbav:"PK"` // USER#<UserID>
	SK        string    `dynamodbav:"SK"` // TOKEN#<TokenHash>
	UserID    string    `dynamodbav:"UserID"`
	TokenHash string    `dynamodbav:"TokenHash"`
	ExpiresAt time.Time `dynamodbav:"ExpiresAt"`
}

// DynamoTokenAPI is the subset of *dynamodb.Client the repository calls
type DynamoTokenAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

var (
	_ TokenRepository = (*DynamoTokenRepository)(nil)
	_ DynamoTokenAPI  = (*dynamodb.Client)(nil)
)

type DynamoTokenRepository struct {
	client    DynamoTokenAPI
	tableName string
}

func NewDynamoTokenRepository(client DynamoTokenAPI, tableName string) *DynamoTokenRepository {
	return &DynamoTokenRepository{client: client, tableName: tableName}
}

func userPK(id uuid.UUID) string {
	return "USER#" + id.String()
}

func (r *DynamoTokenRepository) Save(ctx context.Context, token *RefreshToken) error {
	item := tokenItem{
		PK:        userPK(token.UserID),
		SK:        "TOKEN#" + token.TokenHash,
		UserID:    token.UserID.String(),
		TokenHash: token.TokenHash,
		ExpiresAt: token.ExpiresAt.UTC(),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal refresh token: %w", err)
	}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	return nil
}

// Revoke finds the token through the hash index and deletes it. The delete
// is conditional so two concurrent rotations of one token cannot both win.
func (r *DynamoTokenRepository) Revoke(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(TokenHashIndex),
		KeyConditionExpression: aws.String("TokenHash = :hash"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":hash": &types.AttributeValueMemberS{Value: tokenHash},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query refresh token: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, ErrInvalidRefreshToken
	}

	var item tokenItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal refresh token: %w", err)
	}
	userID, err := uuid.Parse(item.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token owner: %w", err)
	}

	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: item.PK},
			"SK": &types.AttributeValueMemberS{Value: item.SK},
		},
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("failed to delete refresh token: %w", err)
	}

	return &RefreshToken{TokenHash: item.TokenHash, UserID: userID, ExpiresAt: item.ExpiresAt}, nil
}

func (r *DynamoTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk_prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":        &types.AttributeValueMemberS{Value: userPK(userID)},
			":sk_prefix": &types.AttributeValueMemberS{Value: "TOKEN#"},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to query tokens for user: %w", err)
	}

	for start := 0; start < len(out.Items); start += batchWriteLimit {
		end := min(start+batchWriteLimit, len(out.Items))

		reqs := make([]types.WriteRequest, 0, end-start)
		for _, it := range out.Items[start:end] {
			reqs = append(reqs, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{
					Key: map[string]types.AttributeValue{"PK": it["PK"], "SK": it["SK"]},
				},
			})
		}
		if _, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{r.tableName: reqs},
		}); err != nil {
			return fmt.Errorf("failed to delete tokens for user: %w", err)
		}
	}
	return nil
}
