package session

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of *dynamodb.Client the persister calls
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Single table: PK SESSION#<key>, SK BLOB
type sessionItem struct {
	PK        string    `dynamodbav:"PK"`
	SK        string    `dynamodbav:"SK"`
	Blob      string    `dynamodbav:"Blob"`
	UpdatedAt time.Time `dynamodbav:"UpdatedAt"`
}

const sessionSortKey = "BLOB"

type DynamoPersister struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

var _ Persister = (*DynamoPersister)(nil)

func NewDynamoPersister(client DynamoAPI, tableName string) *DynamoPersister {
	return &DynamoPersister{client: client, tableName: tableName, now: time.Now}
}

func sessionPK(key string) string {
	return fmt.Sprintf("SESSION#%s", key)
}

func (d *DynamoPersister) Load(ctx context.Context, key string) ([]byte, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(key)},
			"SK": &types.AttributeValueMemberS{Value: sessionSortKey},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get session from dynamodb: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var item sessionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session item: %w", err)
	}
	return []byte(item.Blob), nil
}

func (d *DynamoPersister) Save(ctx context.Context, key string, blob []byte) error {
	av, err := attributevalue.MarshalMap(sessionItem{
		PK:        sessionPK(key),
		SK:        sessionSortKey,
		Blob:      string(blob),
		UpdatedAt: d.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal session for dynamodb: %w", err)
	}

	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("failed to save session to dynamodb: %w", err)
	}
	return nil
}
