// Package dynamo provides a blobstore.Store backed by a DynamoDB table.
//
// Chunk blobs are small (a chunk compresses to a few KB), which puts them
// comfortably under the DynamoDB item limit, so a plain item store works
// without an S3 detour.
//
// Table schema:
//   - Partition key: name (string) - the blob name
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name rastergo-chunks \
//	  --attribute-definitions AttributeName=name,AttributeType=S \
//	  --key-schema AttributeName=name,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
package dynamo

import (
	"context"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/rastergo/blobstore"
)

// Client is the interface for the DynamoDB operations the store needs.
// It is satisfied by *dynamodb.Client and easy to fake in tests.
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Store implements blobstore.Store on a DynamoDB table.
type Store struct {
	client    Client
	tableName string
}

// NewStore creates a new DynamoDB blob store.
func NewStore(client Client, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// Put writes a blob atomically.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"name": &types.AttributeValueMemberS{Value: name},
			"data": &types.AttributeValueMemberB{Value: data},
		},
	})
	return err
}

// Get reads a whole blob.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"name": &types.AttributeValueMemberS{Value: name},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, blobstore.ErrNotFound
	}
	attr, ok := out.Item["data"].(*types.AttributeValueMemberB)
	if !ok {
		return nil, blobstore.ErrNotFound
	}
	return attr.Value, nil
}

// Delete removes a blob.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"name": &types.AttributeValueMemberS{Value: name},
		},
	})
	return err
}

// List returns all blob names with the given prefix, sorted. It scans the
// table; swap stores hold at most one blob per evicted chunk, so the scan
// stays small.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	var startKey map[string]types.AttributeValue

	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:            aws.String(s.tableName),
			ProjectionExpression: aws.String("#n"),
			ExpressionAttributeNames: map[string]string{
				"#n": "name",
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		for _, item := range out.Items {
			if attr, ok := item["name"].(*types.AttributeValueMemberS); ok {
				if strings.HasPrefix(attr.Value, prefix) {
					names = append(names, attr.Value)
				}
			}
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	sort.Strings(names)
	return names, nil
}
