package ddb

import (
	"context"
	"time"

	"github.com/EvanBelcher/nba-led-scoreboard/internal/types"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// SnapshotStore implements ports.SnapshotStore with one item per key under a
// single partition.
type SnapshotStore struct {
	table string
	cli   *dynamodb.Client
}

type snapshotItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Payload   []byte `dynamodbav:"payload"`
	UpdatedAt int64  `dynamodbav:"updated_at"`
}

// NewSnapshotStore creates the table when it does not exist yet.
func NewSnapshotStore(ctx context.Context, table string, cli *dynamodb.Client) (*SnapshotStore, error) {
	if err := createTableIfNotExists(ctx, cli, table); err != nil {
		return nil, err
	}
	return &SnapshotStore{table: table, cli: cli}, nil
}

func (s *SnapshotStore) Save(ctx context.Context, key string, payload []byte) error {
	av, err := attributevalue.MarshalMap(snapshotItem{
		PK:        pkSnapshot(),
		SK:        skSnapshot(key),
		Payload:   payload,
		UpdatedAt: time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	_, err = s.cli.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.table,
		Item:      av,
	})
	return err
}

func (s *SnapshotStore) Load(ctx context.Context, key string) ([]byte, error) {
	out, err := s.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.table,
		ConsistentRead: awsBool(true),
		Key:            itemKey(skSnapshot(key)),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, types.ErrNotFound
	}
	var it snapshotItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, err
	}
	return it.Payload, nil
}

func (s *SnapshotStore) Keys(ctx context.Context) ([]string, error) {
	sks, err := s.sortKeys(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(sks))
	for _, sk := range sks {
		keys = append(keys, parseSnapshotKey(sk))
	}
	return keys, nil
}

func (s *SnapshotStore) ClearAll(ctx context.Context) error {
	sks, err := s.sortKeys(ctx)
	if err != nil {
		return err
	}
	for _, sk := range sks {
		if _, err := s.cli.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: &s.table,
			Key:       itemKey(sk),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *SnapshotStore) sortKeys(ctx context.Context) ([]string, error) {
	p := dynamodb.NewQueryPaginator(s.cli, &dynamodb.QueryInput{
		TableName:              &s.table,
		KeyConditionExpression: awsString("PK = :pk"),
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":pk": &ddbTypes.AttributeValueMemberS{Value: pkSnapshot()},
		},
		ProjectionExpression: awsString("SK"),
	})
	var out []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			if sk, ok := item["SK"].(*ddbTypes.AttributeValueMemberS); ok {
				out = append(out, sk.Value)
			}
		}
	}
	return out, nil
}

func itemKey(sk string) map[string]ddbTypes.AttributeValue {
	return map[string]ddbTypes.AttributeValue{
		"PK": &ddbTypes.AttributeValueMemberS{Value: pkSnapshot()},
		"SK": &ddbTypes.AttributeValueMemberS{Value: sk},
	}
}
