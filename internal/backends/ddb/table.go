package ddb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	log "github.com/sirupsen/logrus"
)

const (
	SSnapshot = "SNAP"
)

func pkSnapshot() string           { return SSnapshot }
func skSnapshot(key string) string { return fmt.Sprintf("%s#%s", SSnapshot, key) }

func parseSnapshotKey(sk string) string {
	prefix := SSnapshot + "#"
	if len(sk) > len(prefix) && sk[:len(prefix)] == prefix {
		return sk[len(prefix):]
	}
	return sk
}

// createTableIfNotExists creates the PK/SK table. An existing table is not an error.
func createTableIfNotExists(ctx context.Context, client *dynamodb.Client, table string) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: &table,
		AttributeDefinitions: []ddbTypes.AttributeDefinition{
			{AttributeName: awsString("PK"), AttributeType: ddbTypes.ScalarAttributeTypeS},
			{AttributeName: awsString("SK"), AttributeType: ddbTypes.ScalarAttributeTypeS},
		},
		KeySchema: []ddbTypes.KeySchemaElement{
			{AttributeName: awsString("PK"), KeyType: ddbTypes.KeyTypeHash},
			{AttributeName: awsString("SK"), KeyType: ddbTypes.KeyTypeRange},
		},
		BillingMode: ddbTypes.BillingModePayPerRequest,
	})
	var re *ddbTypes.ResourceInUseException
	if err != nil && !errors.As(err, &re) {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	if err == nil {
		log.WithField("table", table).Info("created snapshot table")
	}
	return nil
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
