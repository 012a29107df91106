package callsheet

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cockroachdb/errors"
)

const (
	dynamoPartitionKey = "table_name"
	dynamoSortKey      = "row_position"
	dynamoCounterAttr  = "last_position"
	// Position 0 holds the per-table append counter.
	dynamoCounterPosition = 0
)

// DynamoAPI is the part of the DynamoDB client DynamoStore uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *ddb.PutItemInput, optFns ...func(*ddb.Options)) (*ddb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *ddb.UpdateItemInput, optFns ...func(*ddb.Options)) (*ddb.UpdateItemOutput, error)
	Query(ctx context.Context, params *ddb.QueryInput, optFns ...func(*ddb.Options)) (*ddb.QueryOutput, error)
}

// DynamoStore keeps one item per row in a DynamoDB table with partition key
// table_name and numeric sort key row_position. Cells are a map keyed by
// column letter.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

type dynamoRowItem struct {
	Table     string            `dynamodbav:"table_name"`
	Position  int               `dynamodbav:"row_position"`
	Cells     map[string]string `dynamodbav:"cells"`
	UpdatedAt string            `dynamodbav:"updated_at"`
}

func NewDynamoStore(client DynamoAPI, tableName string) (*DynamoStore, error) {
	tableName = strings.TrimSpace(tableName)
	if client == nil || tableName == "" {
		return nil, errors.Wrap(ErrInvalidInput, "dynamodb client and table name are required")
	}
	return &DynamoStore{client: client, tableName: tableName, now: time.Now}, nil
}

// NewDynamoStoreFromConfig builds the client from the default AWS config
// chain. An empty endpoint uses the regional AWS endpoint.
func NewDynamoStoreFromConfig(ctx context.Context, tableName, region, endpoint string) (*DynamoStore, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	client := ddb.NewFromConfig(cfg, func(o *ddb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewDynamoStore(client, tableName)
}

func (s *DynamoStore) AppendRow(ctx context.Context, table string, row []string) error {
	position, err := s.nextPosition(ctx, table)
	if err != nil {
		return err
	}
	return s.putRow(ctx, table, position, row, nil)
}

func (s *DynamoStore) ReadRows(ctx context.Context, table string, span ColumnSpan) ([][]string, error) {
	tables := tableSet{}
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &ddb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("#pk = :table AND #sk > :counter"),
			ExpressionAttributeNames: map[string]string{
				"#pk": dynamoPartitionKey,
				"#sk": dynamoSortKey,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":table":   &types.AttributeValueMemberS{Value: table},
				":counter": &types.AttributeValueMemberN{Value: strconv.Itoa(dynamoCounterPosition)},
			},
			ConsistentRead:    aws.Bool(true),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		var items []dynamoRowItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, errors.Wrapf(err, "decode %s rows", table)
		}
		for _, item := range items {
			updates := make([]CellUpdate, 0, len(item.Cells))
			for column, value := range item.Cells {
				updates = append(updates, CellUpdate{Column: column, Value: value})
			}
			if err := tables.updateCells(table, item.Position, updates); err != nil {
				return nil, err
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return tables.readRows(table, span)
}

// UpdateCells sets every cell of the batch in one UpdateItem call.
func (s *DynamoStore) UpdateCells(ctx context.Context, table string, position int, updates []CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	names := map[string]string{"#cells": "cells", "#updated": "updated_at"}
	values := map[string]types.AttributeValue{
		":updated": &types.AttributeValueMemberS{Value: Timestamp(s.now())},
	}
	assignments := []string{"#updated = :updated"}
	for i, update := range updates {
		if _, err := ColumnIndex(update.Column); err != nil {
			return err
		}
		name := fmt.Sprintf("#c%d", i)
		value := fmt.Sprintf(":v%d", i)
		names[name] = strings.ToUpper(update.Column)
		values[value] = &types.AttributeValueMemberS{Value: update.Value}
		assignments = append(assignments, fmt.Sprintf("#cells.%s = %s", name, value))
	}
	names["#pk"] = dynamoPartitionKey
	_, err := s.client.UpdateItem(ctx, &ddb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       dynamoKey(table, position),
		UpdateExpression:          aws.String("SET " + strings.Join(assignments, ", ")),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	return err
}

func (s *DynamoStore) EnsureHeader(ctx context.Context, table string, header []string) error {
	err := s.putRow(ctx, table, 1, header, aws.String("attribute_not_exists(#pk)"))
	var conditionFailed *types.ConditionalCheckFailedException
	if errors.As(err, &conditionFailed) {
		return nil
	}
	return err
}

func (s *DynamoStore) putRow(ctx context.Context, table string, position int, row []string, condition *string) error {
	cells := make(map[string]string, len(row))
	for i, v := range row {
		cells[ColumnLetter(i)] = v
	}
	item, err := attributevalue.MarshalMap(dynamoRowItem{
		Table:     table,
		Position:  position,
		Cells:     cells,
		UpdatedAt: Timestamp(s.now()),
	})
	if err != nil {
		return err
	}
	input := &ddb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}
	if condition != nil {
		input.ConditionExpression = condition
		input.ExpressionAttributeNames = map[string]string{"#pk": dynamoPartitionKey}
	}
	_, err = s.client.PutItem(ctx, input)
	return err
}

// nextPosition bumps the table counter. The counter starts at 1 so data rows
// begin at position 2 whether or not a header was written.
func (s *DynamoStore) nextPosition(ctx context.Context, table string) (int, error) {
	out, err := s.client.UpdateItem(ctx, &ddb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              dynamoKey(table, dynamoCounterPosition),
		UpdateExpression: aws.String("SET #counter = if_not_exists(#counter, :one) + :one"),
		ExpressionAttributeNames: map[string]string{
			"#counter": dynamoCounterAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, err
	}
	var position int
	if err := attributevalue.Unmarshal(out.Attributes[dynamoCounterAttr], &position); err != nil {
		return 0, errors.Wrapf(err, "decode %s counter", table)
	}
	return position, nil
}

func dynamoKey(table string, position int) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamoPartitionKey: &types.AttributeValueMemberS{Value: table},
		dynamoSortKey:      &types.AttributeValueMemberN{Value: strconv.Itoa(position)},
	}
}
