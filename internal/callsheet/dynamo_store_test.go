package callsheet

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo understands the handful of expressions DynamoStore sends.
type fakeDynamo struct {
	mu       sync.Mutex
	items    map[string]map[string]types.AttributeValue
	counters map[string]int
	pageSize int
	updates  []*ddb.UpdateItemInput
	queries  int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}, counters: map[string]int{}}
}

func fakeDynamoKey(key map[string]types.AttributeValue) (string, int) {
	table := key[dynamoPartitionKey].(*types.AttributeValueMemberS).Value
	position, _ := strconv.Atoi(key[dynamoSortKey].(*types.AttributeValueMemberN).Value)
	return table, position
}

func (f *fakeDynamo) PutItem(_ context.Context, in *ddb.PutItemInput, _ ...func(*ddb.Options)) (*ddb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table, position := fakeDynamoKey(in.Item)
	id := fmt.Sprintf("%s/%d", table, position)
	if in.ConditionExpression != nil && strings.HasPrefix(*in.ConditionExpression, "attribute_not_exists") {
		if _, exists := f.items[id]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
		}
	}
	f.items[id] = in.Item
	return &ddb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *ddb.UpdateItemInput, _ ...func(*ddb.Options)) (*ddb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, in)
	table, position := fakeDynamoKey(in.Key)
	if position == dynamoCounterPosition {
		if f.counters[table] == 0 {
			f.counters[table] = 1
		}
		f.counters[table]++
		return &ddb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
			dynamoCounterAttr: &types.AttributeValueMemberN{Value: strconv.Itoa(f.counters[table])},
		}}, nil
	}
	id := fmt.Sprintf("%s/%d", table, position)
	item, ok := f.items[id]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("missing")}
	}
	cells := item["cells"].(*types.AttributeValueMemberM)
	for name, column := range in.ExpressionAttributeNames {
		if !strings.HasPrefix(name, "#c") || name == "#cells" {
			continue
		}
		value := in.ExpressionAttributeValues[":v"+strings.TrimPrefix(name, "#c")]
		cells.Value[column] = value
	}
	item["updated_at"] = in.ExpressionAttributeValues[":updated"]
	return &ddb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *ddb.QueryInput, _ ...func(*ddb.Options)) (*ddb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	table := in.ExpressionAttributeValues[":table"].(*types.AttributeValueMemberS).Value
	var positions []int
	for id := range f.items {
		prefix := table + "/"
		if strings.HasPrefix(id, prefix) {
			position, _ := strconv.Atoi(strings.TrimPrefix(id, prefix))
			positions = append(positions, position)
		}
	}
	sort.Ints(positions)
	start := 0
	if in.ExclusiveStartKey != nil {
		_, last := fakeDynamoKey(in.ExclusiveStartKey)
		for start < len(positions) && positions[start] <= last {
			start++
		}
	}
	end := len(positions)
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
	}
	out := &ddb.QueryOutput{}
	for _, position := range positions[start:end] {
		out.Items = append(out.Items, f.items[fmt.Sprintf("%s/%d", table, position)])
	}
	if end < len(positions) {
		out.LastEvaluatedKey = dynamoKey(table, positions[end-1])
	}
	return out, nil
}

func TestDynamoStoreAppendAndRead(t *testing.T) {
	client := newFakeDynamo()
	client.pageSize = 2
	store, err := NewDynamoStore(client, "relaysheet")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.EnsureHeader(ctx, "Jobs", jobsHeader))
	require.NoError(t, store.EnsureHeader(ctx, "Jobs", []string{"ignored"}))
	for _, name := range []string{"Ada", "Bob", "Cy"} {
		require.NoError(t, store.AppendRow(ctx, "Jobs", []string{"t", name, "", "555-" + name}))
	}

	rows, err := store.ReadRows(ctx, "Jobs", JobsReadSpan)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, jobsHeader, rows[0])
	assert.Equal(t, "Bob", rows[2][1])
	assert.Equal(t, 2, client.queries, "results are paged")

	match, ok, err := FindByKey(ctx, store, "Jobs", JobsReadSpan, jobColPhoneNumber, "555-Cy")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, match.Position)
}

func TestDynamoStoreAppendWithoutHeaderStartsAtRowTwo(t *testing.T) {
	client := newFakeDynamo()
	store, err := NewDynamoStore(client, "relaysheet")
	require.NoError(t, err)

	require.NoError(t, store.AppendRow(context.Background(), "Emergency", []string{"t", "Grace"}))
	_, ok := client.items["Emergency/2"]
	assert.True(t, ok)
}

func TestDynamoStoreUpdateCellsSingleCall(t *testing.T) {
	client := newFakeDynamo()
	store, err := NewDynamoStore(client, "relaysheet")
	require.NoError(t, err)
	store.now = func() time.Time { return fixedNow }
	ctx := context.Background()
	require.NoError(t, store.AppendRow(ctx, "Jobs", []string{"t1", "Ada", "", "555"}))
	before := len(client.updates)

	err = store.UpdateCells(ctx, "Jobs", 2, []CellUpdate{{Column: "A", Value: "t2"}, {Column: "I", Value: StatusCancelled}})
	require.NoError(t, err)
	require.Len(t, client.updates, before+1)
	last := client.updates[len(client.updates)-1]
	assert.Equal(t, "SET #updated = :updated, #cells.#c0 = :v0, #cells.#c1 = :v1", *last.UpdateExpression)
	assert.Equal(t, "attribute_exists(#pk)", *last.ConditionExpression)

	rows, err := store.ReadRows(ctx, "Jobs", JobsReadSpan)
	require.NoError(t, err)
	assert.Equal(t, "t2", rows[1][0])
	assert.Equal(t, StatusCancelled, rows[1][8])
	assert.Equal(t, "", rows[1][5])
}

func TestDynamoStoreUpdateMissingRowFails(t *testing.T) {
	store, err := NewDynamoStore(newFakeDynamo(), "relaysheet")
	require.NoError(t, err)
	err = store.UpdateCells(context.Background(), "Jobs", 9, []CellUpdate{{Column: "I", Value: "x"}})
	var conditionFailed *types.ConditionalCheckFailedException
	assert.ErrorAs(t, err, &conditionFailed)

	err = store.UpdateCells(context.Background(), "Jobs", 9, []CellUpdate{{Column: "1", Value: "x"}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNewDynamoStoreValidation(t *testing.T) {
	_, err := NewDynamoStore(nil, "t")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = NewDynamoStore(newFakeDynamo(), " ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
