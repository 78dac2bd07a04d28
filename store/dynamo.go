package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"roomie_server/logging"
)

// DynamoAPI is the subset of *dynamodb.Client used by DynamoStore.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

type DynamoStore struct {
	Client      DynamoAPI
	schemas     map[string]Schema
	maxAttempts int
	logger      logging.Logger
}

// InitializeDynamoDBClient loads the default AWS config for region. A
// non-empty endpoint points the client at a local DynamoDB.
func InitializeDynamoDBClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func NewDynamoStore(client DynamoAPI, schemas map[string]Schema, maxAttempts int, logger logging.Logger) *DynamoStore {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &DynamoStore{Client: client, schemas: schemas, maxAttempts: maxAttempts, logger: logger}
}

func (ds *DynamoStore) keyItem(k Key) (Item, error) {
	s, ok := ds.schemas[k.Table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, k.Table)
	}
	return s.Item(k)
}

// withKey returns a copy of item carrying k's key attributes and a fresh version.
func (ds *DynamoStore) withKey(k Key, item Item) (Item, error) {
	keyItem, err := ds.keyItem(k)
	if err != nil {
		return nil, err
	}
	out := copyItem(item)
	if out == nil {
		out = Item{}
	}
	for name, v := range keyItem {
		out[name] = v
	}
	out[VersionAttr] = &types.AttributeValueMemberS{Value: uuid.NewString()}
	return out, nil
}

// Get reads with strong consistency so transactions see the latest version.
func (ds *DynamoStore) Get(ctx context.Context, key Key) (Item, error) {
	keyItem, err := ds.keyItem(key)
	if err != nil {
		return nil, err
	}
	output, err := ds.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(key.Table),
		Key:            keyItem,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item from table '%s': %w", key.Table, err)
	}
	if output.Item == nil {
		return nil, ErrNotFound
	}
	return output.Item, nil
}

func (ds *DynamoStore) Put(ctx context.Context, key Key, item Item) error {
	stored, err := ds.withKey(key, item)
	if err != nil {
		return err
	}
	_, err = ds.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(key.Table),
		Item:      stored,
	})
	if err != nil {
		return fmt.Errorf("failed to put item in table '%s': %w", key.Table, err)
	}
	return nil
}

func (ds *DynamoStore) Delete(ctx context.Context, key Key) error {
	keyItem, err := ds.keyItem(key)
	if err != nil {
		return err
	}
	_, err = ds.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(key.Table),
		Key:       keyItem,
	})
	if err != nil {
		return fmt.Errorf("failed to delete item from table '%s': %w", key.Table, err)
	}
	return nil
}

const maxBatchSize = 25

// BatchDelete deletes keys in batches of 25, resubmitting unprocessed items.
func (ds *DynamoStore) BatchDelete(ctx context.Context, keys []Key) error {
	var requests []batchRequest
	for _, k := range keys {
		keyItem, err := ds.keyItem(k)
		if err != nil {
			return err
		}
		requests = append(requests, batchRequest{
			table: k.Table,
			req:   types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: keyItem}},
		})
	}

	for i := 0; i < len(requests); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(requests) {
			end = len(requests)
		}

		pending := map[string][]types.WriteRequest{}
		for _, r := range requests[i:end] {
			pending[r.table] = append(pending[r.table], r.req)
		}

		for attempt := 1; len(pending) > 0; attempt++ {
			if attempt > ds.maxAttempts {
				return fmt.Errorf("batch delete: %d tables still have unprocessed items", len(pending))
			}
			out, err := ds.Client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return fmt.Errorf("failed to batch delete items: %w", err)
			}
			pending = out.UnprocessedItems
			if len(pending) > 0 {
				backoff(ctx, attempt)
			}
		}
	}
	return nil
}

type batchRequest struct {
	table string
	req   types.WriteRequest
}

type expression struct {
	names  map[string]string
	values map[string]types.AttributeValue
}

func newExpression() *expression {
	return &expression{names: map[string]string{}, values: map[string]types.AttributeValue{}}
}

func (e *expression) name(placeholder, field string) string {
	e.names[placeholder] = field
	return placeholder
}

func (e *expression) value(placeholder string, v types.AttributeValue) string {
	e.values[placeholder] = v
	return placeholder
}

func (e *expression) keyCondition(q Query) string {
	cond := e.name("#pk", q.PartitionField) + " = " +
		e.value(":pk", &types.AttributeValueMemberS{Value: q.PartitionValue})
	if !q.hasRange() {
		return cond
	}
	rk := e.name("#rk", q.RangeField)
	switch {
	case q.RangeStart != "" && q.RangeEnd != "":
		return cond + " AND " + rk + " BETWEEN " +
			e.value(":rs", &types.AttributeValueMemberS{Value: q.RangeStart}) + " AND " +
			e.value(":re", &types.AttributeValueMemberS{Value: q.RangeEnd})
	case q.RangeStart != "":
		return cond + " AND " + rk + " >= " + e.value(":rs", &types.AttributeValueMemberS{Value: q.RangeStart})
	default:
		return cond + " AND " + rk + " <= " + e.value(":re", &types.AttributeValueMemberS{Value: q.RangeEnd})
	}
}

func (e *expression) filter(filters []Filter) (string, error) {
	var parts []string
	for i, f := range filters {
		n := e.name(fmt.Sprintf("#f%d", i), f.Field)
		av, err := filterValue(f.Value)
		if err != nil {
			return "", err
		}
		v := e.value(fmt.Sprintf(":f%d", i), av)

		switch f.Op {
		case OpEq:
			parts = append(parts, n+" = "+v)
		case OpNe:
			parts = append(parts, n+" <> "+v)
		case OpGte:
			parts = append(parts, n+" >= "+v)
		case OpLte:
			parts = append(parts, n+" <= "+v)
		case OpContains:
			parts = append(parts, "contains("+n+", "+v+")")
		case OpBeginsWith:
			parts = append(parts, "begins_with("+n+", "+v+")")
		default:
			return "", fmt.Errorf("unsupported filter op %d on %s", f.Op, f.Field)
		}
	}
	return joinAnd(parts), nil
}

func joinAnd(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " AND "
		}
		out += p
	}
	return out
}

func buildQueryInput(q Query) (*dynamodb.QueryInput, error) {
	e := newExpression()
	in := &dynamodb.QueryInput{
		TableName:              aws.String(q.Table),
		KeyConditionExpression: aws.String(e.keyCondition(q)),
		ScanIndexForward:       aws.Bool(!q.Descending),
	}
	if q.Index != "" {
		in.IndexName = aws.String(q.Index)
	}
	filter, err := e.filter(q.Filters)
	if err != nil {
		return nil, err
	}
	if filter != "" {
		in.FilterExpression = aws.String(filter)
	}
	if q.Limit > 0 {
		in.Limit = aws.Int32(int32(q.Limit))
	}
	in.ExpressionAttributeNames = e.names
	in.ExpressionAttributeValues = e.values
	return in, nil
}

func buildScanInput(q Query) (*dynamodb.ScanInput, error) {
	e := newExpression()
	in := &dynamodb.ScanInput{TableName: aws.String(q.Table)}
	filter, err := e.filter(q.Filters)
	if err != nil {
		return nil, err
	}
	if filter != "" {
		in.FilterExpression = aws.String(filter)
		in.ExpressionAttributeNames = e.names
		in.ExpressionAttributeValues = e.values
	}
	return in, nil
}

// Query pages through results until Limit items survived the filter or the
// table/index is exhausted.
func (ds *DynamoStore) Query(ctx context.Context, q Query) ([]Item, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	if q.PartitionField == "" {
		return ds.scan(ctx, q)
	}

	in, err := buildQueryInput(q)
	if err != nil {
		return nil, err
	}

	var items []Item
	for {
		out, err := ds.Client.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("failed to query table '%s': %w", q.Table, err)
		}
		items = append(items, out.Items...)
		if (q.Limit > 0 && len(items) >= q.Limit) || len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}

	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}
	return items, nil
}

func (ds *DynamoStore) scan(ctx context.Context, q Query) ([]Item, error) {
	in, err := buildScanInput(q)
	if err != nil {
		return nil, err
	}

	var items []Item
	for {
		out, err := ds.Client.Scan(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table '%s': %w", q.Table, err)
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}

	if s, ok := ds.schemas[q.Table]; ok && s.SortKey != "" {
		sort.SliceStable(items, func(i, j int) bool {
			a, _ := stringAttr(items[i], s.SortKey)
			b, _ := stringAttr(items[j], s.SortKey)
			if q.Descending {
				return a > b
			}
			return a < b
		})
	}
	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}
	return items, nil
}

// maxTransactItems is the TransactWriteItems limit.
const maxTransactItems = 100

type dynamoTx struct {
	store  *DynamoStore
	reads  map[Key]string
	writes map[Key]Item
	order  []Key
}

func (t *dynamoTx) Get(ctx context.Context, key Key) (Item, error) {
	if item, ok := t.writes[key]; ok {
		if item == nil {
			return nil, ErrNotFound
		}
		return copyItem(item), nil
	}
	item, err := t.store.Get(ctx, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if _, ok := t.reads[key]; !ok {
		t.reads[key] = version(item)
	}
	return item, err
}

func (t *dynamoTx) Put(key Key, item Item) {
	if _, ok := t.writes[key]; !ok {
		t.order = append(t.order, key)
	}
	t.writes[key] = copyItem(item)
}

func (t *dynamoTx) Delete(key Key) {
	if _, ok := t.writes[key]; !ok {
		t.order = append(t.order, key)
	}
	t.writes[key] = nil
}

func (ds *DynamoStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	for attempt := 1; attempt <= ds.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tx := &dynamoTx{store: ds, reads: map[Key]string{}, writes: map[Key]Item{}}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		committed, err := ds.commit(ctx, tx)
		if err != nil {
			return err
		}
		if committed {
			return nil
		}
		ds.logger.Debug(ctx, "transaction conflict, retrying", "attempt", attempt)
		backoff(ctx, attempt)
	}
	return ErrTxConflict
}

// versionCondition guards a key on the version the transaction read.
func versionCondition(seen string) (string, map[string]string, map[string]types.AttributeValue) {
	names := map[string]string{"#v": VersionAttr}
	if seen == "" {
		return "attribute_not_exists(#v)", names, nil
	}
	return "#v = :v", names, map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: seen}}
}

func (ds *DynamoStore) buildTransactItems(tx *dynamoTx) ([]types.TransactWriteItem, error) {
	var items []types.TransactWriteItem
	for _, k := range tx.order {
		var cond *string
		var names map[string]string
		var values map[string]types.AttributeValue
		if seen, ok := tx.reads[k]; ok {
			var expr string
			expr, names, values = versionCondition(seen)
			cond = aws.String(expr)
		}

		if item := tx.writes[k]; item != nil {
			stored, err := ds.withKey(k, item)
			if err != nil {
				return nil, err
			}
			items = append(items, types.TransactWriteItem{Put: &types.Put{
				TableName:                 aws.String(k.Table),
				Item:                      stored,
				ConditionExpression:       cond,
				ExpressionAttributeNames:  names,
				ExpressionAttributeValues: values,
			}})
			continue
		}

		keyItem, err := ds.keyItem(k)
		if err != nil {
			return nil, err
		}
		items = append(items, types.TransactWriteItem{Delete: &types.Delete{
			TableName:                 aws.String(k.Table),
			Key:                       keyItem,
			ConditionExpression:       cond,
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		}})
	}

	// reads that are not written still have to be unchanged at commit
	readOnly := make([]Key, 0, len(tx.reads))
	for k := range tx.reads {
		if _, written := tx.writes[k]; !written {
			readOnly = append(readOnly, k)
		}
	}
	sort.Slice(readOnly, func(i, j int) bool { return readOnly[i].String() < readOnly[j].String() })
	for _, k := range readOnly {
		keyItem, err := ds.keyItem(k)
		if err != nil {
			return nil, err
		}
		expr, names, values := versionCondition(tx.reads[k])
		items = append(items, types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
			TableName:                 aws.String(k.Table),
			Key:                       keyItem,
			ConditionExpression:       aws.String(expr),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		}})
	}

	if len(items) > maxTransactItems {
		return nil, fmt.Errorf("%w: %d", ErrTxItemOverflow, len(items))
	}
	return items, nil
}

func (ds *DynamoStore) commit(ctx context.Context, tx *dynamoTx) (bool, error) {
	if len(tx.order) == 0 {
		return true, nil
	}
	items, err := ds.buildTransactItems(tx)
	if err != nil {
		return false, err
	}
	_, err = ds.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err == nil {
		return true, nil
	}
	if isTxConflict(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to commit transaction: %w", err)
}

func isTxConflict(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "TransactionCanceledException", "TransactionConflictException", "ConditionalCheckFailedException":
		return true
	}
	return false
}
