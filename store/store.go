// Package store is the document database the matching core runs on: keyed
// documents, range and filter queries, batch deletes, watches and
// optimistic read-modify-write transactions.
//
// Documents are DynamoDB attribute maps so that one encoding
// (attributevalue) is shared by every implementation.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// VersionAttr holds a token that changes on every write of a document.
const VersionAttr = "_v"

var (
	ErrNotFound       = errors.New("item not found")
	ErrTxConflict     = errors.New("transaction conflict: retries exhausted")
	ErrUnknownTable   = errors.New("unknown table")
	ErrInvalidKey     = errors.New("invalid key")
	ErrTxItemOverflow = errors.New("too many items in transaction")
)

type Item = map[string]types.AttributeValue

// Schema names the key attributes of a table.
type Schema struct {
	PartitionKey string
	SortKey      string // empty when the table has no sort key
}

// Key addresses one document.
type Key struct {
	Table string
	PK    string
	SK    string
}

func (k Key) String() string {
	if k.SK == "" {
		return k.Table + "/" + k.PK
	}
	return k.Table + "/" + k.PK + "/" + k.SK
}

// Item returns the key attributes of k as an attribute map.
func (s Schema) Item(k Key) (Item, error) {
	if k.PK == "" || (s.SortKey != "" && k.SK == "") {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKey, k)
	}
	item := Item{s.PartitionKey: &types.AttributeValueMemberS{Value: k.PK}}
	if s.SortKey != "" {
		item[s.SortKey] = &types.AttributeValueMemberS{Value: k.SK}
	}
	return item, nil
}

// DocumentStore is implemented by DynamoStore and MemoryStore.
type DocumentStore interface {
	Get(ctx context.Context, key Key) (Item, error)
	// Put overwrites the document at key unconditionally.
	Put(ctx context.Context, key Key, item Item) error
	Delete(ctx context.Context, key Key) error
	BatchDelete(ctx context.Context, keys []Key) error
	Query(ctx context.Context, q Query) ([]Item, error)
	// RunTransaction runs fn and commits its writes atomically, provided no
	// document read through tx changed in the meantime. On conflict fn is run
	// again; after the configured attempts ErrTxConflict is returned.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the handle passed to RunTransaction callbacks. Reads must go through
// Get so that the commit can detect concurrent writes to them.
type Tx interface {
	Get(ctx context.Context, key Key) (Item, error)
	Put(key Key, item Item)
	Delete(key Key)
}

// Notifier is implemented by stores that can signal writes to a table
// without polling.
type Notifier interface {
	Changes(table string) (<-chan struct{}, func())
}

// Marshal encodes v (a dynamodbav-tagged struct) as an Item.
func Marshal(v any) (Item, error) {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item: %w", err)
	}
	return item, nil
}

// Unmarshal decodes item into v.
func Unmarshal(item Item, v any) error {
	if err := attributevalue.UnmarshalMap(item, v); err != nil {
		return fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return nil
}

// UnmarshalList decodes items into a pointer to a slice.
func UnmarshalList(items []Item, v any) error {
	if err := attributevalue.UnmarshalListOfMaps(items, v); err != nil {
		return fmt.Errorf("failed to unmarshal items: %w", err)
	}
	return nil
}

func version(item Item) string {
	if item == nil {
		return ""
	}
	if v, ok := item[VersionAttr].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func copyItem(item Item) Item {
	if item == nil {
		return nil
	}
	out := make(Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
