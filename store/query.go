package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type Op int

const (
	OpEq Op = iota
	OpNe
	OpGte
	OpLte
	OpContains // list/set membership or substring
	OpBeginsWith
)

// Filter restricts query results on a non-key attribute.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query selects documents of one table or index.
//
// With PartitionField set the query is a key lookup on that partition,
// optionally narrowed to RangeStart <= RangeField <= RangeEnd. Without it the
// whole table is scanned. Results are ordered by RangeField (or the table sort
// key), filtered, then truncated to Limit.
type Query struct {
	Table string
	Index string

	PartitionField string
	PartitionValue string

	RangeField string
	RangeStart string
	RangeEnd   string

	Filters    []Filter
	Limit      int
	Descending bool
}

func (q Query) hasRange() bool {
	return q.RangeField != "" && (q.RangeStart != "" || q.RangeEnd != "")
}

func (q Query) validate() error {
	if q.Table == "" {
		return fmt.Errorf("query: table is required")
	}
	if q.PartitionField != "" && q.PartitionValue == "" {
		return fmt.Errorf("query %s: partition value for %s is empty", q.Table, q.PartitionField)
	}
	if q.PartitionField == "" && q.Index != "" {
		return fmt.Errorf("query %s: index %s needs a partition value", q.Table, q.Index)
	}
	return nil
}

func filterValue(v any) (types.AttributeValue, error) {
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal filter value %v: %w", v, err)
	}
	return av, nil
}

// match evaluates f against item the same way the DynamoDB filter expression
// built by buildFilterExpression would.
func (f Filter) match(item Item) bool {
	got, ok := item[f.Field]
	if !ok {
		return f.Op == OpNe
	}
	want, err := filterValue(f.Value)
	if err != nil {
		return false
	}

	switch f.Op {
	case OpEq:
		c, ok := compare(got, want)
		return ok && c == 0
	case OpNe:
		c, ok := compare(got, want)
		return !ok || c != 0
	case OpGte:
		c, ok := compare(got, want)
		return ok && c >= 0
	case OpLte:
		c, ok := compare(got, want)
		return ok && c <= 0
	case OpBeginsWith:
		g, ok1 := got.(*types.AttributeValueMemberS)
		w, ok2 := want.(*types.AttributeValueMemberS)
		return ok1 && ok2 && strings.HasPrefix(g.Value, w.Value)
	case OpContains:
		return contains(got, want)
	}
	return false
}

func compare(a, b types.AttributeValue) (int, bool) {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return 0, false
		}
		return strings.Compare(av.Value, bv.Value), true
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return 0, false
		}
		x, err1 := strconv.ParseFloat(av.Value, 64)
		y, err2 := strconv.ParseFloat(bv.Value, 64)
		if err1 != nil || err2 != nil {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		if !ok || av.Value != bv.Value {
			return 1, ok
		}
		return 0, true
	}
	return 0, false
}

func contains(got, want types.AttributeValue) bool {
	switch g := got.(type) {
	case *types.AttributeValueMemberS:
		w, ok := want.(*types.AttributeValueMemberS)
		return ok && strings.Contains(g.Value, w.Value)
	case *types.AttributeValueMemberSS:
		w, ok := want.(*types.AttributeValueMemberS)
		if !ok {
			return false
		}
		for _, s := range g.Value {
			if s == w.Value {
				return true
			}
		}
	case *types.AttributeValueMemberL:
		for _, el := range g.Value {
			if c, ok := compare(el, want); ok && c == 0 {
				return true
			}
		}
	}
	return false
}

func stringAttr(item Item, field string) (string, bool) {
	v, ok := item[field].(*types.AttributeValueMemberS)
	if !ok {
		return "", false
	}
	return v.Value, true
}
