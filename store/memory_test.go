package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDoc struct {
	PK    string   `dynamodbav:"PK"`
	SK    string   `dynamodbav:"SK"`
	Owner string   `dynamodbav:"owner"`
	Count int      `dynamodbav:"count"`
	Tags  []string `dynamodbav:"tags,omitempty"`
}

var testSchemas = map[string]Schema{
	"Docs":     {PartitionKey: "PK", SortKey: "SK"},
	"Counters": {PartitionKey: "id"},
}

func newTestStore() *MemoryStore {
	return NewMemoryStore(testSchemas, 50)
}

func putDoc(t *testing.T, s DocumentStore, d testDoc) {
	t.Helper()
	item, err := Marshal(d)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), Key{Table: "Docs", PK: d.PK, SK: d.SK}, item))
}

func TestMemoryStore_PutGet(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	key := Key{Table: "Docs", PK: "a", SK: "1"}

	_, err := s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	putDoc(t, s, testDoc{PK: "a", SK: "1", Owner: "u1", Count: 3})

	item, err := s.Get(ctx, key)
	require.NoError(t, err)
	var got testDoc
	require.NoError(t, Unmarshal(item, &got))
	assert.Equal(t, "u1", got.Owner)
	assert.Equal(t, 3, got.Count)

	v1 := version(item)
	assert.NotEmpty(t, v1)

	putDoc(t, s, testDoc{PK: "a", SK: "1", Owner: "u1", Count: 4})
	item, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.NotEqual(t, v1, version(item))
}

func TestMemoryStore_KeyErrors(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	_, err := s.Get(ctx, Key{Table: "Nope", PK: "a"})
	assert.ErrorIs(t, err, ErrUnknownTable)

	_, err = s.Get(ctx, Key{Table: "Docs", PK: "a"})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestMemoryStore_DeleteAndBatchDelete(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	for _, sk := range []string{"1", "2", "3"} {
		putDoc(t, s, testDoc{PK: "a", SK: sk})
	}

	require.NoError(t, s.Delete(ctx, Key{Table: "Docs", PK: "a", SK: "1"}))
	require.NoError(t, s.BatchDelete(ctx, []Key{
		{Table: "Docs", PK: "a", SK: "2"},
		{Table: "Docs", PK: "a", SK: "404"},
	}))

	items, err := s.Query(ctx, Query{Table: "Docs", PartitionField: "PK", PartitionValue: "a"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	sk, _ := stringAttr(items[0], "SK")
	assert.Equal(t, "3", sk)
}

func TestMemoryStore_Query(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	putDoc(t, s, testDoc{PK: "a", SK: "2024-01", Owner: "x", Count: 1, Tags: []string{"red"}})
	putDoc(t, s, testDoc{PK: "a", SK: "2024-02", Owner: "y", Count: 5, Tags: []string{"blue"}})
	putDoc(t, s, testDoc{PK: "a", SK: "2024-03", Owner: "x", Count: 9, Tags: []string{"red", "blue"}})
	putDoc(t, s, testDoc{PK: "b", SK: "2024-02", Owner: "x", Count: 2})

	skOf := func(items []Item) []string {
		var out []string
		for _, it := range items {
			v, _ := stringAttr(it, "SK")
			out = append(out, v)
		}
		return out
	}

	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{
			name: "partition ascending",
			q:    Query{Table: "Docs", PartitionField: "PK", PartitionValue: "a"},
			want: []string{"2024-01", "2024-02", "2024-03"},
		},
		{
			name: "descending with limit",
			q:    Query{Table: "Docs", PartitionField: "PK", PartitionValue: "a", Descending: true, Limit: 2},
			want: []string{"2024-03", "2024-02"},
		},
		{
			name: "inclusive range",
			q: Query{Table: "Docs", PartitionField: "PK", PartitionValue: "a",
				RangeField: "SK", RangeStart: "2024-02", RangeEnd: "2024-03"},
			want: []string{"2024-02", "2024-03"},
		},
		{
			name: "filters",
			q: Query{Table: "Docs", PartitionField: "PK", PartitionValue: "a", Filters: []Filter{
				{Field: "owner", Op: OpEq, Value: "x"},
				{Field: "count", Op: OpGte, Value: 5},
			}},
			want: []string{"2024-03"},
		},
		{
			name: "contains on list",
			q: Query{Table: "Docs", PartitionField: "PK", PartitionValue: "a", Filters: []Filter{
				{Field: "tags", Op: OpContains, Value: "blue"},
			}},
			want: []string{"2024-02", "2024-03"},
		},
		{
			name: "scan with begins_with",
			q: Query{Table: "Docs", Filters: []Filter{
				{Field: "SK", Op: OpBeginsWith, Value: "2024-02"},
			}},
			want: []string{"2024-02", "2024-02"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := s.Query(ctx, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, skOf(items))
		})
	}

	_, err := s.Query(ctx, Query{Table: "Docs", PartitionField: "PK"})
	assert.Error(t, err)
}

func counterKey() Key { return Key{Table: "Counters", PK: "c"} }

func increment(ctx context.Context, s DocumentStore) error {
	return Update(ctx, s, counterKey(), func(item Item) (Item, error) {
		var c struct {
			ID    string `dynamodbav:"id"`
			Value int    `dynamodbav:"value"`
		}
		if item != nil {
			if err := Unmarshal(item, &c); err != nil {
				return nil, err
			}
		}
		c.Value++
		return Marshal(c)
	})
}

func TestMemoryStore_ConcurrentTransactions(t *testing.T) {
	s := NewMemoryStore(testSchemas, 1000)
	ctx := context.Background()

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- increment(ctx, s)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	item, err := s.Get(ctx, counterKey())
	require.NoError(t, err)
	var c struct {
		Value int `dynamodbav:"value"`
	}
	require.NoError(t, Unmarshal(item, &c))
	assert.Equal(t, n, c.Value)
}

func TestMemoryStore_TransactionConflictExhausted(t *testing.T) {
	s := NewMemoryStore(testSchemas, 3)
	ctx := context.Background()

	var attempts int32
	err := s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		atomic.AddInt32(&attempts, 1)
		if _, err := tx.Get(ctx, counterKey()); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		// a concurrent writer sneaks in after every read
		require.NoError(t, increment(ctx, s))
		tx.Put(counterKey(), Item{})
		return nil
	})

	assert.ErrorIs(t, err, ErrTxConflict)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestMemoryStore_TransactionCallbackError(t *testing.T) {
	s := newTestStore()
	boom := errors.New("boom")

	err := s.RunTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
		tx.Put(counterKey(), Item{})
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Get(context.Background(), counterKey())
	assert.ErrorIs(t, err, ErrNotFound, "writes of a failed callback must not be committed")
}

func TestMemoryStore_TxReadsOwnWrites(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	key := Key{Table: "Docs", PK: "a", SK: "1"}

	err := s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		item, err := Marshal(testDoc{PK: "a", SK: "1", Owner: "me"})
		require.NoError(t, err)
		tx.Put(key, item)

		got, err := tx.Get(ctx, key)
		require.NoError(t, err)
		owner, _ := stringAttr(got, "owner")
		assert.Equal(t, "me", owner)

		tx.Delete(key)
		_, err = tx.Get(ctx, key)
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	})
	require.NoError(t, err)

	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Changes(t *testing.T) {
	s := newTestStore()
	ch, stop := s.Changes("Docs")
	defer stop()

	putDoc(t, s, testDoc{PK: "a", SK: "1"})

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}
}
