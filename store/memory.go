package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// MemoryStore is an in-process DocumentStore with the same transactional
// guarantees as DynamoStore. Used for local development and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	schemas     map[string]Schema
	tables      map[string]map[string]Item
	maxAttempts int

	subMu sync.Mutex
	subs  map[string]map[int]chan struct{}
	next  int
}

func NewMemoryStore(schemas map[string]Schema, maxAttempts int) *MemoryStore {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	tables := make(map[string]map[string]Item, len(schemas))
	for name := range schemas {
		tables[name] = map[string]Item{}
	}
	return &MemoryStore{
		schemas:     schemas,
		tables:      tables,
		maxAttempts: maxAttempts,
		subs:        map[string]map[int]chan struct{}{},
	}
}

func memKey(k Key) string {
	return k.PK + "\x00" + k.SK
}

func (m *MemoryStore) schema(k Key) (Schema, error) {
	s, ok := m.schemas[k.Table]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %s", ErrUnknownTable, k.Table)
	}
	if _, err := s.Item(k); err != nil {
		return Schema{}, err
	}
	return s, nil
}

func (m *MemoryStore) Get(_ context.Context, key Key) (Item, error) {
	if _, err := m.schema(key); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.tables[key.Table][memKey(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return copyItem(item), nil
}

func (m *MemoryStore) Put(_ context.Context, key Key, item Item) error {
	s, err := m.schema(key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.put(s, key, item)
	m.mu.Unlock()

	m.notify(key.Table)
	return nil
}

// put must be called with mu held.
func (m *MemoryStore) put(s Schema, key Key, item Item) {
	stored := copyItem(item)
	keyItem, _ := s.Item(key)
	for k, v := range keyItem {
		stored[k] = v
	}
	stored[VersionAttr] = &types.AttributeValueMemberS{Value: uuid.NewString()}
	m.tables[key.Table][memKey(key)] = stored
}

func (m *MemoryStore) Delete(_ context.Context, key Key) error {
	if _, err := m.schema(key); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.tables[key.Table], memKey(key))
	m.mu.Unlock()

	m.notify(key.Table)
	return nil
}

func (m *MemoryStore) BatchDelete(_ context.Context, keys []Key) error {
	for _, k := range keys {
		if _, err := m.schema(k); err != nil {
			return err
		}
	}
	touched := map[string]struct{}{}

	m.mu.Lock()
	for _, k := range keys {
		delete(m.tables[k.Table], memKey(k))
		touched[k.Table] = struct{}{}
	}
	m.mu.Unlock()

	for t := range touched {
		m.notify(t)
	}
	return nil
}

func (m *MemoryStore) Query(_ context.Context, q Query) ([]Item, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	s, ok := m.schemas[q.Table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, q.Table)
	}

	orderBy := q.RangeField
	if orderBy == "" && q.Index == "" {
		orderBy = s.SortKey
	}

	m.mu.RLock()
	var out []Item
	for _, item := range m.tables[q.Table] {
		if q.PartitionField != "" {
			if v, ok := stringAttr(item, q.PartitionField); !ok || v != q.PartitionValue {
				continue
			}
		}
		if q.RangeField != "" {
			v, ok := stringAttr(item, q.RangeField)
			if !ok {
				continue
			}
			if q.RangeStart != "" && v < q.RangeStart {
				continue
			}
			if q.RangeEnd != "" && v > q.RangeEnd {
				continue
			}
		}
		matched := true
		for _, f := range q.Filters {
			if !f.match(item) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, copyItem(item))
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, _ := stringAttr(out[i], orderBy)
		b, _ := stringAttr(out[j], orderBy)
		if a == b {
			pa, _ := stringAttr(out[i], s.PartitionKey)
			pb, _ := stringAttr(out[j], s.PartitionKey)
			a, b = pa, pb
		}
		if q.Descending {
			return a > b
		}
		return a < b
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

type memTx struct {
	store  *MemoryStore
	reads  map[Key]string // key -> version seen ("" when absent)
	writes map[Key]Item   // nil item means delete
	order  []Key
}

func (t *memTx) Get(ctx context.Context, key Key) (Item, error) {
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
	// the first observed version is the one the commit validates
	if _, ok := t.reads[key]; !ok {
		t.reads[key] = version(item)
	}
	return item, err
}

func (t *memTx) Put(key Key, item Item) {
	if _, ok := t.writes[key]; !ok {
		t.order = append(t.order, key)
	}
	t.writes[key] = copyItem(item)
}

func (t *memTx) Delete(key Key) {
	if _, ok := t.writes[key]; !ok {
		t.order = append(t.order, key)
	}
	t.writes[key] = nil
}

func (m *MemoryStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tx := &memTx{store: m, reads: map[Key]string{}, writes: map[Key]Item{}}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		committed, err := m.commit(tx)
		if err != nil {
			return err
		}
		if committed {
			return nil
		}
		backoff(ctx, attempt)
	}
	return ErrTxConflict
}

func (m *MemoryStore) commit(tx *memTx) (bool, error) {
	schemas := make(map[Key]Schema, len(tx.order))
	for _, k := range tx.order {
		s, err := m.schema(k)
		if err != nil {
			return false, err
		}
		schemas[k] = s
	}

	m.mu.Lock()
	for k, seen := range tx.reads {
		if version(m.tables[k.Table][memKey(k)]) != seen {
			m.mu.Unlock()
			return false, nil
		}
	}
	touched := map[string]struct{}{}
	for _, k := range tx.order {
		if item := tx.writes[k]; item != nil {
			m.put(schemas[k], k, item)
		} else {
			delete(m.tables[k.Table], memKey(k))
		}
		touched[k.Table] = struct{}{}
	}
	m.mu.Unlock()

	for t := range touched {
		m.notify(t)
	}
	return true, nil
}

// Changes returns a channel that receives a value after writes to table.
// Signals coalesce; call the returned func to stop.
func (m *MemoryStore) Changes(table string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	m.subMu.Lock()
	id := m.next
	m.next++
	if m.subs[table] == nil {
		m.subs[table] = map[int]chan struct{}{}
	}
	m.subs[table][id] = ch
	m.subMu.Unlock()

	return ch, func() {
		m.subMu.Lock()
		delete(m.subs[table], id)
		m.subMu.Unlock()
	}
}

func (m *MemoryStore) notify(table string) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs[table] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
