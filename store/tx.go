package store

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// backoff sleeps before retrying a conflicted transaction.
func backoff(ctx context.Context, attempt int) {
	d := time.Duration(attempt*5+rand.Intn(10)) * time.Millisecond
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Update reads the document at key inside a transaction, lets fn modify it
// and writes it back. fn receives nil when the document does not exist and
// may return nil to delete it.
func Update(ctx context.Context, s DocumentStore, key Key, fn func(item Item) (Item, error)) error {
	return s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		item, err := tx.Get(ctx, key)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		next, err := fn(item)
		if err != nil {
			return err
		}
		if next == nil {
			tx.Delete(key)
			return nil
		}
		tx.Put(key, next)
		return nil
	})
}
