package store

import (
	"context"
	"strings"
	"time"

	"roomie_server/logging"
)

// DefaultPollInterval is used when WatchOptions.Interval is zero.
const DefaultPollInterval = 2 * time.Second

// Subscription delivers full snapshots of a query result on C until Cancel
// is called or the parent context ends. Only the latest undelivered snapshot
// is kept. C is closed once the watch has stopped.
type Subscription[T any] struct {
	C <-chan T

	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops the watch and waits for C to be closed.
func (s *Subscription[T]) Cancel() {
	s.cancel()
	<-s.done
}

type WatchOptions struct {
	// Table is used for change notifications when the store supports them.
	Table    string
	Interval time.Duration
	Logger   logging.Logger
}

// Signature identifies a snapshot by the order and versions of its documents.
func Signature(items []Item) string {
	var b strings.Builder
	for _, item := range items {
		b.WriteString(version(item))
		b.WriteByte(';')
	}
	return b.String()
}

// Watch reruns load whenever the table changes (or every interval) and emits
// decode(items) whenever the result differs from the last emitted one. The
// first snapshot is always emitted.
func Watch[T any](
	ctx context.Context,
	s DocumentStore,
	opts WatchOptions,
	load func(ctx context.Context) ([]Item, error),
	decode func(items []Item) (T, error),
) *Subscription[T] {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan T, 1)
	sub := &Subscription[T]{C: out, cancel: cancel, done: make(chan struct{})}

	var changes <-chan struct{}
	stop := func() {}
	if n, ok := s.(Notifier); ok && opts.Table != "" {
		changes, stop = n.Changes(opts.Table)
	}

	go func() {
		defer close(sub.done)
		defer close(out)
		defer stop()

		ticker := time.NewTicker(opts.Interval)
		defer ticker.Stop()

		last := ""
		first := true
		for {
			items, err := load(ctx)
			switch {
			case err != nil:
				if ctx.Err() == nil {
					opts.Logger.Warn(ctx, "watch query failed", "table", opts.Table, "error", err)
				}
			case first || Signature(items) != last:
				snapshot, err := decode(items)
				if err != nil {
					opts.Logger.Warn(ctx, "watch decode failed", "table", opts.Table, "error", err)
					break
				}
				first = false
				last = Signature(items)
				// drop the undelivered snapshot, the new one supersedes it
				select {
				case <-out:
				default:
				}
				out <- snapshot
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-changes:
			}
		}
	}()

	return sub
}
