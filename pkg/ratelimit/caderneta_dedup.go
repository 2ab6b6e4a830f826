// Package ratelimit guards the inbound webhook against redelivered and
// flooding messages.
package ratelimit

import (
	"context"
	"time"

	"caderneta_server/pkg/cache"
)

// Deduplicator remembers message ids for a window so that a redelivered
// webhook is processed once.
type Deduplicator struct {
	store  cache.Store
	window time.Duration
}

// NewDeduplicator remembers ids for window.
func NewDeduplicator(store cache.Store, window time.Duration) *Deduplicator {
	return &Deduplicator{store: store, window: window}
}

// Seen marks id and reports whether it had already been marked inside the
// window. An empty id is never considered seen.
func (d *Deduplicator) Seen(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	fresh, err := d.store.SetNX(ctx, "dedup:"+id, []byte{1}, d.window)
	if err != nil {
		return false, err
	}
	return !fresh, nil
}

// Forget clears id so a later delivery is processed again.
func (d *Deduplicator) Forget(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return d.store.Delete(ctx, "dedup:"+id)
}
