// Package store abstracts the key-value persistence the pipeline relies on:
// order/cart context, conversation sessions, the seen-message set and rate
// counters. Production uses Redis; tests inject the in-memory implementation.
package store

import (
	"context"
	"time"
)

// KV is the minimal key-value surface consumed by the typed stores. A ttl of
// zero means no expiry. Single operations are atomic; sequences of operations
// are not transactional.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	HGet(ctx context.Context, key, field string) (string, bool, error)
	HSet(ctx context.Context, key, field, value string) error

	ListAppend(ctx context.Context, key string, values ...string) error
	ListRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// SetAdd reports whether member was newly added, making mark-if-absent a
	// single atomic call.
	SetAdd(ctx context.Context, key, member string) (bool, error)
	SetContains(ctx context.Context, key, member string) (bool, error)

	// Incr increments a counter, applying ttl when the counter is created.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	Ping(ctx context.Context) error
}
