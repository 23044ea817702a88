// Package kv defines the key-value surface the session store is built
// on. Implementations live under internal/kv/<driver>/ (redis, memkv)
// and are exercised by the shared compliance suite in kvtest.
package kv

import (
	"context"
	"time"
)

// BatchGet describes one pipelined multi-key read: every key in Keys
// plus the newest ListCount elements of ListKey, fetched in a single
// round trip.
type BatchGet struct {
	Keys      []string
	ListKey   string
	ListCount int64
}

// BatchResult carries the outcome of a BatchGet. Values holds only the
// keys that were present; List is in storage order (newest first).
type BatchResult struct {
	Values map[string][]byte
	List   [][]byte
}

// Mutation is the commit half of an optimistic update: the new value
// for the watched key, its refreshed TTL, and any keys deleted in the
// same transaction (cache invalidation).
type Mutation struct {
	Value      []byte
	TTL        time.Duration
	Invalidate []string
}

// UpdateFunc computes a Mutation from the current value of the watched
// key. found is false when the key does not exist yet. Returning a nil
// Mutation aborts the update without error.
type UpdateFunc func(current []byte, found bool) (*Mutation, error)

// KV is the store client. All methods honor ctx deadlines. Absent keys
// surface as model.ErrNotFound; a lost optimistic race surfaces as
// model.ErrWriteConflict after a single cycle (retry policy belongs
// to the caller).
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value under key with ttl and deletes every invalidate
	// key in the same batch.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, invalidate ...string) error

	Delete(ctx context.Context, keys ...string) error

	Exists(ctx context.Context, key string) (bool, error)

	// BatchGet performs one pipelined multi-key read.
	BatchGet(ctx context.Context, req BatchGet) (*BatchResult, error)

	// PushCapped prepends value to listKey, trims the list to max
	// entries, resets its ttl and deletes every invalidate key, all as
	// one batch so no crash can leave an untrimmed or TTL-less list.
	PushCapped(ctx context.Context, listKey string, value []byte, max int64, ttl time.Duration, invalidate ...string) error

	// Range returns up to n elements of listKey in storage order
	// (newest first). n <= 0 means the whole list.
	Range(ctx context.Context, listKey string, n int64) ([][]byte, error)

	// Update runs one watch/read/commit cycle against key.
	Update(ctx context.Context, key string, fn UpdateFunc) error

	Ping(ctx context.Context) error
	Close() error
}
