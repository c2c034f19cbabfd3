// Package store keeps serialized session state in an external cache.
//
// Implementations never lock on behalf of callers. Read-modify-write cycles should go
// through CompareAndPut with the bytes returned by Get.
package store

import (
	"context"
	"time"
)

// KeepTTL passed to Put overwrites a value without touching its remaining lifetime.
const KeepTTL time.Duration = 0

// Store is a byte oriented key/value cache with absolute expiry.
type Store interface {
	// Get returns the value and true, or false when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put overwrites the value. A positive ttl starts a new lifetime, KeepTTL preserves the current one.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// CompareAndPut overwrites the value only if the stored bytes equal old, preserving the TTL.
	// It reports false when the key is absent or holds something else.
	CompareAndPut(ctx context.Context, key string, old, value []byte) (bool, error)
}
