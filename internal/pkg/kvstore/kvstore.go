package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist or has expired.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is a pluggable key-value store with TTL semantics. Implementations
// must be safe for concurrent use. It is injected into the components that
// need short-lived shared state instead of a module-level mutable map.
type Store interface {
	// Set stores value under key with the given TTL. A zero TTL means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// SetNX stores value only if key is absent, returning true if it was set.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Del removes key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error
}
