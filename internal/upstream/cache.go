package upstream

import (
	"context"
	"time"
)

// Cache stores raw upstream bodies by key. Put overwrites any previous value
// for the key; concurrent writers race benignly (last write wins).
type Cache interface {
	// Match returns the stored body and true when a fresh entry exists.
	Match(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, body []byte, ttl time.Duration) error
}

// Pruner is implemented by caches that need expired entries removed
// explicitly.
type Pruner interface {
	Prune(ctx context.Context) (int, error)
}
