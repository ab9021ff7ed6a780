package ports

import (
	"context"
	"time"
)

// Cache returns ("", nil) on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// DecrIfPresent undoes one increment of a live counter. A missing or
	// expired key stays missing.
	DecrIfPresent(ctx context.Context, key string) (int64, error)
}
