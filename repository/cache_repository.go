package repository

import (
	"context"
	"time"
)

// CacheRepository stores computed results under opaque keys. A miss is not
// an error.
type CacheRepository interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}
