package repository

import (
	"context"
	"time"

	"tttranscribe/internal/domain/model"
)

// CacheRepository stores result cache entries keyed by normalized key.
// Get returns domain.ErrCacheMiss when there is no entry.
type CacheRepository interface {
	Get(ctx context.Context, key string) (*model.CacheEntry, error)
	Put(ctx context.Context, entry *model.CacheEntry) error
	Delete(ctx context.Context, key string) error
	// DeleteExpired removes entries past their expiry and returns how many.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
