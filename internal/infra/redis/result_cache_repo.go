package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tttranscribe/internal/domain"
	"tttranscribe/internal/domain/model"
	"tttranscribe/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
)

const resultKeyPrefix = "tttranscribe:result:"

var _ repository.CacheRepository = (*ResultCacheRepo)(nil)

// ResultCacheRepo keeps cache entries in Redis with a server-side TTL, so
// entries survive restarts and are shared between replicas.
type ResultCacheRepo struct {
	client RedisClient
	now    func() time.Time
}

func NewResultCacheRepo(client RedisClient) *ResultCacheRepo {
	return &ResultCacheRepo{client: client, now: time.Now}
}

func resultKey(key string) string { return resultKeyPrefix + key }

func (r *ResultCacheRepo) Get(ctx context.Context, key string) (*model.CacheEntry, error) {
	data, err := r.client.Get(ctx, resultKey(key))
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var e model.CacheEntry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return &e, nil
}

func (r *ResultCacheRepo) Put(ctx context.Context, entry *model.CacheEntry) error {
	if entry == nil || entry.Key == "" {
		return domain.ErrInvalidInput
	}
	ttl := entry.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, resultKey(entry.Key), data, ttl)
}

func (r *ResultCacheRepo) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, resultKey(key))
}

// DeleteExpired is a no-op: Redis expires keys itself.
func (r *ResultCacheRepo) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}
