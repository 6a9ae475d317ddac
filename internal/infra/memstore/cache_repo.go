package memstore

import (
	"context"
	"time"

	"tttranscribe/internal/domain"
	"tttranscribe/internal/domain/model"
	"tttranscribe/internal/domain/ports/repository"
)

var _ repository.CacheRepository = (*CacheRepo)(nil)

type CacheRepo struct {
	store *Store[model.CacheEntry]
}

func NewCacheRepo() *CacheRepo {
	return &CacheRepo{store: NewStore[model.CacheEntry]()}
}

func (r *CacheRepo) Get(_ context.Context, key string) (*model.CacheEntry, error) {
	e, ok := r.store.Get(key)
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return &e, nil
}

func (r *CacheRepo) Put(_ context.Context, entry *model.CacheEntry) error {
	if entry == nil || entry.Key == "" {
		return domain.ErrInvalidInput
	}
	r.store.Put(entry.Key, *entry)
	return nil
}

func (r *CacheRepo) Delete(_ context.Context, key string) error {
	r.store.Delete(key)
	return nil
}

func (r *CacheRepo) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	return r.store.DeleteFunc(func(_ string, e model.CacheEntry) bool {
		return e.Expired(now)
	}), nil
}
