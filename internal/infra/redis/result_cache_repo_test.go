//go:build !integration

package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"tttranscribe/internal/domain"
	"tttranscribe/internal/domain/model"

	"github.com/go-redis/redis/v8"
)

type mockRedisClient struct {
	RedisClient
	data    map[string]string
	ttls    map[string]time.Duration
	GetFunc func(ctx context.Context, key string) (string, error)
}

func newMockRedisClient() *mockRedisClient {
	return &mockRedisClient{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	m.ttls[key] = expiration
	return nil
}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func TestResultCacheRepo(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("round trip with server-side ttl", func(t *testing.T) {
		cli := newMockRedisClient()
		repo := NewResultCacheRepo(cli)
		repo.now = func() time.Time { return now }

		entry := model.NewCacheEntry("abc", model.Outcome{Transcript: "hi", CharacterCount: 2}, now, 48*time.Hour)
		if err := repo.Put(ctx, entry); err != nil {
			t.Fatalf("put: %v", err)
		}
		if ttl := cli.ttls[resultKeyPrefix+"abc"]; ttl != 48*time.Hour {
			t.Errorf("expected 48h ttl, got %v", ttl)
		}
		got, err := repo.Get(ctx, "abc")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Outcome.Transcript != "hi" || !got.ExpiresAt.Equal(entry.ExpiresAt) {
			t.Errorf("unexpected entry %+v", got)
		}
		if err := repo.Delete(ctx, "abc"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := repo.Get(ctx, "abc"); !errors.Is(err, domain.ErrCacheMiss) {
			t.Fatalf("expected ErrCacheMiss after delete, got %v", err)
		}
	})

	t.Run("already expired entries are not written", func(t *testing.T) {
		cli := newMockRedisClient()
		repo := NewResultCacheRepo(cli)
		repo.now = func() time.Time { return now }
		_ = repo.Put(ctx, model.NewCacheEntry("old", model.Outcome{}, now.Add(-time.Hour), time.Minute))
		if len(cli.data) != 0 {
			t.Fatal("expected nothing stored")
		}
	})

	t.Run("backend errors pass through", func(t *testing.T) {
		cli := newMockRedisClient()
		cli.GetFunc = func(ctx context.Context, key string) (string, error) { return "", errors.New("i/o timeout") }
		repo := NewResultCacheRepo(cli)
		if _, err := repo.Get(ctx, "x"); err == nil || errors.Is(err, domain.ErrCacheMiss) {
			t.Fatalf("expected a backend error, got %v", err)
		}
	})
}
