package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"time"

	"tttranscribe/internal/domain"
	"tttranscribe/internal/domain/model"
	"tttranscribe/internal/domain/ports/repository"
	"tttranscribe/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ ResultCache = (*resultCache)(nil)

// ResultCache memoizes successful outcomes per normalized input key.
type ResultCache interface {
	Get(ctx context.Context, inputKey string) (*model.Outcome, bool)
	Put(ctx context.Context, inputKey string, outcome model.Outcome) error
	// Sweep deletes expired entries and returns how many were removed.
	Sweep(ctx context.Context) (int, error)
}

type resultCache struct {
	repo repository.CacheRepository
	ttl  time.Duration
	now  func() time.Time
	log  *zerolog.Logger
}

func NewResultCache(repo repository.CacheRepository, ttl time.Duration, now func() time.Time, logger *zerolog.Logger) *resultCache {
	if now == nil {
		now = time.Now
	}
	l := logger.With().Str("component", "ResultCache").Logger()
	return &resultCache{repo: repo, ttl: ttl, now: now, log: &l}
}

// NormalizeKey maps equivalent input keys to the same cache key. Query and
// fragment are dropped, scheme and host are lowercased and a trailing slash is
// trimmed before hashing.
func NormalizeKey(inputKey string) string {
	s := strings.TrimSpace(inputKey)
	if u, err := url.Parse(s); err == nil && u.Host != "" {
		u.RawQuery = ""
		u.ForceQuery = false
		u.Fragment = ""
		u.RawFragment = ""
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = strings.ToLower(u.Host)
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
		s = u.String()
	} else {
		if i := strings.IndexAny(s, "?#"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimRight(s, "/")
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func (c *resultCache) Get(ctx context.Context, inputKey string) (*model.Outcome, bool) {
	key := NormalizeKey(inputKey)
	entry, err := c.repo.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed; treating as miss")
		}
		metrics.IncCacheRequest("result", "miss")
		return nil, false
	}
	if entry.Expired(c.now()) {
		if err := c.repo.Delete(ctx, key); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("delete expired entry")
		}
		metrics.IncCacheRequest("result", "expired")
		return nil, false
	}
	metrics.IncCacheRequest("result", "hit")
	out := entry.Outcome
	return &out, true
}

func (c *resultCache) Put(ctx context.Context, inputKey string, outcome model.Outcome) error {
	key := NormalizeKey(inputKey)
	return c.repo.Put(ctx, model.NewCacheEntry(key, outcome, c.now(), c.ttl))
}

func (c *resultCache) Sweep(ctx context.Context) (int, error) {
	n, err := c.repo.DeleteExpired(ctx, c.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.AddCacheSwept(n)
		c.log.Debug().Int("removed", n).Msg("swept expired cache entries")
	}
	return n, nil
}
