package model

import "time"

// CacheEntry memoizes the outcome for one normalized input key.
type CacheEntry struct {
	Key       string
	Outcome   Outcome
	CachedAt  time.Time
	ExpiresAt time.Time
}

func NewCacheEntry(key string, outcome Outcome, now time.Time, ttl time.Duration) *CacheEntry {
	return &CacheEntry{
		Key:       key,
		Outcome:   outcome,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

// Expired is true once now is strictly past ExpiresAt.
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Bucket is the token-bucket state for one client identity.
type Bucket struct {
	Tokens       float64
	LastRefillAt time.Time
}
