package usecase

import (
	"math"
	"sync"
	"time"

	"tttranscribe/internal/domain/model"
	"tttranscribe/internal/domain/ports/repository"
	"tttranscribe/internal/infra/metrics"
)

// Compile-time check
var _ AdmissionController = (*tokenBucketAdmission)(nil)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed           bool
	RetryAfterSeconds int
}

// AdmissionController rate limits submissions per client identity.
type AdmissionController interface {
	TryAcquire(clientID string) Decision
}

type AdmissionOptions struct {
	Capacity        float64
	RefillPerMinute float64
	Exempt          []string
	Now             func() time.Time
}

type tokenBucketAdmission struct {
	mu      sync.Mutex
	buckets repository.BucketStore
	cap     float64
	rate    float64 // tokens per minute
	exempt  map[string]struct{}
	now     func() time.Time
}

func NewAdmissionController(buckets repository.BucketStore, opts AdmissionOptions) *tokenBucketAdmission {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ex := make(map[string]struct{}, len(opts.Exempt))
	for _, id := range opts.Exempt {
		ex[id] = struct{}{}
	}
	return &tokenBucketAdmission{
		buckets: buckets,
		cap:     opts.Capacity,
		rate:    opts.RefillPerMinute,
		exempt:  ex,
		now:     opts.Now,
	}
}

func (a *tokenBucketAdmission) TryAcquire(clientID string) Decision {
	if _, ok := a.exempt[clientID]; ok {
		metrics.IncAdmission("exempt")
		return Decision{Allowed: true}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	b := a.refill(clientID, now)
	if b.Tokens >= 1 {
		b.Tokens--
		a.buckets.Put(clientID, b)
		metrics.IncAdmission("allowed")
		return Decision{Allowed: true}
	}
	a.buckets.Put(clientID, b)
	metrics.IncAdmission("denied")
	return Decision{Allowed: false, RetryAfterSeconds: a.retryAfter(b.Tokens)}
}

// Tokens reports the current (refilled) token count for clientID.
func (a *tokenBucketAdmission) Tokens(clientID string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refill(clientID, a.now()).Tokens
}

func (a *tokenBucketAdmission) refill(clientID string, now time.Time) model.Bucket {
	b, ok := a.buckets.Get(clientID)
	if !ok {
		return model.Bucket{Tokens: a.cap, LastRefillAt: now}
	}
	if elapsed := now.Sub(b.LastRefillAt); elapsed > 0 {
		b.Tokens = math.Min(a.cap, b.Tokens+elapsed.Minutes()*a.rate)
		b.LastRefillAt = now
	}
	return b
}

func (a *tokenBucketAdmission) retryAfter(tokens float64) int {
	if a.rate <= 0 {
		return 60
	}
	secs := int(math.Ceil((1 - tokens) / a.rate * 60))
	if secs < 1 {
		secs = 1
	}
	return secs
}
