package fleet

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// tokenBucket is a capacity-1 bucket refilled at a configurable rate.
// Unlike a general-purpose limiter it only ever needs to answer
// "is there a token right now", so refill is computed lazily on
// tryConsume rather than via a background ticker.
type tokenBucket struct {
	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	updatedAt  time.Time
}

func newTokenBucket(refillRate float64, now time.Time) *tokenBucket {
	return &tokenBucket{
		capacity:   1,
		refillRate: refillRate,
		tokens:     1,
		updatedAt:  now,
	}
}

func (b *tokenBucket) tryConsume(now time.Time) bool {
	elapsed := now.Sub(b.updatedAt).Seconds()
	if elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+elapsed*b.refillRate)
		b.updatedAt = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// TokenBucketRegistry maps a node-restart identity to its rate
// limiter. It is only ever touched from the reconciler goroutine,
// so it carries no internal locking.
type TokenBucketRegistry struct {
	refillRate float64
	buckets    map[string]*tokenBucket
	now        func() time.Time
}

// NewTokenBucketRegistry builds a registry refilling at rate, a string
// of the form "N/unit" where unit is one of s, m, h (e.g. "1/m" is one
// token per 60 seconds).
func NewTokenBucketRegistry(rate string) (*TokenBucketRegistry, error) {
	perSecond, err := parseRate(rate)
	if err != nil {
		return nil, err
	}
	return &TokenBucketRegistry{
		refillRate: perSecond,
		buckets:    make(map[string]*tokenBucket),
		now:        time.Now,
	}, nil
}

func parseRate(rate string) (float64, error) {
	n, unit, found := strings.Cut(rate, "/")
	if !found {
		return 0, fmt.Errorf("fleet: invalid rate %q, want \"N/unit\"", rate)
	}
	count, err := strconv.ParseFloat(n, 64)
	if err != nil {
		return 0, fmt.Errorf("fleet: invalid rate %q: %w", rate, err)
	}
	var seconds float64
	switch unit {
	case "s":
		seconds = 1
	case "m":
		seconds = 60
	case "h":
		seconds = 3600
	default:
		return 0, fmt.Errorf("fleet: invalid rate %q: unknown unit %q", rate, unit)
	}
	return count / seconds, nil
}

// getOrCreate returns the bucket for key, creating it (full) on first
// use.
func (r *TokenBucketRegistry) getOrCreate(key string) *tokenBucket {
	b, ok := r.buckets[key]
	if !ok {
		b = newTokenBucket(r.refillRate, r.now())
		r.buckets[key] = b
	}
	return b
}

// TryConsume reports whether key has a token available, consuming it
// if so. The bucket is created on first use.
func (r *TokenBucketRegistry) TryConsume(key string) bool {
	return r.getOrCreate(key).tryConsume(r.now())
}

// Forget evicts key's bucket: eviction happens on disable and on a
// non-rate-limited restart.
func (r *TokenBucketRegistry) Forget(key string) {
	delete(r.buckets, key)
}
