// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the per-gardener token-bucket limiter mounted on the
// API group after Auth. Each bucket is a golang.org/x/time/rate.Limiter keyed
// by user id (or client IP for anonymous traffic); idle buckets are swept
// every sweepEvery lookups.
//
// Idempotency-Key replays take a token like any other call: the ledger
// transaction runs again for them.
//
// The limiter is process-local.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	defaultBucketTTL = 10 * time.Minute
	sweepEvery       = 5000
)

// keyFunc maps a request to its bucket identity.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP buckets authenticated requests by user ("user:<id>") and the
// rest by client address ("ip:<addr>").
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if uid := userIDFromCtx(c); uid != "" {
			return "user:" + uid
		}
		return "ip:" + c.ClientIP()
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per key. Safe for concurrent use.
type RateLimiter struct {
	limit rate.Limit
	burst int
	keyFn keyFunc
	ttl   time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
	lookups uint64
}

// NewRateLimiter builds a limiter refilling rps tokens per second up to
// burst. A burst below 1 is raised to 1.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		ttl:     defaultBucketTTL,
		buckets: make(map[string]*bucket),
	}
}

// Len reports the number of live buckets.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// bucketFor returns the limiter for key, creating it on first use. Every
// sweepEvery lookups idle buckets are dropped first, so a stale bucket for
// key itself starts over full.
func (rl *RateLimiter) bucketFor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= sweepEvery {
		rl.sweep(now)
		rl.lookups = 0
	}

	if b, ok := rl.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}
	lim := rate.NewLimiter(rl.limit, rl.burst)
	rl.buckets[key] = &bucket{limiter: lim, lastSeen: now}
	return lim
}

// sweep removes buckets idle for at least ttl. Caller holds mu.
func (rl *RateLimiter) sweep(now time.Time) {
	for k, b := range rl.buckets {
		if now.Sub(b.lastSeen) >= rl.ttl {
			delete(rl.buckets, k)
		}
	}
}

// Handler enforces the limits. Rejected requests get 429 with the standard
// error envelope and a Retry-After (whole seconds, at least 1) derived from
// the bucket's refill rate.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now()
		key := rl.keyFn(c)
		lim := rl.bucketFor(key, now)
		if lim.AllowN(now, 1) {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(lim.Limit())))
		httpRateLimited.WithLabelValues(bucketKind(key)).Inc()
		LoggerFrom(c).Debug().Str("bucket", key).Msg("rate limited")
		abortError(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
	}
}

// retryAfterSeconds is the time to refill one token, rounded up and capped
// at an hour. A zero or unlimited rate reports the cap or 1 respectively.
func retryAfterSeconds(limit rate.Limit) int {
	const maxWait = 3600
	switch {
	case limit == rate.Inf:
		return 1
	case limit <= 0:
		return maxWait
	}
	secs := math.Ceil(1 / float64(limit))
	if secs < 1 {
		return 1
	}
	if secs > maxWait {
		return maxWait
	}
	return int(secs)
}

// bucketKind returns the namespace of a bucket key ("user", "ip") for metric
// labels.
func bucketKind(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "other"
}
