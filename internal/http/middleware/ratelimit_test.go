package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/time/rate"
)

func TestKeyByUserOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")

	if got := KeyByUserOrIP()(c); got != "ip:203.0.113.9" {
		t.Fatalf("anonymous key = %q", got)
	}
	c.Set(userIDKey, "gardener-1")
	if got := KeyByUserOrIP()(c); got != "user:gardener-1" {
		t.Fatalf("user key = %q", got)
	}
}

func TestNewRateLimiter_RaisesBurstAndReusesBuckets(t *testing.T) {
	rl := NewRateLimiter(2, 0, KeyByUserOrIP())
	if rl.burst != 1 {
		t.Fatalf("burst = %d; want 1", rl.burst)
	}

	now := time.Now()
	first := rl.bucketFor("user:a", now)
	if again := rl.bucketFor("user:a", now); again != first {
		t.Fatalf("expected the same bucket for the same key")
	}
	if other := rl.bucketFor("user:b", now); other == first {
		t.Fatalf("expected a separate bucket per key")
	}
	if rl.Len() != 2 {
		t.Fatalf("Len = %d; want 2", rl.Len())
	}
}

func TestRateLimiter_SweepDropsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 1, KeyByUserOrIP())
	now := time.Now()

	rl.mu.Lock()
	rl.buckets["user:idle"] = &bucket{limiter: rate.NewLimiter(1, 1), lastSeen: now.Add(-2 * rl.ttl)}
	rl.buckets["user:busy"] = &bucket{limiter: rate.NewLimiter(1, 1), lastSeen: now}
	rl.lookups = sweepEvery - 1
	rl.mu.Unlock()

	_ = rl.bucketFor("user:new", now)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.buckets["user:idle"]; ok {
		t.Fatalf("idle bucket survived the sweep")
	}
	if _, ok := rl.buckets["user:busy"]; !ok {
		t.Fatalf("active bucket was swept")
	}
	if rl.lookups != 0 {
		t.Fatalf("lookup counter not reset: %d", rl.lookups)
	}
}

func TestRateLimiter_Handler_DeniesSecondCallAndReplays(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.5, 1, KeyByUserOrIP())
	base := testutil.ToFloat64(httpRateLimited.WithLabelValues("user"))

	newEngine := func(replay bool) *gin.Engine {
		r := gin.New()
		r.Use(func(c *gin.Context) {
			c.Set(requestIDKey, "rid-9")
			c.Set(userIDKey, "gardener-1")
			if replay {
				c.Set(ctxKeyIdemReplay, true)
			}
			c.Next()
		})
		r.Use(rl.Handler())
		r.POST("/tasks/:id/complete", func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}
	r := newEngine(false)

	do := func(r *gin.Engine) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/tasks/water/complete", nil))
		return w
	}

	if w := do(r); w.Code != http.StatusOK {
		t.Fatalf("first call: %d", w.Code)
	}
	w := do(r)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second call: %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("Retry-After = %q; want 2", got)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["code"] != "rate_limited" || body["request_id"] != "rid-9" {
		t.Fatalf("unexpected body: %v", body)
	}
	if got := testutil.ToFloat64(httpRateLimited.WithLabelValues("user")); got != base+1 {
		t.Fatalf("rate limited counter = %v; want %v", got, base+1)
	}

	// A replay draws from the same empty bucket.
	if w := do(newEngine(true)); w.Code != http.StatusTooManyRequests {
		t.Fatalf("replay: %d", w.Code)
	}
}

func Test_retryAfterSeconds(t *testing.T) {
	cases := []struct {
		limit rate.Limit
		want  int
	}{
		{rate.Inf, 1},
		{0, 3600},
		{10, 1},
		{1, 1},
		{0.25, 4},
		{0.0001, 3600},
	}
	for _, tc := range cases {
		if got := retryAfterSeconds(tc.limit); got != tc.want {
			t.Errorf("retryAfterSeconds(%v) = %d; want %d", tc.limit, got, tc.want)
		}
	}
}

func Test_bucketKind(t *testing.T) {
	for key, want := range map[string]string{
		"user:abc":     "user",
		"ip:127.0.0.1": "ip",
		"weird":        "other",
		":x":           "other",
	} {
		if got := bucketKind(key); got != want {
			t.Errorf("bucketKind(%q) = %q; want %q", key, got, want)
		}
	}
}
