// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for HTTP traffic. Labels are
// kept bounded:
//
//   - method: HTTP verb
//   - path:   the registered Gin route (e.g. /api/v1/tasks/:id/complete),
//     or the raw URL path when nothing matched
//   - status: numeric status code as a string
//
// Replayed Idempotency-Key requests are counted separately so client retry
// storms show up without scraping access logs.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// Status is left out to keep the histogram small.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// Task lists and wallet payloads are small; buckets stop at 256KiB.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Size of HTTP responses in bytes.",
			Buckets: prometheus.ExponentialBuckets(128, 4, 7), // 128B..512KiB
		},
		[]string{"method", "path"},
	)

	httpReplays = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_idempotent_replays_total",
			Help: "Requests whose Idempotency-Key had already been recorded.",
		},
		[]string{"method", "path"},
	)

	// Incremented by RateLimiter; bucket is "user" or "ip".
	httpRateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the per-identity rate limiter.",
		},
		[]string{"bucket"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize, httpReplays, httpRateLimited)
}

// Metrics returns a Gin middleware that instruments requests with Prometheus.
//
//	r := gin.New()
//	r.Use(middleware.Metrics())
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
//
// Replays are detected through IsReplay, so the idempotency middleware must
// run inside this one.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		// Size is -1 when nothing was written.
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
		if IsReplay(c) {
			httpReplays.WithLabelValues(method, path).Inc()
		}
	}
}
