// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds the correlation and logging pieces:
//
//   - RequestID() reuses a sane inbound X-Request-ID or mints a UUID.
//   - Logger() writes the debug-mode access log. Production uses
//     RedactingLogger (redact_logger.go); both attach the same request-scoped
//     zerolog.Logger so handlers and services log with the request id.
//   - Recovery() turns panics into the standard JSON error envelope.
//   - abortError() is the envelope writer shared by every middleware that
//     rejects a request (auth, idempotency, rate limiting).
//
// Mount order: RequestID, then a logger, then Recovery.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"

	// maxRequestIDLen bounds inbound ids; longer or non-printable values are
	// replaced rather than echoed into logs and headers.
	maxRequestIDLen   = 128
	maxQueryLogLength = 2048
)

// RequestID attaches a correlation id to every request. An inbound
// X-Request-ID is kept when it is short and printable ASCII; anything else is
// replaced with a fresh UUIDv4.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if !validRequestID(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// RequestIDFrom returns the id set by RequestID, or "".
func RequestIDFrom(c *gin.Context) string {
	v, _ := c.Get(requestIDKey)
	return asString(v)
}

func validRequestID(s string) bool {
	if s == "" || len(s) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x21 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// Logger writes one structured line per request. Alongside the usual
// method/route/status/latency it records the ledger outcome when a handler
// reported one: the task id from the route, the amount awarded and whether
// the call was an Idempotency-Key replay.
//
// Level: error on 5xx or gin errors, warn on 4xx, info otherwise.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := routeOf(c)

		l := log.With().
			Str("request_id", RequestIDFrom(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		attachLogger(c, &l)

		c.Next()

		ev := levelFor(&l, c)
		ev = withLedgerFields(ev, c)
		ev.
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
			Int64("bytes_in", c.Request.ContentLength).
			Int("status", c.Writer.Status()).
			Int("bytes_out", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// levelFor picks the event level for a finished request.
func levelFor(l *zerolog.Logger, c *gin.Context) *zerolog.Event {
	status := c.Writer.Status()
	switch {
	case len(c.Errors) > 0:
		return l.Error().Str("errors", c.Errors.String())
	case status >= 500:
		return l.Error()
	case status >= 400:
		return l.Warn()
	default:
		return l.Info()
	}
}

// withLedgerFields adds user, task and award details that handlers and the
// idempotency middleware left on the context.
func withLedgerFields(ev *zerolog.Event, c *gin.Context) *zerolog.Event {
	if uid := userIDFromCtx(c); uid != "" {
		ev = ev.Str("user_id", uid)
	}
	if id := c.Param("id"); id != "" {
		ev = ev.Str("task_id", id)
	}
	if v, ok := c.Get(ctxKeyIdemAwarded); ok {
		if amt, ok := v.(int64); ok {
			ev = ev.Int64("awarded", amt)
		}
	}
	if IsReplay(c) {
		ev = ev.Bool("replay", true)
	}
	return ev
}

// Recovery converts a panic into a 500 with the standard error envelope and
// logs the stack. When the handler already wrote a response only the status
// is forced.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			abortError(c, http.StatusInternalServerError, "internal_error", "internal server error")
		}()
		c.Next()
	}
}

// abortError stops the chain with the JSON error envelope used across the API.
func abortError(c *gin.Context, status int, code, message string) {
	rid := RequestIDFrom(c)
	if rid != "" {
		c.Header(requestIDHeader, rid)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": rid,
		"code":       code,
		"message":    message,
	})
}

// LoggerFrom returns the request-scoped logger, or the global logger when no
// access-log middleware ran. Never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// attachLogger makes l reachable from gin handlers (LoggerFrom) and from
// services (zerolog.Ctx on the request context).
func attachLogger(c *gin.Context, l *zerolog.Logger) {
	c.Set(loggerKey, l)
	c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
}

// routeOf returns the matched route pattern, or the raw path for 404s.
func routeOf(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// truncate cuts s to max bytes plus an ellipsis; max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
