// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the production access log. It never
// logs bodies. Query strings, header values and the user id pass through a
// redactor that rewrites UUIDs, e-mail addresses and phone numbers; the
// credential headers (Authorization, Cookie, Set-Cookie) and any configured
// extras are masked outright.
//
//	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
//	    MaskHeaders: []string{middleware.HeaderUserID},
//	}))
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures RedactingLogger.
type RedactOptions struct {
	// MaskHeaders lists extra header names (case-insensitive) whose values
	// are replaced with "[REDACTED]".
	MaskHeaders []string
}

// UUIDs go first so the loose phone pattern cannot eat their digit groups.
var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

var alwaysMasked = []string{"authorization", "cookie", "set-cookie"}

type redactor struct {
	masked map[string]struct{}
}

func newRedactor(extra []string) redactor {
	m := make(map[string]struct{}, len(alwaysMasked)+len(extra))
	for _, h := range alwaysMasked {
		m[h] = struct{}{}
	}
	for _, h := range extra {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			m[h] = struct{}{}
		}
	}
	return redactor{masked: m}
}

// text scrubs identifiers out of free-form values.
func (redactor) text(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// headers returns a loggable copy of h.
func (r redactor) headers(h map[string][]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := r.masked[strings.ToLower(k)]; ok {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = r.text(strings.Join(vv, ", "))
	}
	return out
}

// RedactingLogger logs one line per request with identifiers scrubbed and
// attaches the same request-scoped logger as Logger(). Level follows the
// status: error for 5xx, warn for 4xx, info otherwise.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	red := newRedactor(opts.MaskHeaders)

	return func(c *gin.Context) {
		start := time.Now()
		path := routeOf(c)

		rid := RequestIDFrom(c)
		if rid == "" {
			rid = c.GetHeader(requestIDHeader)
		}

		scoped := log.With().
			Str("request_id", rid).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		attachLogger(c, &scoped)

		headers := red.headers(c.Request.Header)
		query := red.text(truncate(c.Request.URL.RawQuery, maxQueryLogLength))

		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}

		ev = ev.
			Str("request_id", rid).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("user_id", red.text(userIDFromCtx(c)))
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
		ev.
			Str("query", query).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
