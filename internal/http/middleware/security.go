// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders, the response hardening applied to every
// route. API responses are JSON only, so a locked-down Content-Security-Policy
// is sent everywhere except the prefixes listed in SecurityOptions.CSPSkip
// (the Swagger UI needs its own scripts and styles).
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// APIContentSecurityPolicy forbids every fetch and framing; JSON needs none.
const APIContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"

const defaultHSTSMaxAge = 180 * 24 * time.Hour

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS sends Strict-Transport-Security on HTTPS requests only.
	// Turn it on when TLS reaches the app or the proxy sets X-Forwarded-Proto.
	EnableHSTS bool
	HSTSMaxAge time.Duration // defaults to 180 days

	// NoStore sends Cache-Control: no-store (plus Pragma/Expires).
	NoStore bool

	// PerUser marks responses private and varies them on Authorization and
	// X-User-ID: task lists and wallets differ per gardener. ETag revalidation
	// keeps working. NoStore wins when both are set.
	PerUser bool

	// EnablePolicy adds Permissions-Policy and X-Permitted-Cross-Domain-Policies.
	EnablePolicy bool

	// CSP is sent as Content-Security-Policy unless the path starts with one
	// of CSPSkip. Empty disables the header.
	CSP     string
	CSPSkip []string
}

// SecurityHeaders returns the hardening middleware. Baseline headers on
// every response:
//
//	X-Content-Type-Options: nosniff
//	X-Frame-Options: DENY
//	Referrer-Policy: no-referrer
//
// X-Request-ID, when already set, is added to Access-Control-Expose-Headers
// so browser clients can quote it in bug reports.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	hsts := "max-age=" + strconv.Itoa(int(maxAge.Seconds())) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}
		if opt.CSP != "" && !hasAnyPrefix(c.Request.URL.Path, opt.CSPSkip) {
			h.Set("Content-Security-Policy", opt.CSP)
		}

		switch {
		case opt.NoStore:
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		case opt.PerUser:
			h.Set("Cache-Control", "private, no-cache")
			h.Add("Vary", "Authorization")
			h.Add("Vary", HeaderUserID)
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		if h.Get(requestIDHeader) != "" {
			exposeHeader(h, requestIDHeader)
		}

		c.Next()
	}
}

// exposeHeader appends name to Access-Control-Expose-Headers once.
func exposeHeader(h http.Header, name string) {
	const key = "Access-Control-Expose-Headers"
	cur := h.Get(key)
	switch {
	case cur == "":
		h.Set(key, name)
	case !strings.Contains(strings.ToLower(cur), strings.ToLower(name)):
		h.Set(key, cur+", "+name)
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// isHTTPS reports TLS on the connection or X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
