// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements Idempotency-Key support for the ledger's POST
// endpoints. Completions and bonus claims are already idempotent per
// (user, task, day) and (user, day); the key adds client-side retry
// bookkeeping on top:
//   - the header is validated and stashed (GetIdempotencyKey)
//   - a previously recorded key marks the request as a replay (IsReplay)
//     and carries the stored award into the access log; replays still take
//     a rate-limit token
//   - after a successful response the key is recorded with the awarded
//     amount the handler reported (SetAwarded)
//
// Mount it after Auth so the user id is known.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the canonical request header that clients use to
// convey an idempotency key for unsafe operations (e.g., POST).
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderReplayed is set to "true" on responses to replayed keys.
const HeaderReplayed = "Idempotent-Replayed"

// Context keys used internally to stash idempotency state.
const (
	ctxKeyIdemKey     = "idem.key"
	ctxKeyIdemReplay  = "idem.replay"  // bool: key seen before
	ctxKeyIdemAwarded = "idem.awarded" // int64 reported by the handler or stored with the key
)

// GetIdempotencyKey returns the validated idempotency key stored in the Gin
// context by IdempotencyValidator. The second return value indicates presence.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the key was already recorded for this user and scope.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// SetAwarded lets a handler report the amount its operation credited so it
// is stored with the key.
func SetAwarded(c *gin.Context, awarded int64) {
	c.Set(ctxKeyIdemAwarded, awarded)
}

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. If nil, a conservative RFC7230-like
	// token pattern is used: ^[A-Za-z0-9._~\-:]+$
	Pattern *regexp.Regexp
	// TTL is passed to Record. Values <= 0 default to 24h.
	TTL time.Duration
}

// IdempotencyHit is what was stored for a key on its first success.
type IdempotencyHit struct {
	Awarded int64
	Status  int
}

// IdempotencyLookup returns the stored result for (userID, scope, key) if it
// is still valid at now, or nil. Errors do not block the request.
type IdempotencyLookup func(ctx context.Context, userID, scope, key string, now time.Time) (*IdempotencyHit, error)

// IdempotencyRecord persists a key after a successful (2xx) response.
type IdempotencyRecord func(ctx context.Context, userID, scope, key string, awarded int64, status int, ttl time.Duration) error

// IdempotencyScope names the operation a key belongs to: the matched route
// plus its :id parameter, e.g. "POST /api/v1/tasks/:id/complete#water_plants".
func IdempotencyScope(c *gin.Context) string {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	s := c.Request.Method + " " + path
	if id := c.Param("id"); id != "" {
		s += "#" + id
	}
	return s
}

// IdempotencyValidator validates the Idempotency-Key header (if present),
// marks replays found by lookup, and records fresh keys with record once the
// handler succeeded. Either function may be nil.
//
// Behavior:
//   - If header is absent: the middleware is a no-op.
//   - If header fails validation: responds 400 with a compact error body.
//   - If lookup finds the key: sets the replay flag, the stored award and
//     the Idempotent-Replayed response header.
//   - Record failures are logged and otherwise ignored.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup, record IdempotencyRecord) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			abortError(c, http.StatusBadRequest, "bad_idempotency_key", "invalid Idempotency-Key")
			return
		}

		c.Set(ctxKeyIdemKey, key)

		uid := userIDFromCtx(c)
		scope := IdempotencyScope(c)
		ctx := c.Request.Context()

		if lookup != nil && uid != "" {
			if hit, _ := lookup(ctx, uid, scope, key, time.Now().UTC()); hit != nil {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyIdemAwarded, hit.Awarded)
				c.Header(HeaderReplayed, "true")
			}
		}

		c.Next()

		status := c.Writer.Status()
		if record == nil || uid == "" || IsReplay(c) || status < 200 || status >= 300 {
			return
		}
		awarded, _ := c.Get(ctxKeyIdemAwarded)
		amt, _ := awarded.(int64)
		if err := record(ctx, uid, scope, key, amt, status, ttl); err != nil {
			LoggerFrom(c).Warn().Err(err).Str("scope", scope).Msg("idempotency record failed")
		}
	}
}

// userIDFromCtx extracts the user identifier set by Auth, or "".
func userIDFromCtx(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}
