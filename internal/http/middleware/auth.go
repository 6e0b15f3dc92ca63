// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller's stable user id. Two sources are accepted:
//
//   - Authorization: Bearer <jwt>, HS256 signed with the configured secret.
//     The id is the "sub" claim; numeric "user_id" or "id" claims issued by
//     older session services are accepted as well.
//   - X-User-ID, only when explicitly allowed (local development, tests,
//     or a trusted gateway that already authenticated the caller).
//
// Requests without an id, or with one longer than MaxUserIDLen bytes, are
// rejected with 401 before any handler runs.
// The id is stored under the "userID" Gin context key.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// HeaderUserID carries a pre-authenticated user id when AuthOptions.AllowHeader is set.
const HeaderUserID = "X-User-ID"

// MaxUserIDLen matches the user_id columns of the ledger tables.
const MaxUserIDLen = 64

const userIDKey = "userID"

var (
	errNoSubject     = errors.New("token has no subject")
	errUserIDTooLong = fmt.Errorf("user id longer than %d bytes", MaxUserIDLen)
)

// AuthOptions configures Auth.
type AuthOptions struct {
	// JWTSecret verifies bearer tokens. Empty disables bearer auth.
	JWTSecret []byte
	// AllowHeader trusts X-User-ID.
	AllowHeader bool
}

// Auth returns a middleware that requires a user id on every request.
func Auth(opts AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid, ok := userFromBearer(c, opts.JWTSecret); ok {
			c.Set(userIDKey, uid)
			c.Next()
			return
		}
		if opts.AllowHeader {
			if uid := strings.TrimSpace(c.GetHeader(HeaderUserID)); uid != "" && len(uid) <= MaxUserIDLen {
				c.Set(userIDKey, uid)
				c.Next()
				return
			}
		}

		abortError(c, http.StatusUnauthorized, "unauthorized", "authentication required")
	}
}

// UserID returns the id stored by Auth, or "" when the request is anonymous.
func UserID(c *gin.Context) string {
	return userIDFromCtx(c)
}

func userFromBearer(c *gin.Context, secret []byte) (string, bool) {
	if len(secret) == 0 {
		return "", false
	}
	h := c.GetHeader("Authorization")
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	uid, err := ParseUserToken(secret, strings.TrimSpace(h[len(prefix):]))
	if err != nil {
		LoggerFrom(c).Debug().Err(err).Msg("bearer token rejected")
		return "", false
	}
	return uid, true
}

// ParseUserToken verifies an HS256 token and extracts the user id.
func ParseUserToken(secret []byte, token string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	uid := subjectOf(claims)
	switch {
	case uid == "":
		return "", errNoSubject
	case len(uid) > MaxUserIDLen:
		return "", errUserIDTooLong
	}
	return uid, nil
}

func subjectOf(claims jwt.MapClaims) string {
	if sub, err := claims.GetSubject(); err == nil && strings.TrimSpace(sub) != "" {
		return strings.TrimSpace(sub)
	}
	for _, k := range []string{"user_id", "id"} {
		switch v := claims[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

// SignUserToken issues an HS256 token whose subject is userID. Used by
// tooling and tests; sessions are issued elsewhere in production.
func SignUserToken(secret []byte, userID string, claims jwt.MapClaims) (string, error) {
	mc := jwt.MapClaims{"sub": userID}
	for k, v := range claims {
		mc[k] = v
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(secret)
}
