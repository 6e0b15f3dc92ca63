// Package handlers provides the HTTP handlers for the garden ledger API.
//
// Every failure is answered with ErrorResponse and a stable code from
// errors.go:
//
//	HTTP/1.1 422 Unprocessable Entity
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "unknown_task",
//	  "message": "task is not on today's list"
//	}
//
// Successful calls return the resource itself, e.g. a wallet:
//
//	{ "primary_balance": 12, "bonus_balance": 1, "lifetime_earned": 40 }
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-garden-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID; quote it when reporting a problem.
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Machine-readable code, see errors.go.
	Code string `json:"code" example:"unknown_task"`
	// Safe to show to users. Never carries internal error text.
	Message string `json:"message" example:"task is not on today's list"`
}

// fail aborts with the error envelope.
func fail(c *gin.Context, status int, code, msg string) {
	failWith(c, status, code, msg, nil)
}

// failWith aborts with the error envelope. For 5xx the cause is logged with
// the request-scoped logger and attached to the gin context; it never
// reaches the client.
func failWith(c *gin.Context, status int, code, msg string, cause error) {
	rid := middleware.RequestIDFrom(c)
	if rid == "" {
		rid = c.Writer.Header().Get("X-Request-ID")
	}

	if status >= http.StatusInternalServerError {
		ev := middleware.LoggerFrom(c).Error().Int("status", status).Str("code", code)
		if cause != nil {
			_ = c.Error(cause)
			ev = ev.Err(cause)
		}
		ev.Msg("api error")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{RequestID: rid, Code: code, Message: msg})
}

// Fail lets the router answer NoRoute/NoMethod with the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
