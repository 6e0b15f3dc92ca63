// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are mapped to HTTP responses via fail(). They give clients a stable,
// machine-readable taxonomy next to the human-readable message:
//
//   - Generic codes (bad_request, unauthorized, not_found) mirror HTTP status
//     semantics.
//   - Ledger codes (unknown_task, not_all_done) name business rule rejections
//     that the status alone cannot convey.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "not_all_done",
//	  "message": "finish every task on today's list first"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"

	// Ledger:
	ErrCodeUnknownTask = "unknown_task"
	ErrCodeNotAllDone  = "not_all_done"
)
