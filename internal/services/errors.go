// Package services defines the business logic for daily task selection and
// the reward ledger. This file centralizes service-level error values so that
// they can be consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer. Duplicate completions and duplicate bonus claims are not
// errors; they resolve to a "no additional award" result.
package services

import "errors"

var (
	// ErrMissingUser is returned when an operation is invoked without a user id.
	ErrMissingUser = errors.New("missing user id")

	// ErrUnknownTask indicates that the task is not part of the user's list
	// for the requested day (or does not exist in the catalog at all).
	ErrUnknownTask = errors.New("task is not on today's list")

	// ErrNotAllDone is returned by a bonus claim while at least one of the
	// day's tasks is still open, or when the day has no tasks.
	ErrNotAllDone = errors.New("not all of today's tasks are done")
)
