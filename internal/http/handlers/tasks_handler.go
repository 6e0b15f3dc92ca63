// Task HTTP handlers.
//
// This file exposes REST endpoints for the daily task list:
//   - GET  /tasks/today           (today's selection with done flags)
//   - POST /tasks/{id}/complete   (record a completion and credit the wallet)
//   - POST /tasks/bonus           (claim the all-done bonus)
//
// Handlers are transport-thin: they resolve the authenticated user, call the
// selector or ledger with the current time, and translate sentinel errors to
// stable codes. "Today" is decided by the services in the configured zone.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-garden-backend/internal/domain"
	"github.com/tbourn/go-garden-backend/internal/http/middleware"
	"github.com/tbourn/go-garden-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// TaskSelector computes a user's list for a day.
type TaskSelector interface {
	TodayTasks(ctx context.Context, userID string, day time.Time) (*services.TodayList, error)
}

// Ledger records completions and bonus claims and reads balances.
//
// Implementations must be safe for concurrent use; *services.LedgerService is
// the production implementation.
type Ledger interface {
	CompleteTask(ctx context.Context, userID, taskID string, day time.Time) (*services.Completion, error)
	ClaimAllDoneBonus(ctx context.Context, userID string, day time.Time) (*services.BonusClaim, error)
	GetWallet(ctx context.Context, userID string) (*domain.Wallet, error)
	History(ctx context.Context, userID string, page, pageSize int) ([]domain.TaskCompletion, int64, error)
}

//
// Handler wiring
//

// Handlers groups the task and wallet endpoints.
type Handlers struct {
	selector TaskSelector
	ledger   Ledger
	now      func() time.Time
}

// New constructs and returns a Handlers instance bound to the given services.
func New(selector TaskSelector, ledger Ledger) *Handlers {
	return &Handlers{selector: selector, ledger: ledger, now: time.Now}
}

// currentUser returns the id set by middleware.Auth. When the route was
// mounted without Auth it writes a 401 and returns false.
func currentUser(c *gin.Context) (string, bool) {
	uid := middleware.UserID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return "", false
	}
	return uid, true
}

// failLedger maps service errors to the error envelope.
func failLedger(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrMissingUser):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
	case errors.Is(err, services.ErrUnknownTask):
		fail(c, http.StatusUnprocessableEntity, ErrCodeUnknownTask, "task is not on today's list")
	case errors.Is(err, services.ErrNotAllDone):
		fail(c, http.StatusConflict, ErrCodeNotAllDone, "finish every task on today's list first")
	default:
		failWith(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error", err)
	}
}

//
// Handlers
//

// TodayTasks godoc
// @ID          getTodayTasks
// @Summary     Today's tasks
// @Description Returns the user's task selection for the current day with done flags,
// @Description today's earnings against the daily cap, and the bonus state.
// @Tags        Tasks
// @Produce     json
// @Security    BearerAuth
//
// @Param       X-User-ID  header  string  false  "User id (only when header auth is enabled)"  example(gardener-42)
//
// @Success     200  {object}  services.TodayList
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /tasks/today [get]
func (h *Handlers) TodayTasks(c *gin.Context) {
	uid, okUser := currentUser(c)
	if !okUser {
		return
	}

	list, err := h.selector.TodayTasks(c.Request.Context(), uid, h.now())
	if err != nil {
		failLedger(c, err)
		return
	}
	ok(c, http.StatusOK, list)
}

// CompleteTask godoc
// @ID          completeTask
// @Summary     Complete a task
// @Description Marks a task from today's list as done and credits its reward, limited by
// @Description the daily earning cap. Completing the same task again the same day is not an
// @Description error: it returns the amount credited the first time with already_completed=true.
// @Tags        Tasks
// @Produce     json
// @Security    BearerAuth
//
// @Param       X-User-ID        header  string  false  "User id (only when header auth is enabled)"  example(gardener-42)
// @Param       Idempotency-Key  header  string  false  "Key for safe client retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    string  true   "Task id"  example(water_plants)
//
// @Success     200  {object}  services.Completion
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     422  {object}  handlers.ErrorResponse  "Task not on today's list"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /tasks/{id}/complete [post]
func (h *Handlers) CompleteTask(c *gin.Context) {
	uid, okUser := currentUser(c)
	if !okUser {
		return
	}
	taskID := strings.TrimSpace(c.Param("id"))
	if taskID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "task id required")
		return
	}

	res, err := h.ledger.CompleteTask(c.Request.Context(), uid, taskID, h.now())
	if err != nil {
		failLedger(c, err)
		return
	}

	if !res.AlreadyCompleted {
		middleware.SetAwarded(c, res.Awarded)
	}
	middleware.LoggerFrom(c).Info().
		Str("task_id", taskID).
		Int64("awarded", res.Awarded).
		Bool("already_completed", res.AlreadyCompleted).
		Msg("task completed")
	ok(c, http.StatusOK, res)
}

// ClaimBonus godoc
// @ID          claimBonus
// @Summary     Claim the all-done bonus
// @Description Credits the bonus currency once per day after every task on today's list
// @Description is done. A repeated claim returns awarded_bonus=0 with already_claimed=true.
// @Tags        Tasks
// @Produce     json
// @Security    BearerAuth
//
// @Param       X-User-ID        header  string  false  "User id (only when header auth is enabled)"  example(gardener-42)
// @Param       Idempotency-Key  header  string  false  "Key for safe client retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
//
// @Success     200  {object}  services.BonusClaim
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     409  {object}  handlers.ErrorResponse  "Tasks still open"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /tasks/bonus [post]
func (h *Handlers) ClaimBonus(c *gin.Context) {
	uid, okUser := currentUser(c)
	if !okUser {
		return
	}

	res, err := h.ledger.ClaimAllDoneBonus(c.Request.Context(), uid, h.now())
	if err != nil {
		failLedger(c, err)
		return
	}

	if !res.AlreadyClaimed {
		middleware.SetAwarded(c, res.Awarded)
	}
	middleware.LoggerFrom(c).Info().
		Int64("awarded", res.Awarded).
		Bool("already_claimed", res.AlreadyClaimed).
		Msg("bonus claimed")
	ok(c, http.StatusOK, res)
}
