// Wallet HTTP handlers.
//
// This file exposes read-only ledger endpoints:
//   - GET /wallet           (current balances)
//   - GET /tasks/history    (completion records, paginated, ETag support)
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-garden-backend/internal/domain"
	"github.com/tbourn/go-garden-backend/internal/repo"
	"github.com/tbourn/go-garden-backend/internal/services"
	"github.com/tbourn/go-garden-backend/internal/utils"
)

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// HistoryResponse wraps a page of completion records.
type HistoryResponse struct {
	Completions []domain.TaskCompletion `json:"completions"`
	Pagination  Pagination              `json:"pagination"`
}

// GetWallet godoc
// @ID          getWallet
// @Summary     Wallet balances
// @Description Returns the user's primary and bonus balances. Users without any award
// @Description yet get zeros.
// @Tags        Wallet
// @Produce     json
// @Security    BearerAuth
//
// @Param       X-User-ID  header  string  false  "User id (only when header auth is enabled)"  example(gardener-42)
//
// @Success     200  {object}  domain.Wallet
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /wallet [get]
func (h *Handlers) GetWallet(c *gin.Context) {
	uid, okUser := currentUser(c)
	if !okUser {
		return
	}

	w, err := h.ledger.GetWallet(c.Request.Context(), uid)
	if err != nil {
		failLedger(c, err)
		return
	}
	ok(c, http.StatusOK, w)
}

// History godoc
// @ID          listHistory
// @Summary     Completion history
// @Description Returns the user's completion records, newest day first. Supports
// @Description conditional requests via a weak ETag.
// @Tags        Wallet
// @Produce     json
// @Security    BearerAuth
//
// @Param       X-User-ID  header  string  false  "User id (only when header auth is enabled)"  example(gardener-42)
// @Param       page       query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.HistoryResponse
// @Success     304  "Not modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /tasks/history [get]
func (h *Handlers) History(c *gin.Context) {
	ctx := c.Request.Context()
	uid, okUser := currentUser(c)
	if !okUser {
		return
	}
	page, pageSize := utils.PageParams(c.Query("page"), c.Query("page_size"))

	// ETag pre-check (best effort). Completions are append-only, so count
	// and newest timestamp identify the user's history.
	if svc, okSvc := h.ledger.(*services.LedgerService); okSvc && svc.DB != nil {
		count, maxTS, err := repo.CompletionsStats(ctx, svc.DB, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			etag := fmt.Sprintf(`W/"history:%d:%d:%d:%d"`, count, ts, page, pageSize)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.ledger.History(ctx, uid, page, pageSize)
	if err != nil {
		failLedger(c, err)
		return
	}

	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, HistoryResponse{
		Completions: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}
