package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/debtbook/internal/app/service/payment_log"
	"github.com/fatflowers/debtbook/internal/app/service/unmatched"
	"github.com/fatflowers/debtbook/internal/models"
	"github.com/fatflowers/debtbook/internal/platform/store"
	"github.com/fatflowers/debtbook/pkg/response"
	"github.com/fatflowers/debtbook/pkg/types"
)

type UnmatchedManager interface {
	List(ctx context.Context, req *unmatched.ListRequest) (*unmatched.ListResponse, error)
	Resolve(ctx context.Context, req *unmatched.ResolveRequest) (*models.UnmatchedTransaction, error)
}

type PaymentLogScanner interface {
	Scan(ctx context.Context, req *store.ScanRequest) (*payment_log.ScanResponse, error)
}

// @Summary      List unmatched transactions (Admin)
// @Description  Newest first. Pass needs_review=true to see only untriaged entries.
// @Tags         Admin
// @Produce      json
// @Param        from          query  int   false  "offset"
// @Param        size          query  int   false  "page size"
// @Param        needs_review  query  bool  false  "only untriaged"
// @Success      200  {object}  handlers.RespListUnmatched
// @Router       /api/v1/admin/unmatched [get]
func ApiListUnmatched(mgr UnmatchedManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req unmatched.ListRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := mgr.List(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Resolve unmatched transaction (Admin)
// @Description  Marks an unmatched transaction as triaged. The payment itself is not applied.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id       path  string                     true  "unmatched transaction id"
// @Param        request  body  unmatched.ResolveRequest  true  "resolver and note"
// @Success      200  {object}  handlers.RespUnmatched
// @Router       /api/v1/admin/unmatched/{id}/resolve [post]
func ApiResolveUnmatched(mgr UnmatchedManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req unmatched.ResolveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		req.ID = c.Param("id")
		item, err := mgr.Resolve(c.Request.Context(), &req)
		if errors.Is(err, unmatched.ErrNotFound) {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, err.Error()))
			return
		}
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(item))
	}
}

type ScanPaymentLogsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

// @Summary      Scan payment logs (Admin)
// @Description  Retrieves a paginated and filterable list of the payment audit trail.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ScanPaymentLogsRequest true "filters, pagination and sorting"
// @Success      200  {object}  handlers.RespScanPaymentLogs
// @Router       /api/v1/admin/payment_logs [post]
func ApiScanPaymentLogs(scanner PaymentLogScanner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ScanPaymentLogsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := scanner.Scan(c.Request.Context(), &store.ScanRequest{
			Filters: req.Filters, From: req.From, Size: req.Size, SortBy: req.SortBy, SortOrder: req.SortOrder,
		})
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminRoutes(r gin.IRouter, mgr UnmatchedManager, scanner PaymentLogScanner) {
	r.GET("/unmatched", ApiListUnmatched(mgr))
	r.POST("/unmatched/:id/resolve", ApiResolveUnmatched(mgr))
	r.POST("/payment_logs", ApiScanPaymentLogs(scanner))
}
