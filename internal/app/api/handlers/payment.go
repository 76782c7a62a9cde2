package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	parser "github.com/fatflowers/debtbook/internal/app/service/notification_parser"
	"github.com/fatflowers/debtbook/internal/app/service/reconciliation"
	"github.com/fatflowers/debtbook/pkg/response"
	"github.com/fatflowers/debtbook/pkg/types"
)

// Reconciler processes one raw payment notification.
type Reconciler interface {
	Process(ctx context.Context, raw string) *reconciliation.Result
}

// MessageParser extracts a payment without touching the ledger.
type MessageParser interface {
	Parse(raw string) (*types.ParsedPayment, error)
}

type SubmitNotificationRequest struct {
	Text string `json:"text" binding:"required"`
}

// UnmatchedData is returned with code 40400 so callers can show what was tried.
type UnmatchedData struct {
	AccountToken string  `json:"account_token"`
	ReferenceID  *string `json:"reference_id,omitempty"`
	UnmatchedID  string  `json:"unmatched_id"`
}

// @Summary      Submit payment notification
// @Description  Parses a payment SMS, applies it to the matching debt(s) and notifies the payer.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body SubmitNotificationRequest true "Raw notification text"
// @Success      200  {object}  handlers.RespReconcile
// @Failure      500  {object}  handlers.RespReconcile
// @Router       /api/v1/payments/notifications [post]
func ApiSubmitNotification(r Reconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SubmitNotificationRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
			msg := "text is required"
			if err != nil {
				msg = err.Error()
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, msg))
			return
		}

		res := r.Process(c.Request.Context(), req.Text)
		switch res.Category {
		case types.ErrorCategoryParseError:
			c.JSON(http.StatusOK, response.ErrorT(response.APIResponseCodeBadRequest, res))
		case types.ErrorCategoryUnmatched:
			c.JSON(http.StatusOK, response.ErrorT(response.APIResponseCodeUnmatched, &UnmatchedData{
				AccountToken: res.AccountToken,
				ReferenceID:  res.ReferenceID,
				UnmatchedID:  res.UnmatchedID,
			}))
		case types.ErrorCategorySystemError:
			c.JSON(http.StatusInternalServerError, response.ErrorT(response.APIResponseCodeError, res))
		default:
			// done, notify_failed and already_processed are all successful
			c.JSON(http.StatusOK, response.OKT(res))
		}
	}
}

type TestParseRequest struct {
	Text string `json:"text" binding:"required"`
}

type TestParseResponse struct {
	Payment *types.ParsedPayment `json:"payment,omitempty"`
	Reason  string               `json:"reason,omitempty"`
	Field   string               `json:"field,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// @Summary      Test parse
// @Description  Runs the parser only. Nothing is read from or written to the ledger.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body TestParseRequest true "Raw notification text"
// @Success      200  {object}  handlers.RespTestParse
// @Router       /api/v1/payments/test_parse [post]
func ApiTestParse(p MessageParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TestParseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		payment, err := p.Parse(req.Text)
		if err != nil {
			out := &TestParseResponse{Error: err.Error()}
			if pe, ok := parser.AsParseError(err); ok {
				out.Reason = pe.Reason
				out.Field = pe.Field
			}
			c.JSON(http.StatusOK, response.ErrorT(response.APIResponseCodeBadRequest, out))
			return
		}
		c.JSON(http.StatusOK, response.OKT(&TestParseResponse{Payment: payment}))
	}
}

func RegisterPaymentRoutes(r gin.IRouter, rec Reconciler, p MessageParser) {
	r.POST("/notifications", ApiSubmitNotification(rec))
	r.POST("/test_parse", ApiTestParse(p))
}
