package handlers

import (
	"github.com/fatflowers/debtbook/internal/app/service/payment_log"
	"github.com/fatflowers/debtbook/internal/app/service/reconciliation"
	"github.com/fatflowers/debtbook/internal/app/service/unmatched"
	"github.com/fatflowers/debtbook/internal/models"
	"github.com/fatflowers/debtbook/pkg/response"
)

// RespReconcile wraps reconciliation.Result in the standard envelope.
type RespReconcile struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    reconciliation.Result    `json:"data"`
}

type RespTestParse struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    TestParseResponse        `json:"data"`
}

// RespListUnmatched wraps unmatched.ListResponse in the standard envelope.
type RespListUnmatched struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    unmatched.ListResponse   `json:"data"`
}

type RespUnmatched struct {
	Code    response.APIResponseCode    `json:"code"`
	Message string                      `json:"message"`
	Data    models.UnmatchedTransaction `json:"data"`
}

// RespScanPaymentLogs wraps payment_log.ScanResponse in the standard envelope.
type RespScanPaymentLogs struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    payment_log.ScanResponse `json:"data"`
}
