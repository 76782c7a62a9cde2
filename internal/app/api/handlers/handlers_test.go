package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	parser "github.com/fatflowers/debtbook/internal/app/service/notification_parser"
	"github.com/fatflowers/debtbook/internal/app/service/payment_log"
	"github.com/fatflowers/debtbook/internal/app/service/reconciliation"
	"github.com/fatflowers/debtbook/internal/app/service/unmatched"
	"github.com/fatflowers/debtbook/internal/models"
	"github.com/fatflowers/debtbook/internal/platform/store"
	"github.com/fatflowers/debtbook/pkg/response"
	"github.com/fatflowers/debtbook/pkg/types"
)

type stubReconciler struct {
	res *reconciliation.Result
	got string
}

func (s *stubReconciler) Process(_ context.Context, raw string) *reconciliation.Result {
	s.got = raw
	s.res.Category = s.res.Outcome.Category()
	return s.res
}

type envelope struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    json.RawMessage          `json:"data"`
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, env
}

func paymentRouter(rec Reconciler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterPaymentRoutes(r.Group("/api/v1/payments"), rec, parser.New())
	return r
}

func TestApiSubmitNotification_Outcomes(t *testing.T) {
	cases := []struct {
		name    string
		outcome types.ReconcileOutcome
		status  int
		code    response.APIResponseCode
	}{
		{"done", types.ReconcileOutcomeDone, http.StatusOK, response.APIResponseCodeOK},
		{"notify failed", types.ReconcileOutcomeNotifyFailed, http.StatusOK, response.APIResponseCodeOK},
		{"already processed", types.ReconcileOutcomeAlreadyProcessed, http.StatusOK, response.APIResponseCodeOK},
		{"parse failed", types.ReconcileOutcomeParseFailed, http.StatusOK, response.APIResponseCodeBadRequest},
		{"unmatched", types.ReconcileOutcomeUnmatched, http.StatusOK, response.APIResponseCodeUnmatched},
		{"system error", types.ReconcileOutcomeSystemError, http.StatusInternalServerError, response.APIResponseCodeError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := &stubReconciler{res: &reconciliation.Result{Outcome: c.outcome, AccountToken: "777"}}
			status, env := do(t, paymentRouter(rec), http.MethodPost, "/api/v1/payments/notifications", map[string]string{"text": "msg"})
			require.Equal(t, c.status, status)
			require.Equal(t, c.code, env.Code)
			require.Equal(t, "msg", rec.got)
		})
	}
}

func TestApiSubmitNotification_UnmatchedCarriesAccountToken(t *testing.T) {
	rec := &stubReconciler{res: &reconciliation.Result{
		Outcome: types.ReconcileOutcomeUnmatched, AccountToken: "777", ReferenceID: lo.ToPtr("QWE123"), UnmatchedID: "u-1",
	}}
	_, env := do(t, paymentRouter(rec), http.MethodPost, "/api/v1/payments/notifications", map[string]string{"text": "msg"})

	var data UnmatchedData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, "777", data.AccountToken)
	require.Equal(t, "u-1", data.UnmatchedID)
}

func TestApiSubmitNotification_EmptyText(t *testing.T) {
	rec := &stubReconciler{res: &reconciliation.Result{}}
	_, env := do(t, paymentRouter(rec), http.MethodPost, "/api/v1/payments/notifications", map[string]string{"text": ""})
	require.Equal(t, response.APIResponseCodeBadRequest, env.Code)
	require.Empty(t, rec.got)
}

func TestApiTestParse(t *testing.T) {
	r := paymentRouter(&stubReconciler{})

	_, env := do(t, r, http.MethodPost, "/api/v1/payments/test_parse",
		map[string]string{"text": "GT87HJ890 Confirmed. Ksh500.00 received from JOHN DOE 254712345678 Account Number 12345"})
	require.Equal(t, response.APIResponseCodeOK, env.Code)
	var ok TestParseResponse
	require.NoError(t, json.Unmarshal(env.Data, &ok))
	require.Equal(t, "12345", ok.Payment.AccountToken)
	require.True(t, ok.Payment.Amount.Equal(decimal.NewFromInt(500)))

	_, env = do(t, r, http.MethodPost, "/api/v1/payments/test_parse", map[string]string{"text": "Ksh500.00 received"})
	require.Equal(t, response.APIResponseCodeBadRequest, env.Code)
	var bad TestParseResponse
	require.NoError(t, json.Unmarshal(env.Data, &bad))
	require.Equal(t, parser.ReasonMissingField, bad.Reason)
	require.Equal(t, string(parser.FieldAccount), bad.Field)
}

type stubUnmatched struct {
	resolved *unmatched.ResolveRequest
}

func (s *stubUnmatched) List(_ context.Context, req *unmatched.ListRequest) (*unmatched.ListResponse, error) {
	items := []*models.UnmatchedTransaction{{ID: "u-1", AccountToken: "777", NeedsReview: true}}
	if !req.NeedsReview {
		items = append(items, &models.UnmatchedTransaction{ID: "u-0", AccountToken: "778"})
	}
	return &unmatched.ListResponse{Items: items, Total: int64(len(items))}, nil
}

func (s *stubUnmatched) Resolve(_ context.Context, req *unmatched.ResolveRequest) (*models.UnmatchedTransaction, error) {
	if req.ID != "u-1" {
		return nil, unmatched.ErrNotFound
	}
	s.resolved = req
	return &models.UnmatchedTransaction{ID: req.ID, ResolvedBy: lo.ToPtr(req.ResolvedBy)}, nil
}

type stubScanner struct{ req *store.ScanRequest }

func (s *stubScanner) Scan(_ context.Context, req *store.ScanRequest) (*payment_log.ScanResponse, error) {
	s.req = req
	return &payment_log.ScanResponse{Items: []*models.PaymentLog{{ID: "l-1", Outcome: types.ReconcileOutcomeDone}}, Total: 1}, nil
}

func adminRouter(mgr UnmatchedManager, scanner PaymentLogScanner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterAdminRoutes(r.Group("/api/v1/admin"), mgr, scanner)
	return r
}

func TestApiListUnmatched(t *testing.T) {
	r := adminRouter(&stubUnmatched{}, &stubScanner{})

	_, env := do(t, r, http.MethodGet, "/api/v1/admin/unmatched?needs_review=true&size=10", nil)
	require.Equal(t, response.APIResponseCodeOK, env.Code)
	var list unmatched.ListResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Equal(t, int64(1), list.Total)

	_, env = do(t, r, http.MethodGet, "/api/v1/admin/unmatched?size=abc", nil)
	require.Equal(t, response.APIResponseCodeBadRequest, env.Code)
}

func TestApiResolveUnmatched(t *testing.T) {
	mgr := &stubUnmatched{}
	r := adminRouter(mgr, &stubScanner{})

	_, env := do(t, r, http.MethodPost, "/api/v1/admin/unmatched/u-1/resolve", map[string]string{"resolved_by": "ops", "note": "refunded"})
	require.Equal(t, response.APIResponseCodeOK, env.Code)
	require.Equal(t, "u-1", mgr.resolved.ID)
	require.Equal(t, "refunded", mgr.resolved.Note)

	_, env = do(t, r, http.MethodPost, "/api/v1/admin/unmatched/u-9/resolve", map[string]string{"resolved_by": "ops"})
	require.Equal(t, response.APIResponseCodeNotFound, env.Code)

	_, env = do(t, r, http.MethodPost, "/api/v1/admin/unmatched/u-1/resolve", map[string]string{"note": "x"})
	require.Equal(t, response.APIResponseCodeBadRequest, env.Code)
}

func TestApiScanPaymentLogs(t *testing.T) {
	scanner := &stubScanner{}
	r := adminRouter(&stubUnmatched{}, scanner)

	body := map[string]any{
		"filters": []map[string]any{{"field": "outcome", "operator": "eq", "values": []any{"done"}}},
		"size":    5,
	}
	_, env := do(t, r, http.MethodPost, "/api/v1/admin/payment_logs", body)
	require.Equal(t, response.APIResponseCodeOK, env.Code)
	require.Equal(t, 5, scanner.req.Size)
	require.Equal(t, "outcome", scanner.req.Filters[0].Field)
}

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterHealthRoutes(r)
	status, env := do(t, r, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, response.APIResponseCodeOK, env.Code)
}
