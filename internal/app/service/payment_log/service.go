package payment_log

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fatflowers/debtbook/internal/models"
	"github.com/fatflowers/debtbook/internal/platform/store"
	"github.com/fatflowers/debtbook/pkg/logctx"
	"github.com/fatflowers/debtbook/pkg/tool"
)

type Service struct {
	store store.Store
	log   *zap.SugaredLogger
}

func New(st store.Store, log *zap.SugaredLogger) *Service { return &Service{store: st, log: log} }

// Save persists one audit entry synchronously. Nil input is ignored.
func (s *Service) Save(ctx context.Context, entry *models.PaymentLog) error {
	if entry == nil {
		return nil
	}
	if entry.ID == "" {
		entry.ID = tool.GenerateUUIDV7()
	}
	if entry.TraceID == "" {
		entry.TraceID = logctx.TraceID(ctx)
	}
	entry.Success = entry.Outcome.Success()
	if err := s.store.CreatePaymentLog(ctx, entry); err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("failed to save payment log", "id", entry.ID, "outcome", entry.Outcome, "err", err)
		return fmt.Errorf("failed to save payment log: %w", err)
	}
	return nil
}

type ScanResponse struct {
	Items []*models.PaymentLog `json:"items"`
	Total int64                `json:"total"`
}

func (s *Service) Scan(ctx context.Context, req *store.ScanRequest) (*ScanResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	for _, f := range req.Filters {
		if f == nil || f.Field == "" {
			return nil, fmt.Errorf("filter field is required")
		}
		if !f.Operator.Supported() {
			return nil, fmt.Errorf("unsupported filter operator %q", f.Operator)
		}
		if _, ok := filterableColumns[f.Field]; !ok {
			return nil, fmt.Errorf("field %q is not filterable", f.Field)
		}
	}
	items, total, err := s.store.ScanPaymentLogs(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to scan payment logs: %w", err)
	}
	return &ScanResponse{Items: items, Total: total}, nil
}

var filterableColumns = func() map[string]struct{} {
	m := map[string]struct{}{"created_at": {}, "amount": {}}
	for k := range (&models.PaymentLog{}).FilterFields() {
		m[k] = struct{}{}
	}
	return m
}()
