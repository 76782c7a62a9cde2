// Package unmatched keeps payments that matched no debt until someone triages them.
package unmatched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/debtbook/internal/models"
	"github.com/fatflowers/debtbook/internal/platform/store"
	"github.com/fatflowers/debtbook/pkg/logctx"
	"github.com/fatflowers/debtbook/pkg/tool"
	"github.com/fatflowers/debtbook/pkg/types"
)

const ReasonNoMatch = "no debt or payer account matched account token"

var ErrNotFound = errors.New("unmatched transaction not found")

type Service struct {
	store store.Store
	log   *zap.SugaredLogger
	now   func() time.Time
}

func New(st store.Store, log *zap.SugaredLogger) *Service {
	return &Service{store: st, log: log, now: time.Now}
}

type RecordRequest struct {
	Payment      *types.ParsedPayment
	RawText      string
	PaymentLogID string
	Reason       string
	// ProcessedAt stands in for the payment time when the message had none.
	ProcessedAt time.Time
}

// Record appends one entry flagged for review.
func (s *Service) Record(ctx context.Context, req *RecordRequest) (*models.UnmatchedTransaction, error) {
	if req == nil || req.Payment == nil {
		return nil, fmt.Errorf("nil payment")
	}
	p := req.Payment
	occurredAt := req.ProcessedAt
	if p.OccurredAt != nil {
		occurredAt = *p.OccurredAt
	}
	reason := req.Reason
	if reason == "" {
		reason = ReasonNoMatch
	}
	item := &models.UnmatchedTransaction{
		ID:           tool.GenerateUUIDV7(),
		PaymentLogID: req.PaymentLogID,
		ReferenceID:  p.ReferenceID,
		AccountToken: p.AccountToken,
		Amount:       p.Amount,
		PayerPhone:   p.PayerPhone,
		PayerName:    p.PayerName,
		OccurredAt:   occurredAt,
		RawText:      req.RawText,
		Reason:       reason,
		NeedsReview:  true,
	}
	if err := s.store.CreateUnmatched(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to record unmatched transaction: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("unmatched_recorded", "id", item.ID, "account_token", item.AccountToken, "amount", item.Amount.String())
	return item, nil
}

type ListRequest struct {
	NeedsReview bool `form:"needs_review" json:"needs_review"`
	From        int  `form:"from" json:"from"`
	Size        int  `form:"size" json:"size"`
}

type ListResponse struct {
	Items []*models.UnmatchedTransaction `json:"items"`
	Total int64                          `json:"total"`
}

// List returns the newest entries first.
func (s *Service) List(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	if req == nil {
		req = &ListRequest{}
	}
	items, total, err := s.store.ListUnmatched(ctx, &store.ListUnmatchedRequest{
		NeedsReview: req.NeedsReview, From: req.From, Size: req.Size,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list unmatched transactions: %w", err)
	}
	return &ListResponse{Items: items, Total: total}, nil
}

type ResolveRequest struct {
	ID         string `json:"-"`
	ResolvedBy string `json:"resolved_by" binding:"required"`
	Note       string `json:"note"`
}

// Resolve marks an entry as triaged. It does not apply the payment; whoever
// resolves it settles the money outside this engine.
func (s *Service) Resolve(ctx context.Context, req *ResolveRequest) (*models.UnmatchedTransaction, error) {
	if req == nil || req.ID == "" || req.ResolvedBy == "" {
		return nil, fmt.Errorf("id and resolved_by are required")
	}
	item, err := s.store.ResolveUnmatched(ctx, &store.ResolveUnmatchedRequest{
		ID: req.ID, ResolvedBy: req.ResolvedBy, Note: req.Note, ResolvedAt: s.now().UTC(),
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve unmatched transaction: %w", err)
	}
	return item, nil
}
