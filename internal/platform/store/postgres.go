package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/debtbook/internal/models"
	"github.com/fatflowers/debtbook/pkg/logctx"
	"github.com/fatflowers/debtbook/pkg/types"
)

const pgUniqueViolation = "23505"

type GormStore struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewGormStore(db *gorm.DB, log *zap.SugaredLogger) *GormStore {
	return &GormStore{db: db, log: log}
}

func (s *GormStore) GetDebt(ctx context.Context, code string) (*models.Debt, error) {
	var debt models.Debt
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&debt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get debt %s: %w", code, err)
	}
	return &debt, nil
}

func (s *GormStore) GetDebts(ctx context.Context, codes []string) ([]*models.Debt, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var debts []*models.Debt
	if err := s.db.WithContext(ctx).Where("code IN ?", codes).Find(&debts).Error; err != nil {
		return nil, fmt.Errorf("failed to get debts: %w", err)
	}
	return debts, nil
}

func (s *GormStore) GetPayerAccount(ctx context.Context, phone string) (*models.PayerAccount, error) {
	var acc models.PayerAccount
	if err := s.db.WithContext(ctx).Where("phone = ?", phone).First(&acc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payer account %s: %w", phone, err)
	}
	return &acc, nil
}

func (s *GormStore) GetProcessedReference(ctx context.Context, referenceID string) (*models.ProcessedReference, error) {
	var ref models.ProcessedReference
	if err := s.db.WithContext(ctx).Where("reference_id = ?", referenceID).First(&ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get processed reference %s: %w", referenceID, err)
	}
	return &ref, nil
}

// CommitAllocation runs every conditional debt update and the reference insert in
// one transaction. A stale version or a duplicate reference rolls everything back.
func (s *GormStore) CommitAllocation(ctx context.Context, c *AllocationCommit) error {
	if c == nil || (len(c.Debts) == 0 && c.Reference == nil) {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range c.Debts {
			res := tx.Model(&models.Debt{}).
				Where("code = ? AND version = ?", u.Debt.Code, u.ExpectedVersion).
				Updates(map[string]any{
					"paid_amount":      u.Debt.PaidAmount,
					"remaining_amount": u.Debt.RemainingAmount,
					"status":           u.Debt.Status,
					"last_payment_at":  u.Debt.LastPaymentAt,
					"version":          u.Debt.Version,
				})
			if res.Error != nil {
				return fmt.Errorf("failed to update debt %s: %w", u.Debt.Code, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("debt %s at version %d: %w", u.Debt.Code, u.ExpectedVersion, ErrVersionConflict)
			}
		}
		if c.Reference != nil {
			if err := tx.Create(c.Reference).Error; err != nil {
				if isDuplicateKey(err) {
					return fmt.Errorf("reference %s: %w", c.Reference.ReferenceID, ErrDuplicateReference)
				}
				return fmt.Errorf("failed to record processed reference: %w", err)
			}
		}
		return nil
	})
}

func (s *GormStore) CreatePaymentLog(ctx context.Context, log *models.PaymentLog) error {
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to create payment log: %w", err)
	}
	return nil
}

// filtersAnd combines multiple CommonFilter into a single clause.Expression
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

func (s *GormStore) ScanPaymentLogs(ctx context.Context, req *ScanRequest) ([]*models.PaymentLog, int64, error) {
	if req == nil {
		return nil, 0, fmt.Errorf("nil request")
	}
	from, size := normalizePage(req.From, req.Size)

	tx := s.db.WithContext(ctx).Model(&models.PaymentLog{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count payment logs: %w", err)
	}

	sortBy := req.SortBy
	if !sortablePaymentLogColumns[sortBy] {
		sortBy = "created_at"
	}
	q := tx.Limit(size).Offset(from).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: sortBy}, Desc: req.SortOrder != "asc"}}})

	var rows []*models.PaymentLog
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list payment logs: %w", err)
	}
	return rows, total, nil
}

func (s *GormStore) CreateUnmatched(ctx context.Context, item *models.UnmatchedTransaction) error {
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("failed to create unmatched transaction: %w", err)
	}
	return nil
}

func (s *GormStore) ListUnmatched(ctx context.Context, req *ListUnmatchedRequest) ([]*models.UnmatchedTransaction, int64, error) {
	if req == nil {
		req = &ListUnmatchedRequest{}
	}
	from, size := normalizePage(req.From, req.Size)

	tx := s.db.WithContext(ctx).Model(&models.UnmatchedTransaction{})
	if req.NeedsReview {
		tx = tx.Where("needs_review = ?", true)
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count unmatched transactions: %w", err)
	}
	var rows []*models.UnmatchedTransaction
	if err := tx.Order("created_at desc").Limit(size).Offset(from).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list unmatched transactions: %w", err)
	}
	return rows, total, nil
}

func (s *GormStore) ResolveUnmatched(ctx context.Context, req *ResolveUnmatchedRequest) (*models.UnmatchedTransaction, error) {
	var item models.UnmatchedTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", req.ID).First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load unmatched transaction: %w", err)
		}
		item.NeedsReview = false
		item.ResolvedAt = &req.ResolvedAt
		item.ResolvedBy = &req.ResolvedBy
		if req.Note != "" {
			item.ResolutionNote = &req.Note
		}
		if err := tx.Save(&item).Error; err != nil {
			return fmt.Errorf("failed to resolve unmatched transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("unmatched_resolved", "id", item.ID, "resolved_by", req.ResolvedBy)
	return &item, nil
}

// isDuplicateKey matches gorm.ErrDuplicatedKey, which is what fires for a
// connection from db.NewDB (TranslateError on). The pgconn code check is the
// path taken by a *gorm.DB opened without TranslateError. Keep both.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
