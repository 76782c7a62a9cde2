// Package store is the persistence boundary of the reconciliation engine. The
// engine only needs single-row reads, a few indexed queries and one atomic batch
// write; Store captures exactly that.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/fatflowers/debtbook/internal/models"
	"github.com/fatflowers/debtbook/pkg/types"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict means a debt changed between read and commit.
	ErrVersionConflict = errors.New("debt version conflict")
	// ErrDuplicateReference means the reference id was recorded by a concurrent commit.
	ErrDuplicateReference = errors.New("reference already processed")
)

// DebtUpdate is one conditional write: Debt holds the new state and is only
// written if the stored version still equals ExpectedVersion.
type DebtUpdate struct {
	Debt            *models.Debt
	ExpectedVersion int64
}

// AllocationCommit is written atomically: all debt updates and the processed
// reference land together or not at all.
type AllocationCommit struct {
	Debts []DebtUpdate
	// Reference is nil when the notification had no reference id.
	Reference *models.ProcessedReference
}

type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ListUnmatchedRequest struct {
	// NeedsReview restricts to untriaged rows when true.
	NeedsReview bool
	From        int
	Size        int
}

type ResolveUnmatchedRequest struct {
	ID         string
	ResolvedBy string
	Note       string
	ResolvedAt time.Time
}

type Store interface {
	GetDebt(ctx context.Context, code string) (*models.Debt, error)
	// GetDebts loads many debts in one read. Unknown codes are omitted.
	GetDebts(ctx context.Context, codes []string) ([]*models.Debt, error)
	GetPayerAccount(ctx context.Context, phone string) (*models.PayerAccount, error)
	GetProcessedReference(ctx context.Context, referenceID string) (*models.ProcessedReference, error)
	CommitAllocation(ctx context.Context, commit *AllocationCommit) error

	CreatePaymentLog(ctx context.Context, log *models.PaymentLog) error
	ScanPaymentLogs(ctx context.Context, req *ScanRequest) ([]*models.PaymentLog, int64, error)

	CreateUnmatched(ctx context.Context, item *models.UnmatchedTransaction) error
	ListUnmatched(ctx context.Context, req *ListUnmatchedRequest) ([]*models.UnmatchedTransaction, int64, error)
	ResolveUnmatched(ctx context.Context, req *ResolveUnmatchedRequest) (*models.UnmatchedTransaction, error)
}

const (
	defaultPageSize = 20
	maxPageSize     = 500
)

var sortablePaymentLogColumns = map[string]bool{
	"created_at": true,
	"amount":     true,
	"outcome":    true,
}

func normalizePage(from, size int) (int, int) {
	if from < 0 {
		from = 0
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return from, size
}
