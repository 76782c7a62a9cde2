package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/fatflowers/debtbook/internal/models"
)

// MemoryStore keeps everything in process. It honours the same conditional-write
// and atomic-batch contract as GormStore.
type MemoryStore struct {
	mu         sync.RWMutex
	debts      map[string]*models.Debt
	payers     map[string]*models.PayerAccount
	references map[string]*models.ProcessedReference
	logs       []*models.PaymentLog
	unmatched  []*models.UnmatchedTransaction

	// beforeCommit, when set, runs inside CommitAllocation before any write.
	beforeCommit func(*AllocationCommit) error
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		debts:      map[string]*models.Debt{},
		payers:     map[string]*models.PayerAccount{},
		references: map[string]*models.ProcessedReference{},
		now:        time.Now,
	}
}

// PutDebt inserts or replaces a debt. The engine itself never creates debts.
func (m *MemoryStore) PutDebt(d *models.Debt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = m.now()
	}
	m.debts[cp.Code] = &cp
}

func (m *MemoryStore) PutPayerAccount(a *models.PayerAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payers[a.Phone] = clonePayer(a)
}

// BeforeCommit installs a hook that can fail or observe a commit.
func (m *MemoryStore) BeforeCommit(fn func(*AllocationCommit) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beforeCommit = fn
}

func (m *MemoryStore) GetDebt(ctx context.Context, code string) (*models.Debt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.debts[code]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryStore) GetDebts(ctx context.Context, codes []string) ([]*models.Debt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Debt, 0, len(codes))
	for _, code := range lo.Uniq(codes) {
		if d, ok := m.debts[code]; ok {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) GetPayerAccount(ctx context.Context, phone string) (*models.PayerAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.payers[phone]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePayer(a), nil
}

func (m *MemoryStore) GetProcessedReference(ctx context.Context, referenceID string) (*models.ProcessedReference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.references[referenceID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) CommitAllocation(ctx context.Context, c *AllocationCommit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c == nil || (len(c.Debts) == 0 && c.Reference == nil) {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.beforeCommit != nil {
		if err := m.beforeCommit(c); err != nil {
			return err
		}
	}
	// validate everything first so a failure leaves state untouched
	for _, u := range c.Debts {
		cur, ok := m.debts[u.Debt.Code]
		if !ok || cur.Version != u.ExpectedVersion {
			return fmt.Errorf("debt %s at version %d: %w", u.Debt.Code, u.ExpectedVersion, ErrVersionConflict)
		}
	}
	if c.Reference != nil {
		if _, ok := m.references[c.Reference.ReferenceID]; ok {
			return fmt.Errorf("reference %s: %w", c.Reference.ReferenceID, ErrDuplicateReference)
		}
	}

	now := m.now()
	for _, u := range c.Debts {
		cur := m.debts[u.Debt.Code]
		next := *cur
		next.PaidAmount = u.Debt.PaidAmount
		next.RemainingAmount = u.Debt.RemainingAmount
		next.Status = u.Debt.Status
		next.LastPaymentAt = u.Debt.LastPaymentAt
		next.Version = u.Debt.Version
		next.UpdatedAt = now
		m.debts[u.Debt.Code] = &next
	}
	if c.Reference != nil {
		ref := *c.Reference
		ref.DebtCodes = slices.Clone(c.Reference.DebtCodes)
		if ref.CreatedAt.IsZero() {
			ref.CreatedAt = now
		}
		m.references[ref.ReferenceID] = &ref
	}
	return nil
}

func (m *MemoryStore) CreatePaymentLog(ctx context.Context, log *models.PaymentLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *log
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = m.now()
	}
	m.logs = append(m.logs, &cp)
	return nil
}

func (m *MemoryStore) ScanPaymentLogs(ctx context.Context, req *ScanRequest) ([]*models.PaymentLog, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if req == nil {
		return nil, 0, fmt.Errorf("nil request")
	}
	from, size := normalizePage(req.From, req.Size)

	m.mu.RLock()
	matched := lo.Filter(m.logs, func(l *models.PaymentLog, _ int) bool {
		fields := l.FilterFields()
		for _, f := range req.Filters {
			if !f.Match(fields) {
				return false
			}
		}
		return true
	})
	m.mu.RUnlock()

	asc := req.SortOrder == "asc"
	sort.SliceStable(matched, func(i, j int) bool {
		if asc {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return page(matched, from, size), int64(len(matched)), nil
}

func (m *MemoryStore) CreateUnmatched(ctx context.Context, item *models.UnmatchedTransaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *item
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = m.now()
	}
	cp.UpdatedAt = cp.CreatedAt
	m.unmatched = append(m.unmatched, &cp)
	return nil
}

func (m *MemoryStore) ListUnmatched(ctx context.Context, req *ListUnmatchedRequest) ([]*models.UnmatchedTransaction, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if req == nil {
		req = &ListUnmatchedRequest{}
	}
	from, size := normalizePage(req.From, req.Size)

	m.mu.RLock()
	rows := lo.Filter(m.unmatched, func(u *models.UnmatchedTransaction, _ int) bool {
		return !req.NeedsReview || u.NeedsReview
	})
	rows = lo.Map(rows, func(u *models.UnmatchedTransaction, _ int) *models.UnmatchedTransaction {
		cp := *u
		return &cp
	})
	m.mu.RUnlock()

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	return page(rows, from, size), int64(len(rows)), nil
}

func (m *MemoryStore) ResolveUnmatched(ctx context.Context, req *ResolveUnmatchedRequest) (*models.UnmatchedTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := lo.Find(m.unmatched, func(u *models.UnmatchedTransaction) bool { return u.ID == req.ID })
	if !ok {
		return nil, ErrNotFound
	}
	item.NeedsReview = false
	item.ResolvedAt = lo.ToPtr(req.ResolvedAt)
	item.ResolvedBy = lo.ToPtr(req.ResolvedBy)
	if req.Note != "" {
		item.ResolutionNote = lo.ToPtr(req.Note)
	}
	item.UpdatedAt = m.now()
	cp := *item
	return &cp, nil
}

// Debt returns a snapshot of one debt, or nil.
func (m *MemoryStore) Debt(code string) *models.Debt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.debts[code]; ok {
		cp := *d
		return &cp
	}
	return nil
}

// PaymentLogs returns a snapshot of the audit trail in insertion order.
func (m *MemoryStore) PaymentLogs() []*models.PaymentLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.logs)
}

// UnmatchedTransactions returns a snapshot in insertion order.
func (m *MemoryStore) UnmatchedTransactions() []*models.UnmatchedTransaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.unmatched)
}

// ProcessedReferences returns the recorded reference ids.
func (m *MemoryStore) ProcessedReferences() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := lo.Keys(m.references)
	sort.Strings(ids)
	return ids
}

func clonePayer(a *models.PayerAccount) *models.PayerAccount {
	cp := *a
	cp.DebtCodes = slices.Clone(a.DebtCodes)
	return &cp
}

func page[T any](rows []T, from, size int) []T {
	if from >= len(rows) {
		return []T{}
	}
	end := min(from+size, len(rows))
	return rows[from:end]
}
