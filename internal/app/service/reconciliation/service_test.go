package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/debtbook/internal/app/service/idempotency"
	"github.com/fatflowers/debtbook/internal/app/service/ledger"
	parser "github.com/fatflowers/debtbook/internal/app/service/notification_parser"
	"github.com/fatflowers/debtbook/internal/app/service/payment_log"
	"github.com/fatflowers/debtbook/internal/app/service/unmatched"
	"github.com/fatflowers/debtbook/internal/models"
	"github.com/fatflowers/debtbook/internal/platform/sms"
	"github.com/fatflowers/debtbook/internal/platform/store"
	"github.com/fatflowers/debtbook/pkg/config"
	"github.com/fatflowers/debtbook/pkg/types"
)

type sentMessage struct {
	phone string
	text  string
}

type stubSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *stubSender) Send(_ context.Context, phone, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{phone: phone, text: text})
	return s.err
}

func (s *stubSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// blockingSender holds every send until the caller's context ends.
type blockingSender struct{}

func (blockingSender) Send(ctx context.Context, _, _ string) error {
	<-ctx.Done()
	return fmt.Errorf("%w: %w", sms.ErrSendFailed, ctx.Err())
}

func newTestService(t *testing.T, st *store.MemoryStore, sender sms.Sender, tweaks ...func(*config.ReconcileConfig)) *Service {
	t.Helper()
	cfg := &config.Config{Reconcile: config.ReconcileConfig{
		CountryCode:       "254",
		TZOffsetHours:     3,
		CurrencyLabel:     "Ksh",
		StoreTimeout:      time.Second,
		NotifyTimeout:     time.Second,
		MaxCommitAttempts: 3,
	}}
	for _, tweak := range tweaks {
		tweak(&cfg.Reconcile)
	}
	log := zap.NewNop().Sugar()
	return New(Params{
		Config:     cfg,
		Parser:     parser.NewFromConfig(cfg),
		Resolver:   ledger.NewResolver(st, cfg, log),
		Guard:      idempotency.NewGuard(st),
		Store:      st,
		Sender:     sender,
		PaymentLog: payment_log.New(st, log),
		Unmatched:  unmatched.New(st, log),
		Logger:     log,
	})
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func putDebt(st *store.MemoryStore, code, principal, paid string, created time.Time) {
	p, pd := d(principal), d(paid)
	remaining := decimal.Max(decimal.Zero, p.Sub(pd))
	st.PutDebt(&models.Debt{
		Code:            code,
		PrincipalAmount: p,
		PaidAmount:      pd,
		RemainingAmount: remaining,
		Status:          types.DebtStatusFor(pd, remaining),
		PayerPhone:      "254712345678",
		CreatedAt:       created,
	})
}

const gt87 = "GT87HJ890 Confirmed. Ksh500.00 received from JOHN DOE 254712345678 on 5/3/24 at 10:15 AM Account Number 12345"

func TestProcess_EndToEndSingleDebt(t *testing.T) {
	st := store.NewMemoryStore()
	putDebt(st, "12345", "500", "0", time.Now())
	sender := &stubSender{}

	res := newTestService(t, st, sender).Process(context.Background(), gt87)

	require.Equal(t, types.ReconcileOutcomeDone, res.Outcome)
	require.Equal(t, types.ErrorCategoryNone, res.Category)
	require.True(t, res.Idempotent)
	require.True(t, res.Notified)
	require.Len(t, res.Affected, 1)
	require.True(t, res.OutstandingBalance.IsZero())

	debt := st.Debt("12345")
	require.Equal(t, types.DebtStatusPaid, debt.Status)
	require.True(t, debt.RemainingAmount.IsZero())
	require.True(t, debt.PaidAmount.Equal(d("500")))
	require.True(t, debt.Consistent())
	require.NotNil(t, debt.LastPaymentAt)
	require.Equal(t, time.Date(2024, 3, 5, 7, 15, 0, 0, time.UTC), debt.LastPaymentAt.UTC())

	require.Equal(t, []string{"GT87HJ890"}, st.ProcessedReferences())
	require.Equal(t, 1, sender.count())
	require.Equal(t, "254712345678", sender.sent[0].phone)
	assert.Contains(t, sender.sent[0].text, "Ksh 500.00")

	logs := st.PaymentLogs()
	require.Len(t, logs, 1)
	require.Equal(t, res.PaymentLogID, logs[0].ID)
	require.Equal(t, types.ReconcileOutcomeDone, logs[0].Outcome)
	require.True(t, logs[0].Success)
	require.True(t, logs[0].Notified)
}

func TestProcess_DuplicateReferenceNeverReapplies(t *testing.T) {
	st := store.NewMemoryStore()
	putDebt(st, "12345", "1000", "0", time.Now())
	sender := &stubSender{}
	svc := newTestService(t, st, sender)

	first := svc.Process(context.Background(), gt87)
	require.Equal(t, types.ReconcileOutcomeDone, first.Outcome)

	second := svc.Process(context.Background(), gt87)
	require.Equal(t, types.ReconcileOutcomeAlreadyProcessed, second.Outcome)
	require.Equal(t, types.ErrorCategoryAlreadyProcessed, second.Category)
	require.True(t, second.Outcome.Success())

	require.True(t, st.Debt("12345").PaidAmount.Equal(d("500")))
	require.Equal(t, 1, sender.count())
	require.Len(t, st.PaymentLogs(), 2)
}

func TestProcess_PayerDebtSetOldestFirst(t *testing.T) {
	st := store.NewMemoryStore()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	putDebt(st, "201", "300", "0", t0)
	putDebt(st, "202", "500", "0", t0.Add(time.Hour))
	st.PutPayerAccount(&models.PayerAccount{Phone: "254712345678", DebtCodes: []string{"201", "202"}})
	sender := &stubSender{}

	raw := "QK12AB34CD Confirmed. Ksh700.00 received from JOHN DOE 254712345678 on 5/3/24 at 10:15 AM Account Number 0712345678"
	res := newTestService(t, st, sender).Process(context.Background(), raw)

	require.Equal(t, types.ReconcileOutcomeDone, res.Outcome)
	require.True(t, res.Excess.IsZero())
	require.True(t, res.Applied.Equal(d("700")))
	require.True(t, res.OutstandingBalance.Equal(d("100")))

	require.Equal(t, types.DebtStatusPaid, st.Debt("201").Status)
	second := st.Debt("202")
	require.Equal(t, types.DebtStatusPartiallyPaid, second.Status)
	require.True(t, second.RemainingAmount.Equal(d("100")))
	require.Equal(t, "254712345678", sender.sent[0].phone)
}

func TestProcess_ExcessIsReportedNotCredited(t *testing.T) {
	st := store.NewMemoryStore()
	putDebt(st, "301", "200", "0", time.Now())
	st.PutPayerAccount(&models.PayerAccount{Phone: "254712345678", DebtCodes: []string{"301"}})

	raw := "QK99ZZ11 Confirmed. Ksh250.00 received from JOHN DOE 254712345678 Account 254712345678"
	res := newTestService(t, st, &stubSender{}).Process(context.Background(), raw)

	require.Equal(t, types.ReconcileOutcomeDone, res.Outcome)
	require.True(t, res.Excess.Equal(d("50")))
	require.True(t, st.Debt("301").PaidAmount.Equal(d("200")))
	require.True(t, st.PaymentLogs()[0].Excess.Equal(d("50")))
}

func TestProcess_UnmatchedRecordsOnceWithoutMutation(t *testing.T) {
	st := store.NewMemoryStore()
	putDebt(st, "12345", "500", "0", time.Now())
	sender := &stubSender{}

	raw := "XY12ZZ34 Confirmed. Ksh250.00 received from JANE 254799999999 Account Number 777"
	res := newTestService(t, st, sender).Process(context.Background(), raw)

	require.Equal(t, types.ReconcileOutcomeUnmatched, res.Outcome)
	require.Equal(t, types.ErrorCategoryUnmatched, res.Category)
	require.Equal(t, "777", res.AccountToken)
	require.NotEmpty(t, res.UnmatchedID)

	items := st.UnmatchedTransactions()
	require.Len(t, items, 1)
	require.Equal(t, unmatched.ReasonNoMatch, items[0].Reason)
	require.Equal(t, res.PaymentLogID, items[0].PaymentLogID)
	require.True(t, items[0].NeedsReview)

	require.True(t, st.Debt("12345").PaidAmount.IsZero())
	require.Empty(t, st.ProcessedReferences())
	require.Zero(t, sender.count())
	require.Len(t, st.PaymentLogs(), 1)
}

func TestProcess_ParseFailure(t *testing.T) {
	st := store.NewMemoryStore()
	res := newTestService(t, st, &stubSender{}).Process(context.Background(), "GT87HJ890 Confirmed. Ksh500.00 received from JOHN DOE")

	require.Equal(t, types.ReconcileOutcomeParseFailed, res.Outcome)
	require.Equal(t, types.ErrorCategoryParseError, res.Category)
	require.Contains(t, res.Error, parser.ReasonMissingField)

	logs := st.PaymentLogs()
	require.Len(t, logs, 1)
	require.False(t, logs[0].Success)
	require.NotNil(t, logs[0].Error)
}

func TestProcess_NotifyFailureKeepsFinancialOutcome(t *testing.T) {
	st := store.NewMemoryStore()
	putDebt(st, "12345", "800", "0", time.Now())
	sender := &stubSender{err: sms.ErrSendFailed}

	res := newTestService(t, st, sender).Process(context.Background(), gt87)

	require.Equal(t, types.ReconcileOutcomeNotifyFailed, res.Outcome)
	require.True(t, res.Outcome.Success())
	require.False(t, res.Notified)
	require.True(t, st.Debt("12345").PaidAmount.Equal(d("500")))
	require.Equal(t, []string{"GT87HJ890"}, st.ProcessedReferences())
	require.False(t, st.PaymentLogs()[0].Notified)
}

func TestProcess_CommitFailureLeavesNoMutation(t *testing.T) {
	st := store.NewMemoryStore()
	putDebt(st, "12345", "500", "0", time.Now())
	st.BeforeCommit(func(*store.AllocationCommit) error { return errors.New("connection refused") })
	sender := &stubSender{}

	res := newTestService(t, st, sender).Process(context.Background(), gt87)

	require.Equal(t, types.ReconcileOutcomeSystemError, res.Outcome)
	require.Equal(t, types.ErrorCategorySystemError, res.Category)
	require.True(t, st.Debt("12345").PaidAmount.IsZero())
	require.Empty(t, st.ProcessedReferences())
	require.Zero(t, sender.count())
	require.Len(t, st.PaymentLogs(), 1)
}

func TestProcess_RetriesOnVersionConflict(t *testing.T) {
	st := store.NewMemoryStore()
	putDebt(st, "12345", "1000", "0", time.Now())

	calls := 0
	st.BeforeCommit(func(*store.AllocationCommit) error {
		calls++
		if calls == 1 {
			return store.ErrVersionConflict
		}
		return nil
	})

	res := newTestService(t, st, &stubSender{}).Process(context.Background(), gt87)
	require.Equal(t, types.ReconcileOutcomeDone, res.Outcome)
	require.Equal(t, 2, res.Attempts)
	require.True(t, st.Debt("12345").PaidAmount.Equal(d("500")))
}

func TestProcess_GivesUpAfterMaxAttempts(t *testing.T) {
	st := store.NewMemoryStore()
	putDebt(st, "12345", "1000", "0", time.Now())
	st.BeforeCommit(func(*store.AllocationCommit) error { return store.ErrVersionConflict })

	res := newTestService(t, st, &stubSender{}).Process(context.Background(), gt87)
	require.Equal(t, types.ReconcileOutcomeSystemError, res.Outcome)
	require.Equal(t, 3, res.Attempts)
	require.True(t, st.Debt("12345").PaidAmount.IsZero())
}

func TestProcess_ConcurrentDuplicateMapsToAlreadyProcessed(t *testing.T) {
	st := store.NewMemoryStore()
	putDebt(st, "12345", "1000", "0", time.Now())
	st.BeforeCommit(func(*store.AllocationCommit) error { return store.ErrDuplicateReference })

	res := newTestService(t, st, &stubSender{}).Process(context.Background(), gt87)
	require.Equal(t, types.ReconcileOutcomeAlreadyProcessed, res.Outcome)
	require.True(t, st.Debt("12345").PaidAmount.IsZero())
}

func TestProcess_NoReferenceIsUnprotected(t *testing.T) {
	st := store.NewMemoryStore()
	putDebt(st, "12345", "1000", "0", time.Now())
	svc := newTestService(t, st, &stubSender{})

	raw := "Ksh100.00 received from JOHN DOE 254712345678 Account Number 12345"
	first := svc.Process(context.Background(), raw)
	second := svc.Process(context.Background(), raw)

	require.Equal(t, types.ReconcileOutcomeDone, first.Outcome)
	require.Equal(t, types.ReconcileOutcomeDone, second.Outcome)
	require.False(t, first.Idempotent)
	require.True(t, st.Debt("12345").PaidAmount.Equal(d("200")))
	require.Empty(t, st.ProcessedReferences())
	require.False(t, st.PaymentLogs()[0].Idempotent)
}

func TestProcess_SingleDebtOverpaymentAbsorbed(t *testing.T) {
	st := store.NewMemoryStore()
	putDebt(st, "12345", "200", "0", time.Now())

	res := newTestService(t, st, &stubSender{}).Process(context.Background(), gt87)
	require.Equal(t, types.ReconcileOutcomeDone, res.Outcome)
	debt := st.Debt("12345")
	require.True(t, debt.PaidAmount.Equal(d("500")))
	require.True(t, debt.RemainingAmount.IsZero())
	require.Equal(t, types.DebtStatusPaid, debt.Status)
	require.True(t, res.Excess.IsZero())
}

func TestProcess_NotifyTimeoutKeepsFinancialOutcome(t *testing.T) {
	st := store.NewMemoryStore()
	putDebt(st, "12345", "500", "0", time.Now())
	svc := newTestService(t, st, blockingSender{}, func(c *config.ReconcileConfig) {
		c.NotifyTimeout = 50 * time.Millisecond
	})

	res := svc.Process(context.Background(), gt87)

	require.Equal(t, types.ReconcileOutcomeNotifyFailed, res.Outcome)
	require.False(t, res.Notified)
	assert.Contains(t, res.Error, sms.ErrSendFailed.Error())
	assert.Contains(t, res.Error, context.DeadlineExceeded.Error())

	debt := st.Debt("12345")
	require.True(t, debt.PaidAmount.Equal(d("500")))
	require.Equal(t, types.DebtStatusPaid, debt.Status)
	require.Equal(t, []string{"GT87HJ890"}, st.ProcessedReferences())

	logs := st.PaymentLogs()
	require.Len(t, logs, 1)
	require.Equal(t, types.ReconcileOutcomeNotifyFailed, logs[0].Outcome)
}

func TestProcess_ConcurrentDistinctReferencesAllApply(t *testing.T) {
	const n = 20
	st := store.NewMemoryStore()
	putDebt(st, "12345", "100000", "0", time.Now())
	sender := &stubSender{}
	svc := newTestService(t, st, sender, func(c *config.ReconcileConfig) {
		c.MaxCommitAttempts = n + 1
	})

	results := make([]*Result, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			raw := fmt.Sprintf("RF%06d Confirmed. Ksh100.00 received from JOHN DOE 254712345678 on 5/3/24 at 10:15 AM Account Number 12345", i)
			results[i] = svc.Process(context.Background(), raw)
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		require.Equal(t, types.ReconcileOutcomeDone, res.Outcome, "submission %d: %s", i, res.Error)
	}
	debt := st.Debt("12345")
	require.True(t, debt.PaidAmount.Equal(d("2000")), "paid %s", debt.PaidAmount)
	require.True(t, debt.RemainingAmount.Equal(d("98000")))
	require.True(t, debt.Consistent())
	require.Len(t, st.ProcessedReferences(), n)
	require.Len(t, st.PaymentLogs(), n)
	require.Equal(t, n, sender.count())
}

func TestProcess_ConcurrentSameReferenceAppliesOnce(t *testing.T) {
	const n = 20
	st := store.NewMemoryStore()
	putDebt(st, "12345", "100000", "0", time.Now())
	sender := &stubSender{}
	svc := newTestService(t, st, sender, func(c *config.ReconcileConfig) {
		c.MaxCommitAttempts = n + 1
	})

	results := make([]*Result, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.Process(context.Background(), gt87)
		}(i)
	}
	wg.Wait()

	outcomes := map[types.ReconcileOutcome]int{}
	for _, res := range results {
		outcomes[res.Outcome]++
	}
	require.Equal(t, map[types.ReconcileOutcome]int{
		types.ReconcileOutcomeDone:             1,
		types.ReconcileOutcomeAlreadyProcessed: n - 1,
	}, outcomes)

	debt := st.Debt("12345")
	require.True(t, debt.PaidAmount.Equal(d("500")), "paid %s", debt.PaidAmount)
	require.True(t, debt.Consistent())
	require.Equal(t, []string{"GT87HJ890"}, st.ProcessedReferences())
	require.Len(t, st.PaymentLogs(), n)
	require.Equal(t, 1, sender.count())
}
