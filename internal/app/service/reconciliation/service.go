// Package reconciliation turns one payment notification into ledger updates.
//
// Every notification ends in exactly one terminal outcome and exactly one
// payment log row. Nothing is mutated before allocation; the commit is a single
// conditional batch that is re-planned when a debt moved underneath it.
package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/debtbook/internal/app/service/allocation"
	"github.com/fatflowers/debtbook/internal/app/service/idempotency"
	"github.com/fatflowers/debtbook/internal/app/service/ledger"
	parser "github.com/fatflowers/debtbook/internal/app/service/notification_parser"
	"github.com/fatflowers/debtbook/internal/app/service/payment_log"
	"github.com/fatflowers/debtbook/internal/app/service/unmatched"
	"github.com/fatflowers/debtbook/internal/models"
	"github.com/fatflowers/debtbook/internal/platform/sms"
	"github.com/fatflowers/debtbook/internal/platform/store"
	"github.com/fatflowers/debtbook/pkg/config"
	"github.com/fatflowers/debtbook/pkg/logctx"
	"github.com/fatflowers/debtbook/pkg/metrics"
	"github.com/fatflowers/debtbook/pkg/tool"
	"github.com/fatflowers/debtbook/pkg/types"
)

const metricType = "reconcile"

var errNoRecipient = errors.New("no phone number to notify")

// Result is what the caller gets back for one notification.
type Result struct {
	Outcome      types.ReconcileOutcome `json:"outcome"`
	Category     types.ErrorCategory    `json:"category,omitempty"`
	PaymentLogID string                 `json:"payment_log_id"`
	ReferenceID  *string                `json:"reference_id,omitempty"`
	AccountToken string                 `json:"account_token,omitempty"`
	Amount       decimal.Decimal        `json:"amount"`
	// Affected lists the debts credited, with their resulting balances.
	Affected           []types.DebtDelta `json:"affected"`
	Applied            decimal.Decimal   `json:"applied"`
	Excess             decimal.Decimal   `json:"excess"`
	OutstandingBalance decimal.Decimal   `json:"outstanding_balance"`
	// Idempotent is false when no reference id protected the run.
	Idempotent  bool   `json:"idempotent"`
	Notified    bool   `json:"notified"`
	UnmatchedID string `json:"unmatched_id,omitempty"`
	Attempts    int    `json:"attempts"`
	Error       string `json:"error,omitempty"`
}

type Service struct {
	cfg        config.ReconcileConfig
	parser     *parser.Parser
	resolver   *ledger.Resolver
	guard      *idempotency.Guard
	store      store.Store
	sender     sms.Sender
	paymentLog *payment_log.Service
	unmatched  *unmatched.Service
	log        *zap.SugaredLogger
	now        func() time.Time
}

type Params struct {
	Config     *config.Config
	Parser     *parser.Parser
	Resolver   *ledger.Resolver
	Guard      *idempotency.Guard
	Store      store.Store
	Sender     sms.Sender
	PaymentLog *payment_log.Service
	Unmatched  *unmatched.Service
	Logger     *zap.SugaredLogger
}

func New(p Params) *Service {
	cfg := p.Config.Reconcile
	if cfg.MaxCommitAttempts <= 0 {
		cfg.MaxCommitAttempts = 1
	}
	if cfg.CurrencyLabel == "" {
		cfg.CurrencyLabel = "Ksh"
	}
	return &Service{
		cfg:        cfg,
		parser:     p.Parser,
		resolver:   p.Resolver,
		guard:      p.Guard,
		store:      p.Store,
		sender:     p.Sender,
		paymentLog: p.PaymentLog,
		unmatched:  p.Unmatched,
		log:        p.Logger,
		now:        time.Now,
	}
}

// Process runs one raw notification to a terminal outcome. It never returns an
// error: failures are reported through Result.Outcome.
func (s *Service) Process(ctx context.Context, raw string) (res *Result) {
	start := s.now()
	log := logctx.FromCtx(ctx, s.log)
	res = &Result{PaymentLogID: tool.GenerateUUIDV7(), Applied: decimal.Zero, Excess: decimal.Zero, Amount: decimal.Zero}
	entry := &models.PaymentLog{ID: res.PaymentLogID, RawText: raw}

	defer func() {
		res.Category = res.Outcome.Category()
		s.writeAudit(ctx, entry, res)
		metrics.ObserveBusinessProcess(metricType, string(res.Outcome), start)
		metrics.IncReconcileOutcome(string(res.Outcome))
		metrics.AddReconcileExcess(res.Excess.InexactFloat64())
		log.Infow("reconcile_finished",
			"outcome", res.Outcome,
			"reference_id", lo.FromPtr(res.ReferenceID),
			"account_token", res.AccountToken,
			"applied", res.Applied.String(),
			"excess", res.Excess.String(),
			"attempts", res.Attempts,
			"duration_ms", metrics.MillisecondsSince(start))
	}()

	parsed, err := s.parser.Parse(raw)
	if err != nil {
		log.Warnw("notification_parse_failed", "err", err)
		return s.fail(res, types.ReconcileOutcomeParseFailed, err)
	}
	if parsed.OccurredAt == nil {
		parsed.OccurredAt = lo.ToPtr(start.UTC())
	}
	entry.Parsed = datatypes.NewJSONType(parsed)
	res.ReferenceID = parsed.ReferenceID
	res.AccountToken = parsed.AccountToken
	res.Amount = parsed.Amount
	res.Idempotent = parsed.HasReference()

	var pl *plan
	for attempt := 1; attempt <= s.cfg.MaxCommitAttempts; attempt++ {
		res.Attempts = attempt
		var outcome types.ReconcileOutcome
		pl, outcome, err = s.planAndCommit(ctx, raw, parsed, res)
		if outcome != "" {
			if err != nil {
				log.Errorw("reconcile_system_error", "stage", "commit", "attempt", attempt, "err", err)
				return s.fail(res, outcome, err)
			}
			res.Outcome = outcome
			return res
		}
		if err == nil {
			break
		}
		// version conflict: another payment touched one of the debts
		log.Warnw("reconcile_version_conflict", "attempt", attempt, "err", err)
		if attempt == s.cfg.MaxCommitAttempts {
			return s.fail(res, types.ReconcileOutcomeSystemError,
				fmt.Errorf("gave up after %d commit attempts: %w", attempt, err))
		}
	}

	res.Affected = pl.alloc.Deltas
	res.Applied = pl.alloc.Applied
	res.Excess = pl.alloc.Excess
	res.OutstandingBalance = pl.outstanding
	if res.Excess.Sign() > 0 {
		log.Warnw("reconcile_excess_unapplied", "excess", res.Excess.String(), "account_token", res.AccountToken)
	}

	if err := s.notify(ctx, pl, parsed, res); err != nil {
		log.Warnw("reconcile_notify_failed", "err", err)
		res.Outcome = types.ReconcileOutcomeNotifyFailed
		res.Error = err.Error()
		return res
	}
	res.Notified = true
	res.Outcome = types.ReconcileOutcomeDone
	return res
}

type plan struct {
	resolution  *ledger.Resolution
	alloc       allocation.Allocation
	outstanding decimal.Decimal
}

// planAndCommit runs lookup, idempotency check, allocation and commit once.
// A non-empty outcome is terminal. An empty outcome with a non-nil error is a
// version conflict worth retrying.
func (s *Service) planAndCommit(ctx context.Context, raw string, p *types.ParsedPayment, res *Result) (*plan, types.ReconcileOutcome, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	resolution, err := s.resolver.Resolve(sctx, p.AccountToken, p.PayerPhone)
	if err != nil {
		return nil, types.ReconcileOutcomeSystemError, fmt.Errorf("failed to resolve account: %w", err)
	}
	if resolution.Kind == ledger.NoMatch {
		item, err := s.unmatched.Record(sctx, &unmatched.RecordRequest{
			Payment:      p,
			RawText:      raw,
			PaymentLogID: res.PaymentLogID,
			ProcessedAt:  s.now().UTC(),
		})
		if err != nil {
			return nil, types.ReconcileOutcomeSystemError, err
		}
		res.UnmatchedID = item.ID
		return nil, types.ReconcileOutcomeUnmatched, nil
	}

	decision, err := s.guard.Check(sctx, p.ReferenceID)
	if err != nil {
		return nil, types.ReconcileOutcomeSystemError, err
	}
	if decision == idempotency.AlreadyProcessed {
		return nil, types.ReconcileOutcomeAlreadyProcessed, nil
	}

	pl := &plan{resolution: resolution}
	var debts []*models.Debt
	switch resolution.Kind {
	case ledger.SingleDebtMatch:
		debts = []*models.Debt{resolution.Debt}
		delta := allocation.AllocateSingle(resolution.Debt, p.Amount)
		pl.alloc = allocation.Allocation{Deltas: []types.DebtDelta{delta}, Applied: p.Amount, Excess: decimal.Zero}
	default:
		debts = resolution.Debts
		pl.alloc = allocation.AllocateSequential(resolution.Debts, p.Amount)
	}
	pl.outstanding = outstandingAfter(debts, pl.alloc)

	byCode := lo.KeyBy(debts, func(d *models.Debt) string { return d.Code })
	paidAt := lo.FromPtr(p.OccurredAt)
	commit := &store.AllocationCommit{
		Debts: lo.Map(pl.alloc.Deltas, func(d types.DebtDelta, _ int) store.DebtUpdate {
			return store.DebtUpdate{Debt: allocation.Apply(byCode[d.DebtCode], d, paidAt), ExpectedVersion: d.ExpectedVersion}
		}),
		Reference: s.guard.Record(p.ReferenceID, lo.Map(pl.alloc.Deltas, func(d types.DebtDelta, _ int) string { return d.DebtCode }), p.Amount),
	}

	err = idempotency.Translate(s.store.CommitAllocation(sctx, commit))
	switch {
	case err == nil:
		return pl, "", nil
	case errors.Is(err, idempotency.ErrAlreadyProcessed):
		// a concurrent run with the same reference won the commit
		return nil, types.ReconcileOutcomeAlreadyProcessed, nil
	case errors.Is(err, store.ErrVersionConflict):
		return nil, "", err
	default:
		return nil, types.ReconcileOutcomeSystemError, fmt.Errorf("failed to commit allocation: %w", err)
	}
}

// outstandingAfter sums what is still owed across debts once alloc lands.
func outstandingAfter(debts []*models.Debt, alloc allocation.Allocation) decimal.Decimal {
	after := lo.KeyBy(alloc.Deltas, func(d types.DebtDelta) string { return d.DebtCode })
	return lo.Reduce(debts, func(acc decimal.Decimal, d *models.Debt, _ int) decimal.Decimal {
		if delta, ok := after[d.Code]; ok {
			return acc.Add(delta.RemainingAmount)
		}
		return acc.Add(d.RemainingAmount)
	}, decimal.Zero)
}

func (s *Service) notify(ctx context.Context, pl *plan, p *types.ParsedPayment, res *Result) error {
	phone := recipient(pl.resolution, p)
	if phone == "" {
		return errNoRecipient
	}
	nctx, cancel := ctx, context.CancelFunc(func() {})
	if s.cfg.NotifyTimeout > 0 {
		nctx, cancel = context.WithTimeout(ctx, s.cfg.NotifyTimeout)
	}
	defer cancel()
	if err := s.sender.Send(nctx, phone, s.message(pl, res)); err != nil {
		return fmt.Errorf("failed to notify %s: %w", phone, err)
	}
	return nil
}

// recipient picks the debt's own phone on the single-debt path, otherwise the
// number that paid, falling back to the matched payer account.
func recipient(r *ledger.Resolution, p *types.ParsedPayment) string {
	if r.Kind == ledger.SingleDebtMatch {
		if r.Debt.PayerPhone != "" {
			return r.Debt.PayerPhone
		}
		return lo.FromPtr(p.PayerPhone)
	}
	if phone := lo.FromPtr(p.PayerPhone); phone != "" {
		return phone
	}
	if r.Account != nil {
		return r.Account.Phone
	}
	return ""
}

func (s *Service) message(pl *plan, res *Result) string {
	cur := s.cfg.CurrencyLabel
	ref := ""
	if res.ReferenceID != nil {
		ref = " (ref " + *res.ReferenceID + ")"
	}
	if pl.resolution.Kind == ledger.SingleDebtMatch {
		return fmt.Sprintf("Payment of %s %s received for debt %s%s. Outstanding balance: %s %s.",
			cur, res.Applied.StringFixed(2), pl.resolution.Debt.Code, ref, cur, res.OutstandingBalance.StringFixed(2))
	}
	msg := fmt.Sprintf("Payment of %s %s received%s. Applied %s %s to %d debt(s). Outstanding balance: %s %s.",
		cur, res.Amount.StringFixed(2), ref, cur, res.Applied.StringFixed(2), len(res.Affected), cur, res.OutstandingBalance.StringFixed(2))
	if res.Excess.Sign() > 0 {
		msg += fmt.Sprintf(" %s %s was not applied to any debt.", cur, res.Excess.StringFixed(2))
	}
	return msg
}

func (s *Service) fail(res *Result, outcome types.ReconcileOutcome, err error) *Result {
	res.Outcome = outcome
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

// writeAudit persists the single log row for this run, detached from caller
// cancellation.
func (s *Service) writeAudit(ctx context.Context, entry *models.PaymentLog, res *Result) {
	entry.ReferenceID = res.ReferenceID
	entry.AccountToken = res.AccountToken
	if res.Amount.Sign() > 0 {
		entry.Amount = decimal.NewNullDecimal(res.Amount)
	}
	entry.Outcome = res.Outcome
	entry.Idempotent = res.Idempotent
	entry.Deltas = res.Affected
	entry.Excess = res.Excess
	entry.Notified = res.Notified
	if res.Error != "" {
		entry.Error = lo.ToPtr(res.Error)
	}

	actx, cancel := s.storeCtx(context.WithoutCancel(ctx))
	defer cancel()
	if err := s.paymentLog.Save(actx, entry); err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("reconcile_audit_write_failed", "payment_log_id", entry.ID, "outcome", res.Outcome, "err", err)
	}
}
