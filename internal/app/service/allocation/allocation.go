// Package allocation computes how a received amount is spread over debts. Nothing
// here touches the store; the same inputs always produce the same deltas.
package allocation

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/fatflowers/debtbook/internal/models"
	"github.com/fatflowers/debtbook/pkg/types"
)

// Allocation is the result of spreading one payment across debts.
type Allocation struct {
	Deltas []types.DebtDelta `json:"deltas"`
	// Applied is the part of the payment credited to debts.
	Applied decimal.Decimal `json:"applied"`
	// Excess is received but credited nowhere; callers must record it.
	Excess decimal.Decimal `json:"excess"`
}

// RemainingAfter sums the remaining balances of the touched debts after allocation.
func (a *Allocation) RemainingAfter() decimal.Decimal {
	return lo.Reduce(a.Deltas, func(acc decimal.Decimal, d types.DebtDelta, _ int) decimal.Decimal {
		return acc.Add(d.RemainingAmount)
	}, decimal.Zero)
}

// AllocateSingle credits the full amount to one debt. Overpayment is kept in
// PaidAmount; remaining bottoms out at zero.
func AllocateSingle(debt *models.Debt, amount decimal.Decimal) types.DebtDelta {
	return credit(debt, amount)
}

// AllocateSequential walks debts in the given order (oldest first), clearing each
// outstanding balance before moving on. Settled debts are skipped. Whatever is
// left once every debt is cleared is returned as Excess.
func AllocateSequential(debts []*models.Debt, amount decimal.Decimal) Allocation {
	out := Allocation{Applied: decimal.Zero, Excess: decimal.Zero}
	left := amount
	for _, debt := range debts {
		if left.Sign() <= 0 {
			break
		}
		if debt == nil || debt.IsSettled() {
			continue
		}
		portion := decimal.Min(left, debt.RemainingAmount)
		out.Deltas = append(out.Deltas, credit(debt, portion))
		out.Applied = out.Applied.Add(portion)
		left = left.Sub(portion)
	}
	if left.Sign() > 0 {
		out.Excess = left
	}
	return out
}

func credit(debt *models.Debt, amount decimal.Decimal) types.DebtDelta {
	paid := debt.PaidAmount.Add(amount)
	remaining := decimal.Max(decimal.Zero, debt.PrincipalAmount.Sub(paid))
	status := types.DebtStatusPartiallyPaid
	if remaining.IsZero() {
		status = types.DebtStatusPaid
	}
	return types.DebtDelta{
		DebtCode:        debt.Code,
		Applied:         amount,
		PreviousPaid:    debt.PaidAmount,
		PaidAmount:      paid,
		RemainingAmount: remaining,
		PreviousStatus:  debt.Status,
		Status:          status,
		ExpectedVersion: debt.Version,
	}
}

// Apply returns a copy of debt with delta applied, stamped with the payment time
// and the next version. The input is not modified.
func Apply(debt *models.Debt, delta types.DebtDelta, paidAt time.Time) *models.Debt {
	next := *debt
	next.PaidAmount = delta.PaidAmount
	next.RemainingAmount = delta.RemainingAmount
	next.Status = delta.Status
	next.LastPaymentAt = lo.ToPtr(paidAt)
	next.Version = delta.ExpectedVersion + 1
	return &next
}
