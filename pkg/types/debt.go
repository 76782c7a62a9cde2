package types

import "github.com/shopspring/decimal"

type DebtStatus string

const (
	DebtStatusPending       DebtStatus = "pending"
	DebtStatusPartiallyPaid DebtStatus = "partially_paid"
	DebtStatusPaid          DebtStatus = "paid"
)

// DebtStatusFor derives the status implied by a paid/remaining pair.
func DebtStatusFor(paid, remaining decimal.Decimal) DebtStatus {
	switch {
	case remaining.Sign() <= 0:
		return DebtStatusPaid
	case paid.Sign() > 0:
		return DebtStatusPartiallyPaid
	default:
		return DebtStatusPending
	}
}

// DebtDelta describes the effect of one allocation on one debt.
type DebtDelta struct {
	DebtCode        string          `json:"debt_code"`
	Applied         decimal.Decimal `json:"applied"`
	PreviousPaid    decimal.Decimal `json:"previous_paid"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	PreviousStatus  DebtStatus      `json:"previous_status"`
	Status          DebtStatus      `json:"status"`
	// ExpectedVersion is the debt version the delta was computed from.
	ExpectedVersion int64 `json:"expected_version"`
}
