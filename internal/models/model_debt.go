package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/debtbook/pkg/types"
)

// Debt is owned by the surrounding application; the reconciliation engine only
// moves its paid/remaining/status fields.
type Debt struct {
	// Code is the short numeric code payers type into the account field.
	Code            string           `gorm:"column:code;type:varchar(32);primaryKey" json:"code"`
	PrincipalAmount decimal.Decimal  `gorm:"column:principal_amount;type:numeric(18,2);not null" json:"principal_amount"`
	PaidAmount      decimal.Decimal  `gorm:"column:paid_amount;type:numeric(18,2);not null;default:0" json:"paid_amount"`
	RemainingAmount decimal.Decimal  `gorm:"column:remaining_amount;type:numeric(18,2);not null" json:"remaining_amount"`
	Status          types.DebtStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	PayerPhone      string           `gorm:"column:payer_phone;type:varchar(32);index" json:"payer_phone"`
	LastPaymentAt   *time.Time       `gorm:"column:last_payment_at;default:null" json:"last_payment_at"`
	// Version increments on every engine write; commits are conditional on it.
	Version   int64     `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Debt) TableName() string { return "debt" }

// ExpectedRemaining is max(0, principal - paid).
func (d *Debt) ExpectedRemaining() decimal.Decimal {
	return decimal.Max(decimal.Zero, d.PrincipalAmount.Sub(d.PaidAmount))
}

// Consistent reports whether remaining and status agree with principal and paid.
func (d *Debt) Consistent() bool {
	if d == nil {
		return false
	}
	remaining := d.ExpectedRemaining()
	return d.RemainingAmount.Equal(remaining) && d.Status == types.DebtStatusFor(d.PaidAmount, remaining)
}

func (d *Debt) IsSettled() bool {
	return d != nil && d.RemainingAmount.Sign() <= 0
}
