package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/fatflowers/debtbook/pkg/types"
)

// PaymentLog is the append-only audit trail: one row per processed notification,
// whatever the outcome. Rows are never updated.
type PaymentLog struct {
	ID           string                 `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TraceID      string                 `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	RawText      string                 `gorm:"column:raw_text;type:text;not null" json:"raw_text"`
	ReferenceID  *string                `gorm:"column:reference_id;type:varchar(64);index" json:"reference_id"`
	AccountToken string                 `gorm:"column:account_token;type:varchar(64);index" json:"account_token"`
	Amount       decimal.NullDecimal    `gorm:"column:amount;type:numeric(18,2)" json:"amount"`
	Outcome      types.ReconcileOutcome `gorm:"column:outcome;type:varchar(32);not null;index" json:"outcome"`
	Success      bool                   `gorm:"column:success;not null" json:"success"`
	// Idempotent is false when the notification carried no reference id and was
	// applied without duplicate protection.
	Idempotent bool                                    `gorm:"column:idempotent;not null" json:"idempotent"`
	Parsed     datatypes.JSONType[*types.ParsedPayment] `gorm:"column:parsed;type:jsonb;default:'null'" json:"parsed"`
	Deltas     datatypes.JSONSlice[types.DebtDelta]     `gorm:"column:deltas;type:jsonb;default:'[]'" json:"deltas"`
	Excess     decimal.Decimal                          `gorm:"column:excess;type:numeric(18,2);not null;default:0" json:"excess"`
	Notified   bool                                     `gorm:"column:notified;not null" json:"notified"`
	Error      *string                                  `gorm:"column:error;type:text" json:"error"`
	CreatedAt  time.Time                                `gorm:"index" json:"created_at"`
}

func (PaymentLog) TableName() string { return "payment_log" }

// FilterFields exposes the columns admin filters may match on.
func (l *PaymentLog) FilterFields() map[string]any {
	m := map[string]any{
		"id":            l.ID,
		"trace_id":      l.TraceID,
		"account_token": l.AccountToken,
		"outcome":       l.Outcome,
		"success":       l.Success,
		"idempotent":    l.Idempotent,
		"notified":      l.Notified,
	}
	if l.ReferenceID != nil {
		m["reference_id"] = *l.ReferenceID
	}
	return m
}
