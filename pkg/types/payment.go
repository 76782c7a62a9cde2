package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ParsedPayment is the structured fact extracted from one payment notification.
type ParsedPayment struct {
	// ReferenceID is vendor-assigned and doubles as the idempotency key. Nil when the
	// message carried none.
	ReferenceID  *string         `json:"reference_id"`
	Amount       decimal.Decimal `json:"amount"`
	AccountToken string          `json:"account_token"`
	PayerPhone   *string         `json:"payer_phone"`
	PayerName    *string         `json:"payer_name"`
	OccurredAt   *time.Time      `json:"occurred_at"`
}

func (p *ParsedPayment) HasReference() bool {
	return p != nil && p.ReferenceID != nil && *p.ReferenceID != ""
}
